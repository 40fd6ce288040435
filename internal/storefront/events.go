package storefront

import "sync"

type EventKind string

const (
	EventPrices  EventKind = "prices"
	EventCart    EventKind = "cart"
	EventView    EventKind = "view"
	EventNotice  EventKind = "notice"
	EventSession EventKind = "session"
)

// Event tells subscribers which part of the page to re-render.
type Event struct {
	Kind   EventKind `json:"kind"`
	View   View      `json:"view,omitempty"`
	Count  int       `json:"count,omitempty"`
	Rate   string    `json:"rate,omitempty"`
	Notice *Notice   `json:"notice,omitempty"`
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient notification shown to the shopper.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

const subscriberBuffer = 16

type broker struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// publish never blocks; a subscriber that falls behind misses events.
func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
