// Package cart holds the in-memory cart and mirrors it to durable storage after
// every mutation.
package cart

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// Store is the durable mirror of the cart. Implementations never fail past their boundary.
type Store interface {
	Save(ctx context.Context, lines []models.CartLine)
	Load(ctx context.Context) []models.CartLine
	Clear(ctx context.Context)
}

type Outcome string

const (
	Added   Outcome = "added"
	Updated Outcome = "updated"
)

// Change reports what ChangeQuantity did to a line.
type Change struct {
	Line    models.CartLine
	Removed bool
}

type Engine struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	lines    []models.CartLine
	index    map[models.LineKey]int64
	lastID   int64
	onChange func(count int)
}

func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
		index:  make(map[models.LineKey]int64),
	}
}

// OnChange registers the quantity indicator refresh. It runs after every mutation
// with the engine locked, so fn must not call back into the engine.
func (e *Engine) OnChange(fn func(count int)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Load replaces the in-memory cart with the persisted one.
func (e *Engine) Load(ctx context.Context) {
	lines := e.store.Load(ctx)

	e.mu.Lock()
	e.lines = e.lines[:0]
	e.index = make(map[models.LineKey]int64, len(lines))
	for _, line := range lines {
		key := line.Key()
		if id, dup := e.index[key]; dup {
			if i := e.indexOf(id); i >= 0 {
				e.lines[i].Cantidad += line.Cantidad
			}
			continue
		}
		e.lines = append(e.lines, line)
		e.index[key] = line.ID
		if line.ID > e.lastID {
			e.lastID = line.ID
		}
	}
	e.notify()
	e.mu.Unlock()

	e.logger.Debug("cart loaded", zap.Int("lines", len(lines)))
}

// AddOrMergeLine adds one unit of pkg for userID, merging into an existing line
// with the same product, package and user id.
func (e *Engine) AddOrMergeLine(ctx context.Context, product models.Product, pkg *models.Package, userID string) (Outcome, models.CartLine, error) {
	if pkg == nil {
		return "", models.CartLine{}, global.Required("paquete", "Selecciona un paquete")
	}
	userID = strings.TrimSpace(userID)
	if product.Categoria.RequiresPlayerID() && userID == "" {
		return "", models.CartLine{}, global.Required("usuario_id", "Ingresa tu ID de jugador")
	}

	e.mu.Lock()
	key := models.LineKey{ProductoID: product.ID, PaqueteNombre: pkg.Nombre, UsuarioID: userID}
	var (
		outcome Outcome
		line    models.CartLine
	)
	if id, ok := e.index[key]; ok {
		i := e.indexOf(id)
		e.lines[i].Cantidad++
		line = e.lines[i]
		outcome = Updated
	} else {
		line = models.CartLine{
			ID:             e.nextID(),
			ProductoID:     product.ID,
			ProductoNombre: product.Nombre,
			PaqueteNombre:  pkg.Nombre,
			Precio:         pkg.Precio,
			Cantidad:       1,
			UsuarioID:      userID,
			Imagen:         product.Imagen,
		}
		e.lines = append(e.lines, line)
		e.index[key] = line.ID
		outcome = Added
	}
	e.commit(ctx)
	e.mu.Unlock()

	return outcome, line, nil
}

// ChangeQuantity applies delta to a line. A result at or below zero removes it.
// ok is false when the id is unknown, which usually means a stale UI.
func (e *Engine) ChangeQuantity(ctx context.Context, id int64, delta int) (Change, bool) {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		e.logger.Info("quantity change for unknown line", zap.Int64("line_id", id))
		return Change{}, false
	}
	if e.lines[i].Cantidad+delta <= 0 {
		removed := e.removeAt(ctx, i)
		e.mu.Unlock()
		return Change{Line: removed, Removed: true}, true
	}
	e.lines[i].Cantidad += delta
	line := e.lines[i]
	e.commit(ctx)
	e.mu.Unlock()
	return Change{Line: line}, true
}

// RemoveLine deletes a line. ok is false when the id is unknown.
func (e *Engine) RemoveLine(ctx context.Context, id int64) (models.CartLine, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		e.logger.Info("remove for unknown line", zap.Int64("line_id", id))
		return models.CartLine{}, false
	}
	return e.removeAt(ctx, i), true
}

func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	e.lines = nil
	e.index = make(map[models.LineKey]int64)
	e.store.Clear(ctx)
	e.notify()
	e.mu.Unlock()
}

// Total is the USD sum of precio × cantidad.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := decimal.Zero
	for i := range e.lines {
		total = total.Add(e.lines[i].Subtotal())
	}
	return total
}

// Count is the number of units across all lines.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count()
}

func (e *Engine) Lines() []models.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.CartLine(nil), e.lines...)
}

func (e *Engine) Find(id int64) (models.CartLine, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(id); i >= 0 {
		return e.lines[i], true
	}
	return models.CartLine{}, false
}

func (e *Engine) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lines) == 0
}

func (e *Engine) removeAt(ctx context.Context, i int) models.CartLine {
	removed := e.lines[i]
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	delete(e.index, removed.Key())
	e.commit(ctx)
	return removed
}

// commit persists and refreshes the indicator. Caller holds mu.
func (e *Engine) commit(ctx context.Context) {
	e.store.Save(ctx, e.lines)
	e.notify()
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange(e.count())
	}
}

func (e *Engine) count() int {
	n := 0
	for i := range e.lines {
		n += e.lines[i].Cantidad
	}
	return n
}

func (e *Engine) indexOf(id int64) int {
	for i := range e.lines {
		if e.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID derives the id from the creation time, bumped past any id already issued.
func (e *Engine) nextID() int64 {
	id := e.now().UnixMilli()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id
	return id
}
