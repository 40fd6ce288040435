// Package storefront owns the page-level state of one shopper device: cart,
// session mirror, display currency, navigation and the live catalog. Every
// write goes through an App method.
package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"julianmorley.ca/con-plar/topup-storefront/pkg/ai"
	"julianmorley.ca/con-plar/topup-storefront/pkg/cart"
	"julianmorley.ca/con-plar/topup-storefront/pkg/catalog"
	"julianmorley.ca/con-plar/topup-storefront/pkg/checkout"
	"julianmorley.ca/con-plar/topup-storefront/pkg/currency"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
	"julianmorley.ca/con-plar/topup-storefront/pkg/mongo"
	"julianmorley.ca/con-plar/topup-storefront/pkg/session"
)

type View string

const (
	ViewCatalog  View = "catalog"
	ViewProduct  View = "product"
	ViewCart     View = "cart"
	ViewPayment  View = "payment"
	ViewLogin    View = "login"
	ViewRegister View = "register"
	ViewAccount  View = "account"
)

func ParseView(raw string) (View, bool) {
	switch v := View(raw); v {
	case ViewCatalog, ViewProduct, ViewCart, ViewPayment, ViewLogin, ViewRegister, ViewAccount:
		return v, true
	}
	return "", false
}

// AttemptReader is the read side of the checkout journal.
type AttemptReader interface {
	SummarizeAttempts(ctx context.Context) ([]mongo.AttemptSummary, error)
	RecentAttempts(ctx context.Context, email string, limit int64) ([]models.CheckoutAttempt, error)
}

type Reporter interface {
	AttemptReport(ctx context.Context, summaries []mongo.AttemptSummary) *ai.Report
}

type Deps struct {
	Catalog       *catalog.Service
	Cart          *cart.Engine
	Session       *session.Manager
	Checkout      *checkout.Service
	Converter     *currency.Converter
	Attempts      AttemptReader
	Reporter      Reporter
	Logger        *zap.Logger
	RedirectDelay time.Duration
}

type App struct {
	catalog       *catalog.Service
	cart          *cart.Engine
	session       *session.Manager
	checkout      *checkout.Service
	converter     *currency.Converter
	attempts      AttemptReader
	reporter      Reporter
	logger        *zap.Logger
	redirectDelay time.Duration

	mu             sync.Mutex
	mode           currency.Mode
	view           View
	productID      int
	selected       *models.Package
	draft          checkout.Form
	notice         *Notice
	resumeCheckout bool
	redirect       *time.Timer

	events *broker
}

func New(d Deps) *App {
	a := &App{
		catalog:       d.Catalog,
		cart:          d.Cart,
		session:       d.Session,
		checkout:      d.Checkout,
		converter:     d.Converter,
		attempts:      d.Attempts,
		reporter:      d.Reporter,
		logger:        d.Logger,
		redirectDelay: d.RedirectDelay,
		mode:          currency.USD,
		view:          ViewCatalog,
		events:        newBroker(),
	}
	a.catalog.OnRateChange(func(rate decimal.Decimal) {
		a.events.publish(Event{Kind: EventPrices, Rate: rate.String()})
	})
	a.cart.OnChange(func(count int) {
		a.events.publish(Event{Kind: EventCart, Count: count})
	})
	return a
}

// Boot restores the persisted cart and paints the catalog from cache. It does
// no network I/O against the backend, so the cart is interactive right after.
func (a *App) Boot(ctx context.Context) {
	a.cart.Load(ctx)
	if a.catalog.Warm(ctx) {
		a.logger.Info("catalog painted from cache")
	}
}

// Reload refreshes catalog, rate and session concurrently.
func (a *App) Reload(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := a.catalog.Refresh(gctx)
		if err != nil {
			a.logger.Warn("catalog refresh degraded", zap.Error(err))
		}
		a.logger.Debug("catalog refreshed",
			zap.Bool("cache_valid", result.CacheValid),
			zap.String("rate", result.Rate.String()))
		return nil
	})
	g.Go(func() error {
		a.session.Refresh(gctx)
		return nil
	})
	_ = g.Wait()

	a.events.publish(Event{Kind: EventPrices})
	a.events.publish(Event{Kind: EventSession})
}

func (a *App) Start(ctx context.Context) {
	a.Boot(ctx)
	a.Reload(ctx)
}

// Close stops any pending navigation timer and closes subscriber streams.
func (a *App) Close() {
	a.mu.Lock()
	if a.redirect != nil {
		a.redirect.Stop()
	}
	a.mu.Unlock()
	a.events.close()
}

func (a *App) Subscribe() (<-chan Event, func()) {
	return a.events.subscribe()
}

// SetCurrency switches the display currency for every view at once.
func (a *App) SetCurrency(mode currency.Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.events.publish(Event{Kind: EventPrices})
	}
}

func (a *App) Mode() currency.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) Navigate(view View) {
	a.mu.Lock()
	a.navigateLocked(view)
	a.mu.Unlock()
	a.events.publish(Event{Kind: EventView, View: view})
}

// navigateLocked moves to view. Leaving the product view drops the selection.
func (a *App) navigateLocked(view View) {
	if view != ViewProduct {
		a.selected = nil
		a.productID = 0
	}
	if a.redirect != nil {
		a.redirect.Stop()
		a.redirect = nil
	}
	a.view = view
}

func (a *App) CurrentView() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

func (a *App) setNotice(n *Notice) {
	a.mu.Lock()
	a.notice = n
	a.mu.Unlock()
	if n != nil {
		a.events.publish(Event{Kind: EventNotice, Notice: n})
	}
}

// DismissNotice clears the current notification. Subscribers get a notice
// event with no Notice so they can hide it.
func (a *App) DismissNotice() {
	a.mu.Lock()
	had := a.notice != nil
	a.notice = nil
	a.mu.Unlock()
	if had {
		a.events.publish(Event{Kind: EventNotice})
	}
}
