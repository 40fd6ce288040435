package storefront

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"julianmorley.ca/con-plar/topup-storefront/pkg/ai"
	"julianmorley.ca/con-plar/topup-storefront/pkg/cart"
	"julianmorley.ca/con-plar/topup-storefront/pkg/catalog"
	"julianmorley.ca/con-plar/topup-storefront/pkg/checkout"
	"julianmorley.ca/con-plar/topup-storefront/pkg/currency"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
	"julianmorley.ca/con-plar/topup-storefront/pkg/mongo"
	"julianmorley.ca/con-plar/topup-storefront/pkg/redis"
	"julianmorley.ca/con-plar/topup-storefront/pkg/session"
)

type fakeBackend struct {
	mu       sync.Mutex
	rate     string
	user     *models.Session
	password string
	orders   []models.OrderRequest
	failAt   int
	history  []models.PurchaseRecord
	calls    int
}

func (f *fakeBackend) GetConfig(context.Context) (models.StoreConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return models.StoreConfig{
		Rate:      decimal.RequireFromString(f.rate),
		PagoMovil: "0102 04123456789 V-12345678",
		Binance:   "pagos@topup.example",
		Logo:      "logo.png",
		Carousel1: "slide1.png",
	}, nil
}

func (f *fakeBackend) GetProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []models.Product{
		{
			ID: 7, Nombre: "Free Fire", Categoria: models.CategoryGames, Etiquetas: "diamantes, garena",
			Paquetes: []models.Package{
				{ID: "1", Nombre: "100 Diamantes", Precio: decimal.RequireFromString("10.00")},
				{ID: "2", Nombre: "310 Diamantes", Precio: decimal.RequireFromString("5.50")},
			},
		},
		{
			ID: 9, Nombre: "Steam", Categoria: models.CategoryGiftCards,
			Paquetes: []models.Package{{ID: "20", Nombre: "Steam $20", Precio: decimal.RequireFromString("20.00")}},
		},
	}, nil
}

func (f *fakeBackend) CurrentUser(context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.user == nil {
		return nil, global.ErrAuth
	}
	s := *f.user
	return &s, nil
}

func (f *fakeBackend) Login(_ context.Context, req models.LoginRequest) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Password != f.password {
		return nil, global.NewServiceError(global.ErrAuth, "Credenciales inválidas", "HTTP_401")
	}
	f.user = &models.Session{UserID: "3", Email: req.Email, Name: "Ana"}
	s := *f.user
	return &s, nil
}

func (f *fakeBackend) Register(context.Context, models.RegisterRequest) error { return nil }

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	f.user = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) PurchaseHistory(context.Context) ([]models.PurchaseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, order models.OrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.orders)+1 == f.failAt {
		return global.NewServiceError(global.ErrNetwork, "No se pudo registrar la orden", "HTTP_500")
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeBackend) setUser(s *models.Session) {
	f.mu.Lock()
	f.user = s
	f.mu.Unlock()
}

type fakeAttempts struct {
	summary   []mongo.AttemptSummary
	recent    []models.CheckoutAttempt
	lastEmail string
	lastLimit int64
}

func (f *fakeAttempts) SummarizeAttempts(context.Context) ([]mongo.AttemptSummary, error) {
	return f.summary, nil
}

func (f *fakeAttempts) RecentAttempts(_ context.Context, email string, limit int64) ([]models.CheckoutAttempt, error) {
	f.lastEmail, f.lastLimit = email, limit
	return f.recent, nil
}

type fixture struct {
	app     *App
	backend *fakeBackend
	carts   *redis.CartStore
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T, backend *fakeBackend) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClient(&redisclient.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zaptest.NewLogger(t)
	converter := currency.NewConverter(decimal.RequireFromString("142"))
	carts := redis.NewCartStore(client, "carrito", logger)
	engine := cart.NewEngine(carts, logger)
	sessions := session.NewManager(backend, logger)
	app := New(Deps{
		Catalog:       catalog.NewService(backend, redis.NewCatalogCache(client, "catalogo_cache", 5*time.Minute), converter, logger),
		Cart:          engine,
		Session:       sessions,
		Checkout:      checkout.NewService(engine, sessions, backend, nil, logger),
		Converter:     converter,
		Attempts:      &fakeAttempts{summary: []mongo.AttemptSummary{{Status: "success", Attempts: 2, OrdersCreated: 3}}},
		Reporter:      ai.NewReporter(global.Config{}, logger),
		Logger:        logger,
		RedirectDelay: 20 * time.Millisecond,
	})
	t.Cleanup(app.Close)
	return &fixture{app: app, backend: backend, carts: carts, mr: mr}
}

func started(t *testing.T, backend *fakeBackend) *fixture {
	f := newFixture(t, backend)
	f.app.Start(context.Background())
	return f
}

func addFreeFire(t *testing.T, app *App, pkgID, userID string) cart.Outcome {
	t.Helper()
	outcome, err := app.AddPackage(context.Background(), 7, pkgID, userID)
	require.NoError(t, err)
	return outcome
}

func TestBoot_RestoresCartWithoutBackend(t *testing.T) {
	backend := &fakeBackend{rate: "100"}
	f := newFixture(t, backend)
	f.carts.Save(context.Background(), []models.CartLine{
		{ID: 1, ProductoID: 7, PaqueteNombre: "100 Diamantes", Precio: decimal.RequireFromString("10.00"), Cantidad: 2, UsuarioID: "123"},
	})

	f.app.Boot(context.Background())

	assert.Equal(t, 2, f.app.State().Count)
	assert.Equal(t, "$20.00", f.app.Cart().Total)
	assert.Zero(t, backend.calls)
}

func TestCurrencySwitch_AppliesToEveryView(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	addFreeFire(t, f.app, "1", "123")

	f.app.SetCurrency(currency.Local)

	catalogView := f.app.Catalog("", "")
	require.Len(t, catalogView.Products, 2)
	assert.Equal(t, "Bs. 550.00", catalogView.Products[0].PrecioDesde)
	assert.Equal(t, "100.00", catalogView.Rate)

	product, err := f.app.Product(7)
	require.NoError(t, err)
	assert.Equal(t, "Bs. 1000.00", product.Paquetes[0].Precio)

	cartView := f.app.Cart()
	assert.Equal(t, "Bs. 1000.00", cartView.Total)
	assert.Equal(t, "10.00", cartView.TotalUSD)
	assert.Equal(t, "Bs. 1000.00", cartView.Lines[0].Subtotal)

	f.app.SetCurrency(currency.USD)
	assert.Equal(t, "$10.00", f.app.Cart().Total)
}

func TestViews_ConsistentUnderConcurrentCurrencySwitch(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	addFreeFire(t, f.app, "1", "123")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				f.app.SetCurrency(currency.Local)
			} else {
				f.app.SetCurrency(currency.USD)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		cartView := f.app.Cart()
		prefix := "$"
		if cartView.Currency == currency.Local {
			prefix = currency.LocalPrefix
		}
		assert.True(t, strings.HasPrefix(cartView.Total, prefix), cartView.Total)
		for _, l := range cartView.Lines {
			assert.True(t, strings.HasPrefix(l.Precio, prefix), l.Precio)
		}
		assert.Equal(t, 1, cartView.Count)

		catalogView := f.app.Catalog("", "")
		wantLabel := catalogView.Currency.Label()
		assert.Equal(t, wantLabel, catalogView.CurrencyLabel)
		catPrefix := "$"
		if catalogView.Currency == currency.Local {
			catPrefix = currency.LocalPrefix
		}
		for _, p := range catalogView.Products {
			assert.True(t, strings.HasPrefix(p.PrecioDesde, catPrefix), p.PrecioDesde)
		}
	}
	<-done
}

func TestAddToCart_MergesSameLineAndSeparatesPlayers(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})

	assert.Equal(t, cart.Added, addFreeFire(t, f.app, "1", "123"))
	assert.Equal(t, cart.Updated, addFreeFire(t, f.app, "1", " 123 "))
	assert.Equal(t, cart.Added, addFreeFire(t, f.app, "1", "456"))

	view := f.app.Cart()
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 2, view.Lines[0].Cantidad)
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, "$30.00", view.Total)

	st := f.app.State()
	require.NotNil(t, st.Notice)
	assert.Equal(t, NoticeSuccess, st.Notice.Level)
}

func TestAddToCart_RequiresPlayerIDForGames(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})

	_, err := f.app.AddPackage(context.Background(), 7, "1", "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, global.ErrValidation)
	assert.Equal(t, "usuario_id", f.app.State().Notice.Field)
	assert.Zero(t, f.app.Cart().Count)

	_, err = f.app.AddPackage(context.Background(), 9, "20", "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.app.Cart().Count)
}

func TestAddToCart_WithoutSelectionFails(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	require.NoError(t, f.app.OpenProduct(7))

	_, err := f.app.AddToCart(context.Background(), "123")
	assert.ErrorIs(t, err, global.ErrValidation)
}

func TestNavigate_ClearsSelection(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	require.NoError(t, f.app.OpenProduct(7))
	require.NoError(t, f.app.SelectPackage("2"))

	view, err := f.app.Product(0)
	require.NoError(t, err)
	require.NotNil(t, view.Seleccionado)
	assert.Equal(t, "310 Diamantes", view.Seleccionado.Nombre)

	f.app.Navigate(ViewCart)
	require.NoError(t, f.app.OpenProduct(7))
	view, err = f.app.Product(0)
	require.NoError(t, err)
	assert.Nil(t, view.Seleccionado)
}

func TestOpenProduct_Unknown(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	assert.ErrorIs(t, f.app.OpenProduct(404), global.ErrNotFound)
	assert.Equal(t, ViewCatalog, f.app.CurrentView())
}

func TestChangeQuantity_ToZeroRemovesLine(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	addFreeFire(t, f.app, "1", "123")
	id := f.app.Cart().Lines[0].ID

	change, ok := f.app.ChangeQuantity(context.Background(), id, -1)
	require.True(t, ok)
	assert.True(t, change.Removed)
	assert.True(t, f.app.Cart().Empty)
	assert.Contains(t, f.app.State().Notice.Message, "100 Diamantes")

	_, ok = f.app.ChangeQuantity(context.Background(), id, 1)
	assert.False(t, ok)
}

func TestBeginCheckout_NoSessionKeepsCartAndResumesAfterLogin(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100", password: "secreto"})
	addFreeFire(t, f.app, "1", "123")

	err := f.app.BeginCheckout(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, global.ErrAuth)
	assert.Equal(t, ViewLogin, f.app.CurrentView())
	assert.Equal(t, 1, f.app.Cart().Count)

	_, err = f.app.Login(context.Background(), "ana@example.com", "secreto")
	require.NoError(t, err)
	assert.Equal(t, ViewPayment, f.app.CurrentView())
	assert.Equal(t, "ana@example.com", f.app.Checkout().Form.Email)
}

func TestBeginCheckout_EmptyCart(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	err := f.app.BeginCheckout(context.Background())
	assert.ErrorIs(t, err, global.ErrValidation)
	assert.Equal(t, ViewCatalog, f.app.CurrentView())
}

func TestSubmitCheckout_SuccessClearsCartAndReturnsToCatalog(t *testing.T) {
	backend := &fakeBackend{rate: "100", user: &models.Session{UserID: "3", Email: "ana@example.com"}}
	f := started(t, backend)
	addFreeFire(t, f.app, "1", "123")
	addFreeFire(t, f.app, "1", "123")
	_, err := f.app.AddPackage(context.Background(), 9, "20", "")
	require.NoError(t, err)
	require.NoError(t, f.app.BeginCheckout(context.Background()))

	checkoutView := f.app.Checkout()
	assert.Equal(t, "pagos@topup.example", checkoutView.Methods[1].Instructions)

	result := f.app.SubmitCheckout(context.Background(), checkout.Form{
		Email:         "ana@example.com",
		PaymentMethod: models.PaymentBinance,
		Reference:     "REF-991",
	})
	require.NoError(t, result.Err)
	assert.Equal(t, checkout.Success, result.State)
	assert.Equal(t, 2, result.Submitted)

	require.Len(t, backend.orders, 2)
	assert.Equal(t, "20", backend.orders[0].Monto.String())
	assert.Equal(t, "123", backend.orders[0].UsuarioID)
	assert.True(t, f.app.Cart().Empty)
	assert.Empty(t, f.app.Checkout().Form.Reference)

	assert.Eventually(t, func() bool {
		return f.app.CurrentView() == ViewCatalog
	}, time.Second, 5*time.Millisecond)
}

func TestSubmitCheckout_PartialFailureKeepsCart(t *testing.T) {
	backend := &fakeBackend{rate: "100", failAt: 2, user: &models.Session{UserID: "3", Email: "ana@example.com"}}
	f := started(t, backend)
	addFreeFire(t, f.app, "1", "123")
	addFreeFire(t, f.app, "2", "123")
	require.NoError(t, f.app.BeginCheckout(context.Background()))

	result := f.app.SubmitCheckout(context.Background(), checkout.Form{
		Email:         "ana@example.com",
		PaymentMethod: models.PaymentPagoMovil,
		Reference:     "0001",
	})
	assert.Equal(t, checkout.Failed, result.State)
	assert.Equal(t, 1, result.Submitted)
	require.NotNil(t, result.FailedLine)
	assert.Equal(t, "310 Diamantes", result.FailedLine.PaqueteNombre)

	assert.Equal(t, 2, f.app.Cart().Count)
	assert.Equal(t, ViewPayment, f.app.CurrentView())
	assert.Equal(t, "0001", f.app.Checkout().Form.Reference)
	assert.Contains(t, f.app.State().Notice.Message, "1 de 2")
}

func TestSubmitCheckout_SessionExpiredSendsToLogin(t *testing.T) {
	backend := &fakeBackend{rate: "100", user: &models.Session{UserID: "3", Email: "ana@example.com"}}
	f := started(t, backend)
	addFreeFire(t, f.app, "1", "123")
	require.NoError(t, f.app.BeginCheckout(context.Background()))
	backend.setUser(nil)

	result := f.app.SubmitCheckout(context.Background(), checkout.Form{
		Email:         "ana@example.com",
		PaymentMethod: models.PaymentPagoMovil,
		Reference:     "0001",
	})
	assert.True(t, result.AuthRedirect)
	assert.Equal(t, ViewLogin, f.app.CurrentView())
	assert.Equal(t, 1, f.app.Cart().Count)
	assert.Empty(t, backend.orders)
}

func TestRateChange_PublishesPrices(t *testing.T) {
	f := newFixture(t, &fakeBackend{rate: "155.5"})
	events, cancel := f.app.Subscribe()
	defer cancel()

	f.app.Start(context.Background())

	timeout := time.After(time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == EventPrices && e.Rate != "" {
				assert.Equal(t, "155.5", e.Rate)
				return
			}
		case <-timeout:
			t.Fatal("no prices event")
		}
	}
}

func TestDismissNotice_ClearsAndPublishes(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})
	_, err := f.app.AddPackage(context.Background(), 7, "1", "")
	require.Error(t, err)
	require.NotNil(t, f.app.State().Notice)

	events, cancel := f.app.Subscribe()
	defer cancel()
	f.app.DismissNotice()

	assert.Nil(t, f.app.State().Notice)
	select {
	case e := <-events:
		assert.Equal(t, EventNotice, e.Kind)
		assert.Nil(t, e.Notice)
	case <-time.After(time.Second):
		t.Fatal("no notice event")
	}

	f.app.DismissNotice()
	select {
	case e := <-events:
		t.Fatalf("unexpected event %v", e.Kind)
	default:
	}
}

func TestReload_NewRateRepricesWithoutShopperAction(t *testing.T) {
	backend := &fakeBackend{rate: "142.00"}
	f := started(t, backend)
	addFreeFire(t, f.app, "1", "123")
	f.app.SetCurrency(currency.Local)
	require.Equal(t, "Bs. 1420.00", f.app.Cart().Total)

	backend.mu.Lock()
	backend.rate = "150.00"
	backend.mu.Unlock()
	f.app.Reload(context.Background())

	assert.Equal(t, "Bs. 1500.00", f.app.Cart().Total)
	assert.Equal(t, "10.00", f.app.Cart().TotalUSD)
}

func TestCatalogFilter(t *testing.T) {
	f := started(t, &fakeBackend{rate: "100"})

	assert.Len(t, f.app.Catalog(models.CategoryGames, "").Products, 1)
	byTag := f.app.Catalog("", "garena").Products
	require.Len(t, byTag, 1)
	assert.Equal(t, 7, byTag[0].ID)
	assert.Empty(t, f.app.Catalog("", "minecraft").Products)
}

func TestAccount_ShowsHistoryInDisplayCurrency(t *testing.T) {
	backend := &fakeBackend{
		rate: "100",
		user: &models.Session{UserID: "3", Email: "ana@example.com"},
		history: []models.PurchaseRecord{
			{ID: "1", Producto: "Free Fire", Paquete: "100 Diamantes", Monto: decimal.RequireFromString("10"), Estado: "pendiente"},
		},
	}
	f := started(t, backend)
	f.app.SetCurrency(currency.Local)

	view, err := f.app.Account(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Purchases, 1)
	assert.Equal(t, "Bs. 1000.00", view.Purchases[0].MontoTexto)

	f.app.Logout(context.Background())
	_, err = f.app.Account(context.Background())
	assert.ErrorIs(t, err, global.ErrAuth)
	assert.Equal(t, ViewLogin, f.app.CurrentView())
}

func TestAttemptSummary_AdminOnly(t *testing.T) {
	backend := &fakeBackend{rate: "100", user: &models.Session{UserID: "3", Email: "ana@example.com"}}
	f := started(t, backend)

	_, err := f.app.AttemptSummary(context.Background())
	assert.Equal(t, 403, global.HTTPStatus(err))

	backend.setUser(&models.Session{UserID: "1", Email: "admin@example.com", IsAdmin: true})
	summary, err := f.app.AttemptSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 3, summary[0].OrdersCreated)

	report, err := f.app.AttemptReport(context.Background())
	require.NoError(t, err)
	assert.False(t, report.AIEnabled)
	assert.Equal(t, "2 intentos de compra, 0 con órdenes parciales por conciliar", report.Data.Summary)
}

func TestRecentAttempts_AdminLookupByBuyer(t *testing.T) {
	backend := &fakeBackend{rate: "100", user: &models.Session{UserID: "3", Email: "ana@example.com"}}
	f := started(t, backend)
	attempts := f.app.attempts.(*fakeAttempts)
	attempts.recent = []models.CheckoutAttempt{{AttemptID: "a1", BuyerEmail: "luis@example.com", Status: "failed", Submitted: 1}}

	_, err := f.app.RecentAttempts(context.Background(), "luis@example.com", 5)
	assert.Equal(t, 403, global.HTTPStatus(err))

	backend.setUser(&models.Session{UserID: "1", Email: "admin@example.com", IsAdmin: true})
	_, err = f.app.RecentAttempts(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, global.ErrValidation)

	got, err := f.app.RecentAttempts(context.Background(), " luis@example.com ", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].AttemptID)
	assert.Equal(t, "luis@example.com", attempts.lastEmail)
	assert.Equal(t, int64(maxRecentAttempts), attempts.lastLimit)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	f := newFixture(t, &fakeBackend{rate: "100"})
	events, cancel := f.app.Subscribe()
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)
}
