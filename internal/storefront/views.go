package storefront

import (
	"github.com/shopspring/decimal"

	"julianmorley.ca/con-plar/topup-storefront/pkg/catalog"
	"julianmorley.ca/con-plar/topup-storefront/pkg/checkout"
	"julianmorley.ca/con-plar/topup-storefront/pkg/currency"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// Views are read models. Every price string in one view is rendered with the
// same mode and rate.

type ProductCard struct {
	ID          int             `json:"id"`
	Nombre      string          `json:"nombre"`
	Categoria   models.Category `json:"categoria"`
	Imagen      string          `json:"imagen"`
	Etiquetas   []string        `json:"etiquetas,omitempty"`
	PrecioDesde string          `json:"precio_desde,omitempty"`
}

type CatalogView struct {
	Currency      currency.Mode  `json:"currency"`
	CurrencyLabel string         `json:"currency_label"`
	Rate          string         `json:"rate"`
	Logo          string         `json:"logo,omitempty"`
	Carousel      []string       `json:"carousel,omitempty"`
	Products      []ProductCard  `json:"productos"`
	Source        catalog.Source `json:"source"`
	Loading       bool           `json:"loading"`
}

type PackageView struct {
	ID       string `json:"id"`
	Nombre   string `json:"nombre"`
	Precio   string `json:"precio"`
	Selected bool   `json:"selected"`
}

type ProductView struct {
	ProductCard
	Descripcion      string        `json:"descripcion"`
	RequiresPlayerID bool          `json:"requiere_id_jugador"`
	Paquetes         []PackageView `json:"paquetes"`
	Seleccionado     *PackageView  `json:"seleccionado,omitempty"`
}

type CartLineView struct {
	ID             int64  `json:"id"`
	ProductoID     int    `json:"productoId"`
	ProductoNombre string `json:"productoNombre"`
	PaqueteNombre  string `json:"paqueteNombre"`
	UsuarioID      string `json:"usuarioId,omitempty"`
	Imagen         string `json:"imagen,omitempty"`
	Cantidad       int    `json:"cantidad"`
	Precio         string `json:"precio"`
	Subtotal       string `json:"subtotal"`
}

type CartView struct {
	Currency currency.Mode  `json:"currency"`
	Lines    []CartLineView `json:"lineas"`
	Count    int            `json:"cantidad"`
	Total    string         `json:"total"`
	TotalUSD string         `json:"total_usd"`
	Empty    bool           `json:"vacio"`
}

type PaymentOption struct {
	Method       models.PaymentMethod `json:"metodo"`
	Instructions string               `json:"instrucciones"`
}

type CheckoutView struct {
	Cart    CartView        `json:"carrito"`
	Form    checkout.Form   `json:"formulario"`
	Methods []PaymentOption `json:"metodos"`
	State   checkout.State  `json:"estado"`
	Session *models.Session `json:"sesion,omitempty"`
}

type PurchaseView struct {
	models.PurchaseRecord
	MontoTexto string `json:"monto_texto"`
}

type AccountView struct {
	Session   *models.Session `json:"sesion"`
	Purchases []PurchaseView  `json:"compras"`
}

// StateView is the page shell: current view, badge count, session and notice.
type StateView struct {
	View      View            `json:"view"`
	Currency  currency.Mode   `json:"currency"`
	Rate      string          `json:"rate"`
	Count     int             `json:"cart_count"`
	Session   *models.Session `json:"session,omitempty"`
	Notice    *Notice         `json:"notice,omitempty"`
	ProductID int             `json:"product_id,omitempty"`
	Loading   bool            `json:"loading"`
	Checkout  checkout.State  `json:"checkout"`
}

// pricer snapshots mode and rate so a whole view renders consistently.
func (a *App) pricer() (func(decimal.Decimal) string, currency.Mode, decimal.Decimal) {
	mode := a.Mode()
	rate := a.catalog.Rate()
	return func(amount decimal.Decimal) string {
		return a.converter.Display(amount, mode, rate)
	}, mode, rate
}

func card(p models.Product, price func(decimal.Decimal) string) ProductCard {
	c := ProductCard{
		ID:        p.ID,
		Nombre:    p.Nombre,
		Categoria: p.Categoria,
		Imagen:    p.Imagen,
		Etiquetas: p.Tags(),
	}
	if minPrice, ok := p.MinPrice(); ok {
		c.PrecioDesde = price(minPrice)
	}
	return c
}

// Catalog lists products, optionally filtered by category and search text.
func (a *App) Catalog(category models.Category, query string) CatalogView {
	price, mode, rate := a.pricer()
	cfg := a.catalog.Config()

	products := a.catalog.Filter(category, query)
	view := CatalogView{
		Currency:      mode,
		CurrencyLabel: mode.Label(),
		Rate:          rate.StringFixed(2),
		Logo:          cfg.Logo,
		Carousel:      cfg.Carousel(),
		Products:      make([]ProductCard, 0, len(products)),
		Source:        a.catalog.Source(),
		Loading:       a.catalog.Loading(),
	}
	for _, p := range products {
		view.Products = append(view.Products, card(p, price))
	}
	return view
}

// Product renders productID, or the open product when productID is zero.
func (a *App) Product(productID int) (ProductView, error) {
	a.mu.Lock()
	if productID == 0 {
		productID = a.productID
	}
	var selectedID models.FlexibleID
	if a.selected != nil && productID == a.productID {
		selectedID = a.selected.ID
	}
	a.mu.Unlock()

	p, ok := a.catalog.Product(productID)
	if !ok {
		return ProductView{}, errProductNotFound
	}
	price, _, _ := a.pricer()
	view := ProductView{
		ProductCard:      card(p, price),
		Descripcion:      p.Descripcion,
		RequiresPlayerID: p.Categoria.RequiresPlayerID(),
		Paquetes:         make([]PackageView, 0, len(p.Paquetes)),
	}
	for _, pkg := range p.Paquetes {
		pv := PackageView{
			ID:       string(pkg.ID),
			Nombre:   pkg.Nombre,
			Precio:   price(pkg.Precio),
			Selected: selectedID != "" && pkg.ID == selectedID,
		}
		view.Paquetes = append(view.Paquetes, pv)
		if pv.Selected {
			sel := pv
			view.Seleccionado = &sel
		}
	}
	return view, nil
}

// Cart renders one snapshot of the lines; count and total derive from it.
func (a *App) Cart() CartView {
	price, mode, _ := a.pricer()
	lines := a.cart.Lines()

	total := decimal.Zero
	view := CartView{
		Currency: mode,
		Lines:    make([]CartLineView, 0, len(lines)),
		Empty:    len(lines) == 0,
	}
	for i := range lines {
		l := &lines[i]
		total = total.Add(l.Subtotal())
		view.Count += l.Cantidad
		view.Lines = append(view.Lines, CartLineView{
			ID:             l.ID,
			ProductoID:     l.ProductoID,
			ProductoNombre: l.ProductoNombre,
			PaqueteNombre:  l.PaqueteNombre,
			UsuarioID:      l.UsuarioID,
			Imagen:         l.Imagen,
			Cantidad:       l.Cantidad,
			Precio:         price(l.Precio),
			Subtotal:       price(l.Subtotal()),
		})
	}
	view.Total = price(total)
	view.TotalUSD = total.StringFixed(2)
	return view
}

// Checkout renders the payment view with the instructions for each method.
func (a *App) Checkout() CheckoutView {
	cfg := a.catalog.Config()
	a.mu.Lock()
	form := a.draft
	a.mu.Unlock()

	return CheckoutView{
		Cart: a.Cart(),
		Form: form,
		Methods: []PaymentOption{
			{Method: models.PaymentPagoMovil, Instructions: cfg.PaymentInstructions(models.PaymentPagoMovil)},
			{Method: models.PaymentBinance, Instructions: cfg.PaymentInstructions(models.PaymentBinance)},
		},
		State:   a.checkout.State(),
		Session: a.session.Current(),
	}
}

func (a *App) State() StateView {
	a.mu.Lock()
	view := StateView{
		View:      a.view,
		Currency:  a.mode,
		Notice:    a.notice,
		ProductID: a.productID,
	}
	a.mu.Unlock()

	view.Rate = a.catalog.Rate().StringFixed(2)
	view.Count = a.cart.Count()
	view.Session = a.session.Current()
	view.Loading = a.catalog.Loading()
	view.Checkout = a.checkout.State()
	return view
}
