package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/pkg/ai"
	"julianmorley.ca/con-plar/topup-storefront/pkg/checkout"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
	"julianmorley.ca/con-plar/topup-storefront/pkg/mongo"
)

var errAdminOnly = &global.ServiceError{
	Err:     global.ErrAuth,
	Message: "Solo administradores",
	Code:    "FORBIDDEN",
	Status:  http.StatusForbidden,
}

// BeginCheckout moves to the payment view. Without a session the shopper is
// sent to login and the cart is left as is.
func (a *App) BeginCheckout(ctx context.Context) error {
	if a.cart.IsEmpty() {
		err := global.Required("carrito", "Tu carrito está vacío")
		a.setNotice(errorNotice(err))
		return err
	}

	s, err := a.session.Require(ctx)
	if err != nil {
		a.sendToLogin(err)
		return err
	}

	a.checkout.Reset()
	a.mu.Lock()
	a.navigateLocked(ViewPayment)
	if a.draft.Email == "" {
		a.draft.Email = s.Email
	}
	a.mu.Unlock()
	a.events.publish(Event{Kind: EventView, View: ViewPayment})
	return nil
}

// SubmitCheckout places one order per cart line. On success the form is reset
// and the catalog is shown again after the redirect delay.
func (a *App) SubmitCheckout(ctx context.Context, form checkout.Form) checkout.Result {
	a.mu.Lock()
	a.draft = form
	a.mu.Unlock()

	result := a.checkout.Submit(ctx, form)
	switch {
	case result.State == checkout.Success:
		a.mu.Lock()
		a.draft = checkout.Form{}
		if a.redirect != nil {
			a.redirect.Stop()
		}
		a.redirect = time.AfterFunc(a.redirectDelay, a.finishCheckout)
		a.mu.Unlock()
		a.setNotice(&Notice{
			Level:   NoticeSuccess,
			Message: fmt.Sprintf("¡Compra realizada! %d órdenes registradas. Te avisaremos cuando se procesen.", result.Submitted),
		})
	case result.AuthRedirect:
		a.sendToLogin(result.Err)
	case result.Err != nil:
		n := errorNotice(result.Err)
		if result.FailedLine != nil && result.Submitted > 0 {
			n.Message = fmt.Sprintf("%s. Se registraron %d de %d órdenes; %s no se procesó.",
				n.Message, result.Submitted, result.Total, result.FailedLine.PaqueteNombre)
		}
		a.setNotice(n)
	}
	return result
}

func (a *App) finishCheckout() {
	a.mu.Lock()
	a.redirect = nil
	moved := a.view == ViewPayment
	if moved {
		a.navigateLocked(ViewCatalog)
	}
	a.mu.Unlock()

	a.checkout.Reset()
	if moved {
		a.events.publish(Event{Kind: EventView, View: ViewCatalog})
	}
}

func (a *App) sendToLogin(cause error) {
	a.mu.Lock()
	a.resumeCheckout = !a.cart.IsEmpty()
	a.navigateLocked(ViewLogin)
	a.mu.Unlock()

	a.events.publish(Event{Kind: EventView, View: ViewLogin})
	a.events.publish(Event{Kind: EventSession})
	a.setNotice(&Notice{Level: NoticeError, Message: global.UserMessage(cause)})
}

// Login authenticates and returns the shopper to checkout when login
// interrupted it.
func (a *App) Login(ctx context.Context, email, password string) (*models.Session, error) {
	s, err := a.session.Login(ctx, email, password)
	if err != nil {
		a.setNotice(errorNotice(err))
		return nil, err
	}

	a.mu.Lock()
	target := ViewCatalog
	if a.resumeCheckout && !a.cart.IsEmpty() {
		target = ViewPayment
		if a.draft.Email == "" {
			a.draft.Email = s.Email
		}
	}
	a.resumeCheckout = false
	a.navigateLocked(target)
	a.mu.Unlock()

	a.events.publish(Event{Kind: EventSession})
	a.events.publish(Event{Kind: EventView, View: target})
	a.setNotice(&Notice{Level: NoticeSuccess, Message: "Bienvenido, " + displayName(s)})
	return s, nil
}

func (a *App) Register(ctx context.Context, req models.RegisterRequest) error {
	if err := a.session.Register(ctx, req); err != nil {
		a.setNotice(errorNotice(err))
		return err
	}
	a.Navigate(ViewLogin)
	a.setNotice(&Notice{Level: NoticeSuccess, Message: "Cuenta creada. Inicia sesión para continuar."})
	return nil
}

func (a *App) Logout(ctx context.Context) {
	a.session.Logout(ctx)

	a.mu.Lock()
	a.resumeCheckout = false
	a.draft = checkout.Form{}
	a.navigateLocked(ViewCatalog)
	a.mu.Unlock()

	a.events.publish(Event{Kind: EventSession})
	a.events.publish(Event{Kind: EventView, View: ViewCatalog})
	a.setNotice(&Notice{Level: NoticeInfo, Message: "Sesión cerrada"})
}

// Account shows the logged-in profile and purchase history.
func (a *App) Account(ctx context.Context) (AccountView, error) {
	s, err := a.session.Require(ctx)
	if err != nil {
		a.sendToLogin(err)
		return AccountView{}, err
	}
	records := a.session.History(ctx)

	price, _, _ := a.pricer()
	view := AccountView{Session: s, Purchases: make([]PurchaseView, 0, len(records))}
	for _, r := range records {
		view.Purchases = append(view.Purchases, PurchaseView{PurchaseRecord: r, MontoTexto: price(r.Monto)})
	}
	return view, nil
}

func (a *App) requireAdmin(ctx context.Context) error {
	s, err := a.session.Require(ctx)
	if err != nil {
		return err
	}
	if !s.IsAdmin {
		return errAdminOnly
	}
	return nil
}

// AttemptSummary reports checkout outcomes from the journal. Admins only.
func (a *App) AttemptSummary(ctx context.Context) ([]mongo.AttemptSummary, error) {
	if err := a.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if a.attempts == nil {
		return []mongo.AttemptSummary{}, nil
	}
	summary, err := a.attempts.SummarizeAttempts(ctx)
	if err != nil {
		a.logger.Warn("attempt summary failed", zap.Error(err))
		return nil, global.NewServiceError(global.ErrStorage, "Resumen no disponible", "JOURNAL_UNAVAILABLE")
	}
	if summary == nil {
		summary = []mongo.AttemptSummary{}
	}
	return summary, nil
}

const maxRecentAttempts = 100

// RecentAttempts lists a buyer's newest attempts for manual reconciliation. Admins only.
func (a *App) RecentAttempts(ctx context.Context, email string, limit int64) ([]models.CheckoutAttempt, error) {
	if err := a.requireAdmin(ctx); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, global.Required("email", "Indica el correo del comprador")
	}
	if limit <= 0 || limit > maxRecentAttempts {
		limit = maxRecentAttempts
	}
	if a.attempts == nil {
		return []models.CheckoutAttempt{}, nil
	}
	attempts, err := a.attempts.RecentAttempts(ctx, email, limit)
	if err != nil {
		a.logger.Warn("recent attempts failed", zap.String("buyer", email), zap.Error(err))
		return nil, global.NewServiceError(global.ErrStorage, "Historial de intentos no disponible", "JOURNAL_UNAVAILABLE")
	}
	if attempts == nil {
		attempts = []models.CheckoutAttempt{}
	}
	return attempts, nil
}

// AttemptReport wraps the summary in a narrative report when a reporter is set.
func (a *App) AttemptReport(ctx context.Context) (*ai.Report, error) {
	summary, err := a.AttemptSummary(ctx)
	if err != nil {
		return nil, err
	}
	if a.reporter == nil {
		return &ai.Report{Status: "success", GeneratedAt: time.Now(), Data: ai.ReportData{RawData: summary}}, nil
	}
	return a.reporter.AttemptReport(ctx, summary), nil
}

func displayName(s *models.Session) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}
