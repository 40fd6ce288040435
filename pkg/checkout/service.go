// Package checkout submits the cart as one order per line.
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

type State string

const (
	Idle       State = "idle"
	Submitting State = "submitting"
	Success    State = "success"
	Failed     State = "failed"
)

var ErrInProgress = errors.New("checkout already in progress")

type Cart interface {
	Lines() []models.CartLine
	Clear(ctx context.Context)
}

type Auth interface {
	Require(ctx context.Context) (*models.Session, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, order models.OrderRequest) error
}

// Journal keeps a record of every attempt. Writes are best effort.
type Journal interface {
	Record(ctx context.Context, attempt models.CheckoutAttempt) error
}

type Form struct {
	Email         string               `json:"email" validate:"required,email"`
	PaymentMethod models.PaymentMethod `json:"metodo_pago" validate:"required,oneof=pago_movil binance"`
	Reference     string               `json:"referencia_pago" validate:"required"`
}

var formMessages = global.FieldMessages{
	"email.required":           "El correo es obligatorio",
	"email.email":              "Ingresa un correo válido",
	"metodo_pago.required":     "Selecciona un método de pago",
	"metodo_pago.oneof":        "Método de pago no soportado",
	"referencia_pago.required": "La referencia de pago es obligatoria",
}

func (f Form) Validate() error {
	f.Email = strings.TrimSpace(f.Email)
	f.Reference = strings.TrimSpace(f.Reference)
	return global.ValidateStruct(f, formMessages)
}

// Result is the tagged outcome of Submit.
type Result struct {
	AttemptID    string           `json:"attempt_id,omitempty"`
	State        State            `json:"state"`
	Submitted    int              `json:"submitted"`
	Total        int              `json:"total"`
	FailedLine   *models.CartLine `json:"failed_line,omitempty"`
	AuthRedirect bool             `json:"auth_redirect"`
	Err          error            `json:"-"`
}

type Service struct {
	cart    Cart
	auth    Auth
	orders  OrderCreator
	journal Journal
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

func NewService(cart Cart, auth Auth, orders OrderCreator, journal Journal, logger *zap.Logger) *Service {
	return &Service{
		cart:    cart,
		auth:    auth,
		orders:  orders,
		journal: journal,
		logger:  logger,
		now:     time.Now,
		state:   Idle,
	}
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns a finished checkout to Idle.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Submitting {
		s.state = Idle
	}
}

// Submit validates, re-verifies the session and then creates one order per cart
// line, strictly in order. The first failure stops the run; orders already
// created stay created and the cart is kept so the shopper can retry.
func (s *Service) Submit(ctx context.Context, form Form) Result {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return Result{State: s.State(), Err: global.Required("carrito", "Tu carrito está vacío")}
	}
	form.Email = strings.TrimSpace(form.Email)
	form.Reference = strings.TrimSpace(form.Reference)
	if err := form.Validate(); err != nil {
		return Result{State: s.State(), Total: len(lines), Err: err}
	}

	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return Result{State: Submitting, Total: len(lines), Err: ErrInProgress}
	}
	s.state = Submitting
	s.mu.Unlock()

	attempt := models.CheckoutAttempt{
		AttemptID:     uuid.NewString(),
		BuyerEmail:    form.Email,
		PaymentMethod: form.PaymentMethod,
		Reference:     form.Reference,
		Lines:         lines,
		LineCount:     len(lines),
		TotalUSD:      sum(lines),
		StartedAt:     s.now(),
	}
	result := Result{AttemptID: attempt.AttemptID, Total: len(lines)}
	log := s.logger.With(zap.String("attempt_id", attempt.AttemptID))

	session, err := s.auth.Require(ctx)
	if err != nil {
		result.Err = err
		result.AuthRedirect = true
	} else {
		attempt.SessionEmail = session.Email
		for i, line := range lines {
			order := models.NewOrderRequest(line, form.Email, form.PaymentMethod, form.Reference)
			if err := s.orders.CreateOrder(ctx, order); err != nil {
				failed := line
				result.FailedLine = &failed
				result.Err = err
				result.AuthRedirect = errors.Is(err, global.ErrAuth)
				log.Warn("order submission failed",
					zap.Int("line", i+1),
					zap.Int("of", len(lines)),
					zap.Int64("line_id", line.ID),
					zap.Error(err))
				break
			}
			result.Submitted++
		}
	}

	if result.Err == nil {
		s.cart.Clear(ctx)
		result.State = Success
		log.Info("checkout complete", zap.Int("orders", result.Submitted), zap.String("total_usd", attempt.TotalUSD.StringFixed(2)))
	} else {
		result.State = Failed
	}

	attempt.Submitted = result.Submitted
	attempt.Status = string(result.State)
	attempt.AuthFailure = result.AuthRedirect
	if result.Err != nil {
		attempt.Failure = global.UserMessage(result.Err)
	}
	attempt.FinishedAt = s.now()
	s.record(ctx, attempt)

	s.mu.Lock()
	s.state = result.State
	s.mu.Unlock()
	return result
}

func (s *Service) record(ctx context.Context, attempt models.CheckoutAttempt) {
	if s.journal == nil {
		return
	}
	attempt.TotalText = attempt.TotalUSD.StringFixed(2)
	if err := s.journal.Record(ctx, attempt); err != nil {
		s.logger.Warn("checkout journal write failed", zap.String("attempt_id", attempt.AttemptID), zap.Error(err))
	}
}

func sum(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].Subtotal())
	}
	return total
}
