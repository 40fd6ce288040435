// Package session mirrors the server's authentication state.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

type Backend interface {
	CurrentUser(ctx context.Context) (*models.Session, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	Logout(ctx context.Context) error
	PurchaseHistory(ctx context.Context) ([]models.PurchaseRecord, error)
}

// ErrNoSession is returned by Require when nobody is logged in.
var ErrNoSession = &global.ServiceError{
	Err:     global.ErrAuth,
	Message: "Debes iniciar sesión para continuar con la compra",
	Code:    "NO_SESSION",
}

type Manager struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.RWMutex
	current *models.Session
	// gen counts writes to current; a refresh that started before a later
	// write must not overwrite it.
	gen uint64
}

func NewManager(backend Backend, logger *zap.Logger) *Manager {
	return &Manager{backend: backend, logger: logger}
}

// Refresh asks the server who is logged in. Any failure means no session.
// When a login or logout lands while the check is in flight, the check is
// stale and the mirror it would have replaced is returned instead.
func (m *Manager) Refresh(ctx context.Context) *models.Session {
	gen := m.generation()
	s, err := m.backend.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, global.ErrAuth) {
			m.logger.Warn("session check failed", zap.Error(err))
		}
		s = nil
	}
	if !m.setIfCurrent(gen, s) {
		m.logger.Debug("dropped stale session check")
		return m.Current()
	}
	return s
}

func (m *Manager) Current() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Require re-verifies the session with the server.
func (m *Manager) Require(ctx context.Context) (*models.Session, error) {
	if s := m.Refresh(ctx); s != nil {
		return s, nil
	}
	return nil, ErrNoSession
}

func (m *Manager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	req := models.LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s, err := m.backend.Login(ctx, req)
	if err != nil {
		m.logger.Info("login rejected", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	m.set(s)
	m.logger.Info("logged in", zap.String("email", s.Email))
	return s, nil
}

func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := m.backend.Register(ctx, req); err != nil {
		m.logger.Info("registration rejected", zap.String("email", req.Email), zap.Error(err))
		return err
	}
	return nil
}

// Logout always clears the local mirror, even if the server call fails.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.backend.Logout(ctx); err != nil {
		m.logger.Warn("logout request failed", zap.Error(err))
	}
	m.set(nil)
}

// History returns past purchases, or nothing when the read fails.
func (m *Manager) History(ctx context.Context) []models.PurchaseRecord {
	records, err := m.backend.PurchaseHistory(ctx)
	if err != nil {
		m.logger.Warn("purchase history unavailable", zap.Error(err))
		return []models.PurchaseRecord{}
	}
	if records == nil {
		records = []models.PurchaseRecord{}
	}
	return records
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func (m *Manager) set(s *models.Session) {
	m.mu.Lock()
	m.current = s
	m.gen++
	m.mu.Unlock()
}

func (m *Manager) setIfCurrent(gen uint64, s *models.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.current = s
	m.gen++
	return true
}
