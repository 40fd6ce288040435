// Package catalog keeps the live product list and store configuration.
//
// Structural data may be served from a short-lived cache so the first paint is
// never blank, but the exchange rate is fetched on every refresh and applied the
// moment it arrives.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"julianmorley.ca/con-plar/topup-storefront/pkg/currency"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

type Fetcher interface {
	GetConfig(ctx context.Context) (models.StoreConfig, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
}

type Cache interface {
	Load(ctx context.Context) (models.CatalogSnapshot, bool, error)
	IsValid(ctx context.Context) bool
	Store(ctx context.Context, cfg models.StoreConfig, products []models.Product) error
}

type Source string

const (
	SourceNone   Source = "none"
	SourceCache  Source = "cache"
	SourceServer Source = "server"
)

// RefreshResult describes one load cycle.
type RefreshResult struct {
	CacheValid  bool
	RateChanged bool
	Rate        decimal.Decimal
	ConfigErr   error
	ProductsErr error
}

type Service struct {
	fetcher   Fetcher
	cache     Cache
	converter *currency.Converter
	logger    *zap.Logger

	sfg     singleflight.Group
	loading atomic.Bool

	mu        sync.RWMutex
	config    models.StoreConfig
	products  []models.Product
	source    Source
	listeners []func(decimal.Decimal)
}

func NewService(fetcher Fetcher, cache Cache, converter *currency.Converter, logger *zap.Logger) *Service {
	return &Service{
		fetcher:   fetcher,
		cache:     cache,
		converter: converter,
		logger:    logger,
		source:    SourceNone,
	}
}

// OnRateChange registers fn to run whenever the live rate changes.
func (s *Service) OnRateChange(fn func(rate decimal.Decimal)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Warm paints from the cache, stale or not. It reports whether anything was loaded.
func (s *Service) Warm(ctx context.Context) bool {
	snapshot, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("catalog cache unreadable", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == SourceServer {
		return false
	}
	rate := s.config.Rate
	s.config = snapshot.Config
	s.config.Rate = rate
	s.products = snapshot.Products
	s.source = SourceCache
	return true
}

// Loading reports whether a refresh cycle is in flight.
func (s *Service) Loading() bool {
	return s.loading.Load()
}

// Refresh runs one load cycle. Concurrent callers share the cycle already in flight.
// Failures degrade to whatever is live; the returned error is for logging only.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	v, err, _ := s.sfg.Do("refresh", func() (interface{}, error) {
		s.loading.Store(true)
		defer s.loading.Store(false)
		return s.refresh(ctx)
	})
	result, _ := v.(RefreshResult)
	return result, err
}

func (s *Service) refresh(ctx context.Context) (RefreshResult, error) {
	result := RefreshResult{CacheValid: s.cache.IsValid(ctx)}
	if result.CacheValid {
		s.Warm(ctx)
	}

	var (
		freshConfig   models.StoreConfig
		freshProducts []models.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := s.fetcher.GetConfig(gctx)
		if err != nil {
			result.ConfigErr = fmt.Errorf("fetch config: %w", err)
			s.logger.Warn("config fetch failed, keeping previous rate", zap.Error(err))
			return nil
		}
		freshConfig = cfg
		result.RateChanged = s.applyConfig(cfg, result.CacheValid)
		return nil
	})
	if !result.CacheValid {
		g.Go(func() error {
			products, err := s.fetcher.GetProducts(gctx)
			if err != nil {
				result.ProductsErr = fmt.Errorf("fetch products: %w", err)
				s.logger.Warn("products fetch failed, serving cached catalog", zap.Error(err))
				return nil
			}
			freshProducts = products
			return nil
		})
	}
	_ = g.Wait()

	if !result.CacheValid && result.ProductsErr == nil {
		s.mu.Lock()
		s.products = freshProducts
		s.source = SourceServer
		s.mu.Unlock()

		if result.ConfigErr == nil {
			if err := s.cache.Store(ctx, freshConfig, freshProducts); err != nil {
				s.logger.Warn("catalog cache store failed", zap.Error(err))
			}
		}
	}

	result.Rate = s.Rate()
	return result, errors.Join(result.ConfigErr, result.ProductsErr)
}

// applyConfig installs a freshly fetched config. With keepStructure only the rate is taken.
func (s *Service) applyConfig(cfg models.StoreConfig, keepStructure bool) bool {
	s.converter.Remember(cfg.Rate)

	s.mu.Lock()
	previous := s.config.Rate
	if keepStructure {
		if cfg.Rate.IsPositive() {
			s.config.Rate = cfg.Rate
		}
	} else {
		rate := cfg.Rate
		if !rate.IsPositive() {
			rate = previous
		}
		s.config = cfg
		s.config.Rate = rate
	}
	changed := !previous.Equal(s.config.Rate)
	current := s.config.Rate
	listeners := append([]func(decimal.Decimal){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		s.logger.Info("exchange rate updated", zap.String("rate", current.String()), zap.String("previous", previous.String()))
		for _, fn := range listeners {
			fn(current)
		}
	}
	return changed
}

// Rate is the resolved rate every price view must use.
func (s *Service) Rate() decimal.Decimal {
	s.mu.RLock()
	configRate := s.config.Rate
	s.mu.RUnlock()
	return s.converter.Resolve(configRate)
}

func (s *Service) Config() models.StoreConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Service) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Service) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Product(nil), s.products...)
}

func (s *Service) Product(id int) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Filter returns products in category (empty for all) whose name or tags contain query.
func (s *Service) Filter(category models.Category, query string) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for i := range s.products {
		if s.products[i].Matches(category, query) {
			out = append(out, s.products[i])
		}
	}
	return out
}
