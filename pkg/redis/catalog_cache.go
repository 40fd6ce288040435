package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"

	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// cachedConfig is StoreConfig without the exchange rate, which is never cached.
type cachedConfig struct {
	PagoMovil string `json:"pago_movil"`
	Binance   string `json:"binance"`
	Logo      string `json:"logo"`
	Carousel1 string `json:"carousel1"`
	Carousel2 string `json:"carousel2"`
	Carousel3 string `json:"carousel3"`
}

type cachePayload struct {
	Config    *cachedConfig    `json:"config"`
	Productos []models.Product `json:"productos"`
	Timestamp int64            `json:"timestamp"`
}

// CatalogCache is a time-boxed copy of config and products.
type CatalogCache struct {
	client *redisclient.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

func NewCatalogCache(client *redisclient.Client, key string, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, key: key, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (c *CatalogCache) WithClock(now func() time.Time) *CatalogCache {
	c.now = now
	return c
}

func (c *CatalogCache) Store(ctx context.Context, cfg models.StoreConfig, products []models.Product) error {
	payload := cachePayload{
		Config: &cachedConfig{
			PagoMovil: cfg.PagoMovil,
			Binance:   cfg.Binance,
			Logo:      cfg.Logo,
			Carousel1: cfg.Carousel1,
			Carousel2: cfg.Carousel2,
			Carousel3: cfg.Carousel3,
		},
		Productos: products,
		Timestamp: c.now().UnixMilli(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store catalog cache: %w", err)
	}
	return nil
}

// Load returns the cached snapshot regardless of age. ok is false when nothing usable is stored.
func (c *CatalogCache) Load(ctx context.Context) (models.CatalogSnapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redisclient.Nil) {
		return models.CatalogSnapshot{}, false, nil
	}
	if err != nil {
		return models.CatalogSnapshot{}, false, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	var payload cachePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.CatalogSnapshot{}, false, fmt.Errorf("failed to unmarshal catalog cache: %w", err)
	}
	if payload.Config == nil || payload.Productos == nil {
		return models.CatalogSnapshot{}, false, nil
	}

	return models.CatalogSnapshot{
		Config: models.StoreConfig{
			PagoMovil: payload.Config.PagoMovil,
			Binance:   payload.Config.Binance,
			Logo:      payload.Config.Logo,
			Carousel1: payload.Config.Carousel1,
			Carousel2: payload.Config.Carousel2,
			Carousel3: payload.Config.Carousel3,
		},
		Products: payload.Productos,
		StoredAt: time.UnixMilli(payload.Timestamp),
	}, true, nil
}

// IsValid is true iff config and products are cached and younger than the ttl.
func (c *CatalogCache) IsValid(ctx context.Context) bool {
	snapshot, ok, err := c.Load(ctx)
	if err != nil || !ok {
		return false
	}
	return c.now().Sub(snapshot.StoredAt) < c.ttl
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
