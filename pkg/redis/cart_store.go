package redis

import (
	"context"
	"encoding/json"
	"errors"

	redisclient "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// CartStore persists the cart as a JSON array under a single key.
// None of its methods return errors: failures are logged and treated as empty.
type CartStore struct {
	client *redisclient.Client
	key    string
	logger *zap.Logger
}

func NewCartStore(client *redisclient.Client, key string, logger *zap.Logger) *CartStore {
	return &CartStore{client: client, key: key, logger: logger}
}

func (s *CartStore) Save(ctx context.Context, lines []models.CartLine) {
	if lines == nil {
		lines = []models.CartLine{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		s.logger.Warn("cart serialize failed", zap.Error(errors.Join(global.ErrStorage, err)))
		return
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		s.logger.Warn("cart save failed", zap.String("key", s.key), zap.Error(errors.Join(global.ErrStorage, err)))
	}
}

func (s *CartStore) Load(ctx context.Context) []models.CartLine {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redisclient.Nil) {
		return []models.CartLine{}
	}
	if err != nil {
		s.logger.Warn("cart load failed", zap.String("key", s.key), zap.Error(errors.Join(global.ErrStorage, err)))
		return []models.CartLine{}
	}

	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		s.logger.Warn("stored cart is corrupt, starting empty", zap.String("key", s.key), zap.Error(err))
		return []models.CartLine{}
	}
	valid := lines[:0]
	for _, line := range lines {
		if line.Cantidad >= 1 {
			valid = append(valid, line)
		}
	}
	return valid
}

func (s *CartStore) Clear(ctx context.Context) {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.logger.Warn("cart clear failed", zap.String("key", s.key), zap.Error(errors.Join(global.ErrStorage, err)))
	}
}
