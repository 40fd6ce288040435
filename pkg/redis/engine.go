package redis

import (
	"github.com/redis/go-redis/v9"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
)

func RedisClient(cfg global.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Protocol: 2,
	})
}
