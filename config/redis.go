package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/table-points/utils"
)

// NewRedisClient returns nil when REDIS_ADDR is unset or the server does
// not answer; callers then run without a response cache.
func NewRedisClient(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		utils.ErrorLogger.WithField("addr", cfg.RedisAddr).Warnf("redis unavailable, cache disabled: %v", err)
		_ = client.Close()
		return nil
	}
	return client
}
