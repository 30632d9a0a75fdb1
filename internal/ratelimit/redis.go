// Package ratelimit throttles the inbound webhook and hands out
// distributed locks for scheduler jobs.
package ratelimit

import (
	"strings"

	"github.com/chatwire/chatwire/internal/config"
	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when no address is configured; consumers
// treat a nil client as "feature disabled".
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}
