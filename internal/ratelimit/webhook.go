package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatwire/chatwire/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyWebhookAccount = "webhook:account:%s"

// WebhookLimiter throttles inbound messages per connected account. When
// disabled or redis is not configured it allows everything.
type WebhookLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewWebhookLimiter(cfg config.Config, client *redis.Client) *WebhookLimiter {
	if !cfg.RateLimit.Enabled || client == nil {
		return &WebhookLimiter{}
	}
	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.RateLimit.WebhookRate,
		burst:   cfg.RateLimit.WebhookBurst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) Allow(ctx context.Context, accountAddress string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyWebhookAccount, strings.TrimSpace(accountAddress))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
