package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/crm/internal/config"
)

const keyEdgeClient = "crm:edge:client:%s"

// EdgeLimiter throttles gateway traffic per client address. It is disabled
// unless Redis is configured and a positive rate is set.
type EdgeLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewEdgeLimiter(cfg config.Config, client redis.UniversalClient) *EdgeLimiter {
	if client == nil || cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0 {
		return nil
	}
	return &EdgeLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.RPS,
		burst:  cfg.RateLimit.Burst,
	}
}

func (l *EdgeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *EdgeLimiter) Allow(ctx context.Context, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEdgeClient, strings.TrimSpace(clientIP)), l.rate, l.burst)
}
