package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/crm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithoutRedisEverythingIsDisabled(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))

	cfg := config.Config{RateLimit: config.RateLimitConfig{RPS: 10, Burst: 20}}
	limiter := NewEdgeLimiter(cfg, nil)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNilLockerFailsLoudlyButReleasesQuietly(t *testing.T) {
	var l *Locker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	_, err = l.Acquire(context.Background(), "k", time.Second, 0)
	assert.Error(t, err)
	assert.NoError(t, l.Release(context.Background(), "k", "token"))
}

func TestNilBucketRejectsAllow(t *testing.T) {
	var b *TokenBucket
	_, err := b.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, bucketTTL(10, 20))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}
