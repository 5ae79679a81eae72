package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory Limiter refilling Capacity tokens every
// RefillRate, proportionally to elapsed time.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate time.Duration

	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucketConfig configures a TokenBucket
type TokenBucketConfig struct {
	Capacity   int
	RefillRate time.Duration
	// CleanupInterval is how often idle buckets are dropped; zero disables
	// the cleanup goroutine
	CleanupInterval time.Duration
}

// DefaultTokenBucketConfig allows 100 requests per minute
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		Capacity:        100,
		RefillRate:      time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewTokenBucket creates a TokenBucket. Close it to stop the cleanup
// goroutine.
func NewTokenBucket(cfg TokenBucketConfig) *TokenBucket {
	tb := &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   cfg.Capacity,
		refillRate: cfg.RefillRate,
		done:       make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		tb.cleanup = time.NewTicker(cfg.CleanupInterval)
		go tb.cleanupLoop()
	}
	return tb
}

// Allow takes one token from the bucket of key
func (tb *TokenBucket) Allow(_ context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastRefill: now}
		tb.buckets[key] = b
	} else if added := int(float64(tb.capacity) * now.Sub(b.lastRefill).Seconds() / tb.refillRate.Seconds()); added > 0 {
		b.tokens = min(tb.capacity, b.tokens+added)
		b.lastRefill = now
	}

	info := &Info{
		Limit:   tb.capacity,
		ResetAt: b.lastRefill.Add(tb.refillRate),
	}
	if b.tokens > 0 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = b.tokens
	return info, nil
}

func (tb *TokenBucket) cleanupLoop() {
	for {
		select {
		case <-tb.cleanup.C:
			tb.dropIdle(time.Now())
		case <-tb.done:
			return
		}
	}
}

// dropIdle removes buckets untouched for two refill periods
func (tb *TokenBucket) dropIdle(now time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > 2*tb.refillRate {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() {
		close(tb.done)
		if tb.cleanup != nil {
			tb.cleanup.Stop()
		}
	})
	return nil
}
