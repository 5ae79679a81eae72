// Package cache stores rendered GET responses in memory or in Redis and
// serves them back as conditional steps.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a byte store with per-entry expiry
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Config holds settings shared by the backends
type Config struct {
	// TTL applies when Set is called with a zero ttl
	TTL time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:    5 * time.Minute,
		Prefix: "a7router:cache:",
	}
}
