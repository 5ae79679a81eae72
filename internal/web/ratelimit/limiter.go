// Package ratelimit limits requests per key, in memory or in Redis, and
// exposes limiters as predicates for conditional steps.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"go.uber.org/zap"
)

// Limiter decides whether one more request is allowed for a key
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info is the state of a key after a call to Allow
type Info struct {
	// Limit is the number of requests allowed per window
	Limit int
	// Remaining is what is left of Limit in the current window
	Remaining int
	// ResetAt is when the window starts over
	ResetAt time.Time
	Allowed bool
}

// KeyFunc returns the key a request is limited by. An empty key skips the
// limiter.
type KeyFunc func(c *middleware.Context) string

// Config configures Predicate and Step
type Config struct {
	Limiter Limiter
	// Key defaults to ClientIP
	Key KeyFunc
	// FailOpen lets requests through when the limiter fails instead of
	// returning its error
	FailOpen bool
	Logger   *zap.Logger
}

type infoKey struct{}

// InfoFrom returns the limiter state recorded by Predicate
func InfoFrom(c *middleware.Context) (*Info, bool) {
	info, ok := c.Value(infoKey{}).(*Info)
	return info, ok
}

// Predicate returns a predicate holding while the request key is under its
// limit. It sets the X-RateLimit-* headers and records the Info on the
// context.
func Predicate(cfg Config) middleware.Predicate {
	key := cfg.Key
	if key == nil {
		key = ClientIP
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *middleware.Context) (bool, error) {
		k := key(c)
		if k == "" {
			return true, nil
		}

		info, err := cfg.Limiter.Allow(c.Context(), k)
		if err != nil {
			if cfg.FailOpen {
				logger.Warn("rate limiter failed, letting request through",
					zap.String("key", k),
					zap.Error(err),
				)
				return true, nil
			}
			return false, err
		}

		c.Set(infoKey{}, info)
		if c.Writer != nil {
			h := c.Writer.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
		}
		return info.Allowed, nil
	}
}

// ErrLimitExceeded is returned by Reject
var ErrLimitExceeded = router.NewHTTPError(http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")

// Reject ends the chain with ErrLimitExceeded and a Retry-After header
func Reject(c *middleware.Context, _ middleware.Next) error {
	if info, ok := InfoFrom(c); ok && c.Writer != nil {
		retry := int64(time.Until(info.ResetAt).Seconds())
		if retry < 0 {
			retry = 0
		}
		c.Writer.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	}
	return ErrLimitExceeded
}

// Step continues the chain while the request key is under its limit and
// rejects the request otherwise.
func Step(cfg Config) middleware.Step {
	return middleware.If(Predicate(cfg), nil, Reject)
}

// ClientIP keys requests by the first X-Forwarded-For address, falling back
// to the remote address.
func ClientIP(c *middleware.Context) string {
	if c.Request == nil {
		return ""
	}
	if xff := c.Request.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := c.Request.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
