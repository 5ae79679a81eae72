package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*Info, error) {
	return nil, errors.New("limiter down")
}

func run(t *testing.T, step middleware.Step, req *http.Request) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := middleware.NewContext(rec, req)
	reached := false
	err := step(c, func() error {
		reached = true
		return nil
	})
	return rec, reached, err
}

func TestStep(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 1, RefillRate: time.Minute})
	defer tb.Close()
	step := Step(Config{Limiter: tb})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, reached, err := run(t, step, req)
	require.NoError(t, err)
	assert.True(t, reached)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec, reached, err = run(t, step, req)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, reached)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPredicateFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, reached, err := run(t, Step(Config{Limiter: failingLimiter{}}), req)
	assert.EqualError(t, err, "limiter down")
	assert.False(t, reached)

	_, reached, err = run(t, Step(Config{Limiter: failingLimiter{}, FailOpen: true}), req)
	assert.NoError(t, err)
	assert.True(t, reached)
}

func TestPredicateEmptyKeySkips(t *testing.T) {
	step := Step(Config{
		Limiter: failingLimiter{},
		Key:     func(*middleware.Context) string { return "" },
	})
	_, reached, err := run(t, step, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NoError(t, err)
	assert.True(t, reached)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:80", "10.0.0.3"},
		{"remote addr", nil, "1.1.1.1:80", "1.1.1.1"},
		{"remote without port", nil, "1.1.1.1", "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(middleware.NewContext(nil, req)))
		})
	}

	assert.Empty(t, ClientIP(middleware.NewContext(nil, nil)))
}
