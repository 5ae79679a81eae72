package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		c := middleware.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil))

		var seen string
		err := RequestID()(c, func() error {
			seen = GetRequestID(c)
			return nil
		})
		require.NoError(t, err)

		_, perr := uuid.Parse(seen)
		assert.NoError(t, perr)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		c := middleware.NewContext(w, req)

		require.NoError(t, RequestID()(c, func() error { return nil }))
		assert.Equal(t, "abc-123", GetRequestID(c))
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("custom config", func(t *testing.T) {
		w := httptest.NewRecorder()
		c := middleware.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil))
		step := RequestIDWithConfig(RequestIDConfig{
			HeaderName: "X-Trace",
			Generator:  func() string { return "fixed" },
		})

		require.NoError(t, step(c, func() error { return nil }))
		assert.Equal(t, "fixed", GetRequestID(c))
		assert.Equal(t, "fixed", w.Header().Get("X-Trace"))
	})

	t.Run("without request", func(t *testing.T) {
		c := middleware.NewContext(nil, nil)
		require.NoError(t, RequestID()(c, func() error { return nil }))
		assert.NotEmpty(t, GetRequestID(c))
	})
}

func TestGetRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestID(middleware.NewContext(nil, nil)))
}
