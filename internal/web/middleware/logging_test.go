package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	tests := []struct {
		name   string
		next   func(c *middleware.Context) error
		status int
		level  zapcore.Level
	}{
		{
			name: "ok",
			next: func(c *middleware.Context) error {
				_, err := c.Writer.Write([]byte("hello"))
				return err
			},
			status: http.StatusOK,
			level:  zapcore.InfoLevel,
		},
		{
			name: "written client error",
			next: func(c *middleware.Context) error {
				c.Writer.WriteHeader(http.StatusNotFound)
				return nil
			},
			status: http.StatusNotFound,
			level:  zapcore.WarnLevel,
		},
		{
			name: "http error",
			next: func(*middleware.Context) error {
				return router.NewHTTPError(http.StatusTeapot, "TEAPOT", "short and stout")
			},
			status: http.StatusTeapot,
			level:  zapcore.WarnLevel,
		},
		{
			name: "plain error",
			next: func(*middleware.Context) error {
				return errors.New("boom")
			},
			status: http.StatusInternalServerError,
			level:  zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			step := middleware.MustCompose(RequestID(), Logging(zap.New(core)))

			req := httptest.NewRequest(http.MethodGet, "/pets", nil)
			c := middleware.NewContext(httptest.NewRecorder(), req)
			c.Handler = "Pets.list"
			_ = step(c, func() error { return tt.next(c) })

			entries := logs.FilterMessage("request").All()
			require.Len(t, entries, 1)
			entry := entries[0]
			fields := entry.ContextMap()

			assert.Equal(t, tt.level, entry.Level)
			assert.EqualValues(t, tt.status, fields["status"])
			assert.Equal(t, "GET", fields["method"])
			assert.Equal(t, "/pets", fields["path"])
			assert.Equal(t, "Pets.list", fields["handler"])
			assert.Equal(t, GetRequestID(c), fields["request_id"])
		})
	}
}

func TestLoggingBytesAndWriterRestore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := httptest.NewRecorder()
	c := middleware.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil))

	err := Logging(zap.New(core))(c, func() error {
		_, err := c.Writer.Write([]byte("12345"))
		return err
	})
	require.NoError(t, err)

	assert.Same(t, w, c.Writer.(*httptest.ResponseRecorder))
	assert.Equal(t, "12345", w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, 5, logs.All()[0].ContextMap()["bytes"])
}

func TestLoggingHonoursLoggerLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	step := Logging(zap.New(core))

	c := middleware.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, step(c, func() error { return nil }))
	assert.Zero(t, logs.Len())

	c = middleware.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, step(c, func() error {
		c.Writer.WriteHeader(http.StatusServiceUnavailable)
		return nil
	}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
	assert.EqualValues(t, http.StatusServiceUnavailable, logs.All()[0].ContextMap()["status"])
}

func TestLoggingSkipPaths(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	step := LoggingWithConfig(LoggingConfig{
		Logger:    zap.New(core),
		SkipPaths: []string{"/health"},
	})

	c := middleware.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	called := false
	require.NoError(t, step(c, func() error {
		called = true
		return nil
	}))

	assert.True(t, called)
	assert.Zero(t, logs.Len())
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusBadRequest)
	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rw.statusCode)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, rw.bytesWritten)
	assert.Same(t, rec, rw.Unwrap().(*httptest.ResponseRecorder))
}
