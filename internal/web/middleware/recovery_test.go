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

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := middleware.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	err := Recovery(zap.New(core))(c, func() error {
		panic("something went wrong")
	})

	require.Error(t, err)
	var he *router.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Contains(t, err.Error(), "something went wrong")

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/boom", entries[0].ContextMap()["path"])
	assert.Contains(t, entries[0].ContextMap()["stack"], "recovery_test.go")
}

func TestRecoveryErrorValue(t *testing.T) {
	cause := errors.New("typed")
	c := middleware.NewContext(nil, nil)

	err := Recovery(nil)(c, func() error {
		panic(cause)
	})
	assert.ErrorIs(t, err, cause)
}

func TestRecoveryPassesThrough(t *testing.T) {
	want := errors.New("plain")
	err := Recovery(nil)(middleware.NewContext(nil, nil), func() error { return want })
	assert.Same(t, want, err)
}

func TestRecoveryAbortHandler(t *testing.T) {
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		_ = Recovery(nil)(middleware.NewContext(nil, nil), func() error {
			panic(http.ErrAbortHandler)
		})
	})
}

func TestRecoveryThroughRouter(t *testing.T) {
	rt := router.New(router.Options{})
	require.NoError(t, rt.Use(Recovery(nil)))
	_, err := rt.Get("/", "boom", func(*middleware.Context, middleware.Next) error {
		panic("nope")
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	rt.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
}
