package profiling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ark7/a7router/pkg/web/controller"
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, guard ...*controller.Middleware) http.Handler {
	t.Helper()
	r := controller.NewRegistry()
	require.NoError(t, Register(r, Config{}, guard...))
	h, err := Handler(r)
	require.NoError(t, err)
	return h
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestEndpoints(t *testing.T) {
	h := newHandler(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/debug/pprof/", http.StatusOK},
		{"/debug/pprof/cmdline", http.StatusOK},
		{"/debug/pprof/symbol", http.StatusOK},
		{"/debug/pprof/goroutine?debug=1", http.StatusOK},
		{"/debug/pprof/heap", http.StatusOK},
		{"/debug/pprof/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.status, get(h, tt.path).Code)
		})
	}
}

func TestSymbolPost(t *testing.T) {
	h := newHandler(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/debug/pprof/symbol", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStats(t *testing.T) {
	h := newHandler(t)

	w := get(h, "/debug/pprof/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.CPU.NumCPU)
	assert.Positive(t, stats.Memory.Sys)
}

func TestGuard(t *testing.T) {
	denied := router.NewHTTPError(http.StatusForbidden, "FORBIDDEN", "no")
	guard := controller.Func("deny", func(*middleware.Context, middleware.Next) error {
		return denied
	})
	h := newHandler(t, guard)

	assert.Equal(t, http.StatusForbidden, get(h, "/debug/pprof/").Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/debug/pprof/heap").Code)
}

func TestCustomPath(t *testing.T) {
	r := controller.NewRegistry()
	require.NoError(t, Register(r, Config{Path: "/_prof"}))
	h, err := Handler(r)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(h, "/_prof/cmdline").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/debug/pprof/cmdline").Code)
}

func TestRoutes(t *testing.T) {
	r := controller.NewRegistry()
	require.NoError(t, Register(r, DefaultConfig()))
	p, err := controller.New[*Controller](r)
	require.NoError(t, err)
	rt, err := r.Router(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"GET", "POST"}, rt.Allowed("/debug/pprof/symbol"))
	assert.True(t, rt.Match("/debug/pprof/heap", http.MethodGet))
}
