package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedMethods(t *testing.T) {
	r := New(Options{})
	_, err := r.Get("/users", "list", writeBody("list"))
	require.NoError(t, err)
	_, err = r.Post("/users", "create", writeBody("create"))
	require.NoError(t, err)

	h := r.AllowedMethods()(r.Routes())

	t.Run("allowed verb passes through", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/users")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "list", rec.Body.String())
	})

	t.Run("OPTIONS lists verbs", func(t *testing.T) {
		rec := serve(t, h, http.MethodOptions, "/users")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	})

	t.Run("other verb is 405", func(t *testing.T) {
		rec := serve(t, h, http.MethodDelete, "/users")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
		assert.Contains(t, rec.Body.String(), "METHOD_NOT_ALLOWED")
	})

	t.Run("unimplemented verb is 501", func(t *testing.T) {
		rec := serve(t, h, "PROPFIND", "/users")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("unknown path falls through", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/nothing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAllowed(t *testing.T) {
	r := New(Options{Prefix: "/v1"})
	_, err := r.Put("/items/{id}", "update", writeBody(""))
	require.NoError(t, err)
	_, err = r.Delete("/items/{id}", "delete", writeBody(""))
	require.NoError(t, err)

	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, r.Allowed("/v1/items/7"))
	assert.Empty(t, r.Allowed("/items/7"))
}

func TestAllowedMethodsMergedRouter(t *testing.T) {
	child := New(Options{Prefix: "/pets"})
	_, err := child.Get("/", "list", writeBody("list"))
	require.NoError(t, err)
	_, err = child.Post("/", "create", writeBody("create"))
	require.NoError(t, err)
	_, err = child.Get("/{id}/photos", "photos", writeBody("photos"))
	require.NoError(t, err)

	r := New(Options{Prefix: "/api"})
	require.NoError(t, r.Merge(child))
	h := r.AllowedMethods()(r.Routes())

	rec := serve(t, h, http.MethodOptions, "/api/pets")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = serve(t, h, http.MethodPut, "/api/pets")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = serve(t, h, http.MethodDelete, "/api/pets/7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, r.Allowed("/api/pets/7"))
	assert.Empty(t, r.Allowed("/api"))
}
