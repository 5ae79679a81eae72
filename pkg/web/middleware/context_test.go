package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forkKey struct{}

func TestContextFork(t *testing.T) {
	w := httptest.NewRecorder()
	c := NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set("before", 1)

	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()
	other := httptest.NewRecorder()

	child := c.Fork(ctx, other)
	assert.Equal(t, 1, child.Value("before"))
	assert.Same(t, other, child.Writer)
	assert.Same(t, child, c.active())

	got, ok := FromRequest(child.Request)
	require.True(t, ok)
	assert.Same(t, child, got)

	cancel()
	assert.Error(t, child.Context().Err())
	assert.NoError(t, c.Context().Err())

	child.Set("after", 2)
	child.Handler = "Orders.List"
	assert.Nil(t, c.Value("after"))

	c.Join(child)
	assert.Same(t, c, c.active())
	assert.Equal(t, 2, c.Value("after"))
	assert.Equal(t, "Orders.List", c.Handler)
	assert.Same(t, w, c.Writer)
}

func TestComposeDispatchesToFork(t *testing.T) {
	c := NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var forked, seen *Context
	chain := MustCompose(
		func(c *Context, next Next) error {
			forked = c.Fork(c.Context(), c.Writer)
			err := next()
			c.Join(forked)
			return err
		},
		func(c *Context, next Next) error {
			seen = c
			c.Set(forkKey{}, "inner")
			return next()
		},
	)

	require.NoError(t, chain(c, nil))
	assert.Same(t, forked, seen)
	assert.Equal(t, "inner", c.Value(forkKey{}))
}

func TestContextValuesConcurrent(t *testing.T) {
	c := NewContext(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(i, j)
				_ = c.Value(i)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		assert.Equal(t, 99, c.Value(i))
	}
}
