package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const (
	chainContextKey contextKey = iota
)

// Context is the per-request value handed to every step of a chain.
// Steps propagate it unchanged; the chain itself never inspects it.
type Context struct {
	Writer  http.ResponseWriter
	Request *http.Request

	// Handler is the qualified name ("Controller.member") of the handler
	// that matched the request, set by the compiled router.
	Handler string

	mu     sync.RWMutex
	values map[any]any

	// err carries a step error across net/http boundaries (see Wrap).
	err error

	// fork is the Context the rest of the chain runs against (see Fork).
	fork atomic.Pointer[Context]
}

// NewContext creates a Context for the given response writer and request.
// Both may be nil when a chain is run outside of an HTTP server.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{
		Writer:  w,
		Request: r,
		values:  make(map[any]any),
	}
}

// Context returns the request's context.Context, or context.Background
// when the Context has no request.
func (c *Context) Context() context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// Set stores a value for the lifetime of the request.
func (c *Context) Set(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// Value returns the value stored under key, or nil.
func (c *Context) Value(key any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Fork returns a child of c for running the rest of a chain on another
// goroutine. The child starts with a copy of the values of c, writes to w
// and carries ctx on its request. Until Join, chains dispatching on c hand
// the child to their remaining steps, so c itself is left untouched.
func (c *Context) Fork(ctx context.Context, w http.ResponseWriter) *Context {
	child := &Context{Writer: w, Handler: c.Handler}

	c.mu.RLock()
	child.values = make(map[any]any, len(c.values))
	for k, v := range c.values {
		child.values[k] = v
	}
	c.mu.RUnlock()

	if c.Request != nil {
		child.Request = c.Request.WithContext(context.WithValue(ctx, chainContextKey, child))
	}
	c.fork.Store(child)
	return child
}

// Join ends the fork of child, copying its values and handler name back
// into c. It must only be called once the child is no longer in use.
func (c *Context) Join(child *Context) {
	c.fork.CompareAndSwap(child, nil)

	child.mu.RLock()
	defer child.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[any]any, len(child.values))
	}
	for k, v := range child.values {
		c.values[k] = v
	}
	c.Handler = child.Handler
}

// active returns the Context the remaining steps of a chain run against
func (c *Context) active() *Context {
	for {
		next := c.fork.Load()
		if next == nil {
			return c
		}
		c = next
	}
}

// Method returns the request method, or "" without a request.
func (c *Context) Method() string {
	if c.Request == nil {
		return ""
	}
	return c.Request.Method
}

// Path returns the request URL path, or "" without a request.
func (c *Context) Path() string {
	if c.Request == nil || c.Request.URL == nil {
		return ""
	}
	return c.Request.URL.Path
}

// FromRequest extracts the chain Context attached to r by Serve.
func FromRequest(r *http.Request) (*Context, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.Context().Value(chainContextKey).(*Context)
	return c, ok
}

func (c *Context) takeErr() error {
	err := c.err
	c.err = nil
	return err
}
