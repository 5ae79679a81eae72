package middleware

import (
	"context"
	"net/http"
)

// Serve runs h with a chain Context attached to the request and returns the
// error its steps left unhandled. An existing Context on r is reused.
func Serve(h http.Handler, w http.ResponseWriter, r *http.Request) error {
	c := attach(w, r)
	h.ServeHTTP(c.Writer, c.Request)
	return c.takeErr()
}

// Wrap adapts step into net/http middleware. The wrapped handler becomes the
// step's continuation and errors flow through the shared Context.
func Wrap(step Step) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := attach(w, r)
			c.err = step(c, func() error {
				cur := c.active()
				next.ServeHTTP(cur.Writer, cur.Request)
				return cur.takeErr()
			})
		})
	}
}

// Handler adapts a terminal step into an http.Handler.
func Handler(step Step) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := attach(w, r)
		c.err = step(c, noop)
	})
}

// FromHTTP adapts classic net/http middleware into a step. Writer and
// request replacements made by m are visible to the rest of the chain.
func FromHTTP(m func(http.Handler) http.Handler) Step {
	return func(c *Context, next Next) error {
		var err error
		h := m(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Writer, c.Request = w, r
			err = next()
		}))
		h.ServeHTTP(c.Writer, c.Request)
		return err
	}
}

// attach returns the Context carried by r, refreshed with the current
// writer and request, creating and attaching one when absent.
func attach(w http.ResponseWriter, r *http.Request) *Context {
	if c, ok := FromRequest(r); ok {
		c.Writer, c.Request = w, r
		return c
	}

	c := NewContext(w, r)
	c.Request = r.WithContext(context.WithValue(r.Context(), chainContextKey, c))
	return c
}
