package middleware

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/go-chi/chi/v5"
)

// ErrTimeout is returned when the rest of the chain outlives the timeout
var ErrTimeout = router.NewHTTPError(http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Request timeout")

// Timeout creates a step racing the rest of the chain against d. On expiry
// it returns ErrTimeout and drops whatever the chain writes afterwards. The
// chain is not interrupted; it sees a cancelled request context and its
// result is ignored. The rest of the chain runs on a fork of the Context, so
// a late chain never touches the Context the outer steps see.
func Timeout(d time.Duration) middleware.Step {
	return func(c *middleware.Context, next middleware.Next) error {
		ctx, cancel := context.WithTimeout(c.Context(), d)
		defer cancel()
		ctx = detachRoute(ctx)

		var (
			tw *timeoutWriter
			w  http.ResponseWriter
		)
		if c.Writer != nil {
			tw = &timeoutWriter{w: c.Writer, h: make(http.Header)}
			w = tw
		}
		child := c.Fork(ctx, w)

		done := make(chan error, 1)
		panics := make(chan any, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panics <- p
				}
			}()
			done <- next()
		}()

		select {
		case err := <-done:
			tw.release()
			c.Join(child)
			return err
		case p := <-panics:
			tw.release()
			c.Join(child)
			panic(p)
		case <-ctx.Done():
			if tw != nil {
				tw.timeout()
			}
			if ctx.Err() == context.DeadlineExceeded {
				return ErrTimeout
			}
			return ctx.Err()
		}
	}
}

// detachRoute gives ctx its own copy of the chi route context, which chi
// recycles as soon as the outer handler returns
func detachRoute(ctx context.Context) context.Context {
	rctx := chi.RouteContext(ctx)
	if rctx == nil {
		return ctx
	}
	cp := chi.NewRouteContext()
	cp.Routes = rctx.Routes
	cp.RoutePath = rctx.RoutePath
	cp.RouteMethod = rctx.RouteMethod
	cp.RoutePatterns = slices.Clone(rctx.RoutePatterns)
	cp.URLParams.Keys = slices.Clone(rctx.URLParams.Keys)
	cp.URLParams.Values = slices.Clone(rctx.URLParams.Values)
	return context.WithValue(ctx, chi.RouteCtxKey, cp)
}

// timeoutWriter buffers headers and drops writes after the timeout
type timeoutWriter struct {
	w http.ResponseWriter
	h http.Header

	mu          sync.Mutex
	done        bool
	wroteHeader bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.done {
		return 0, http.ErrHandlerTimeout
	}
	tw.writeHeaderLocked(http.StatusOK)
	return tw.w.Write(b)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.done {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	if tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.copyHeaders()
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) copyHeaders() {
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = v
	}
}

// release hands headers set by a chain that returned without writing to
// the underlying writer, so an error response still carries them.
func (tw *timeoutWriter) release() {
	if tw == nil {
		return
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if !tw.wroteHeader {
		tw.copyHeaders()
	}
	tw.done = true
}

func (tw *timeoutWriter) timeout() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.done = true
}
