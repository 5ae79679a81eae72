package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"go.uber.org/zap"
)

// ErrPanic is returned, wrapping the panic value, when a step panics
var ErrPanic = router.NewHTTPError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")

// Recovery creates a step turning panics in the rest of the chain into
// ErrPanic. http.ErrAbortHandler is re-panicked.
func Recovery(logger *zap.Logger) middleware.Step {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *middleware.Context, next middleware.Next) (err error) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}

			cause, ok := p.(error)
			if !ok {
				cause = fmt.Errorf("%v", p)
			}
			logger.Error("panic recovered",
				zap.String("request_id", GetRequestID(c)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(cause),
				zap.ByteString("stack", debug.Stack()),
			)
			err = ErrPanic.Wrap(cause)
		}()

		return next()
	}
}
