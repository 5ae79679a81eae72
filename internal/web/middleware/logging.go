package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds configuration for the access log step
type LoggingConfig struct {
	Logger *zap.Logger
	// SkipPaths are not logged
	SkipPaths []string
}

// Logging creates an access log step writing to logger
func Logging(logger *zap.Logger) middleware.Step {
	return LoggingWithConfig(LoggingConfig{Logger: logger})
}

// LoggingWithConfig creates an access log step with custom configuration.
// Requests failing with an error are logged with the status the error
// will be rendered with.
func LoggingWithConfig(cfg LoggingConfig) middleware.Step {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *middleware.Context, next middleware.Next) error {
		if skip[c.Path()] || c.Writer == nil {
			return next()
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: c.Writer, statusCode: http.StatusOK}
		c.Writer = rw
		err := next()
		c.Writer = rw.ResponseWriter

		status := rw.statusCode
		if err != nil && !rw.wroteHeader {
			status = statusOf(err)
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int("bytes", rw.bytesWritten),
		}
		if c.Handler != "" {
			fields = append(fields, zap.String("handler", c.Handler))
		}
		if c.Request != nil {
			fields = append(fields,
				zap.String("remote_addr", c.Request.RemoteAddr),
				zap.String("user_agent", c.Request.UserAgent()),
			)
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		if ce := logger.Check(levelFor(status), "request"); ce != nil {
			ce.Write(fields...)
		}
		return err
	}
}

func statusOf(err error) int {
	var he *router.HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return http.StatusInternalServerError
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack hands the connection over for protocol upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil && !rw.wroteHeader {
		rw.statusCode = http.StatusSwitchingProtocols
		rw.wroteHeader = true
	}
	return conn, brw, err
}
