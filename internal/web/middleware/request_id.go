package middleware

import (
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDConfig holds configuration for the request ID step
type RequestIDConfig struct {
	// HeaderName is the header the request ID is read from and echoed in
	HeaderName string
	// Generator creates IDs for requests without one
	Generator func() string
}

// DefaultRequestIDConfig returns the default request ID configuration
func DefaultRequestIDConfig() RequestIDConfig {
	return RequestIDConfig{
		HeaderName: "X-Request-ID",
		Generator:  func() string { return uuid.New().String() },
	}
}

// RequestID creates a step that tags each request with a unique ID
func RequestID() middleware.Step {
	return RequestIDWithConfig(DefaultRequestIDConfig())
}

// RequestIDWithConfig creates a request ID step with custom configuration
func RequestIDWithConfig(cfg RequestIDConfig) middleware.Step {
	defaults := DefaultRequestIDConfig()
	if cfg.HeaderName == "" {
		cfg.HeaderName = defaults.HeaderName
	}
	if cfg.Generator == nil {
		cfg.Generator = defaults.Generator
	}

	return func(c *middleware.Context, next middleware.Next) error {
		var id string
		if c.Request != nil {
			id = c.Request.Header.Get(cfg.HeaderName)
		}
		if id == "" {
			id = cfg.Generator()
		}

		c.Set(requestIDKey{}, id)
		if c.Writer != nil {
			c.Writer.Header().Set(cfg.HeaderName, id)
		}
		return next()
	}
}

// GetRequestID returns the request ID set by RequestID
func GetRequestID(c *middleware.Context) string {
	id, _ := c.Value(requestIDKey{}).(string)
	return id
}
