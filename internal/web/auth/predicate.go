package auth

import (
	"net/http"
	"strings"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
)

type claimsKey struct{}

var (
	// ErrUnauthorized is returned by Unauthorized
	ErrUnauthorized = router.NewHTTPError(http.StatusUnauthorized, "UNAUTHORIZED", "Authorization required")
	// ErrForbidden is returned by Forbidden
	ErrForbidden = router.NewHTTPError(http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
)

// ClaimsFrom returns the claims stored by Authenticated
func ClaimsFrom(c *middleware.Context) (*Claims, bool) {
	claims, ok := c.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// Authenticated holds when the request carries a valid bearer token. The
// token claims are stored on the context.
func (s *Service) Authenticated() middleware.Predicate {
	return func(c *middleware.Context) (bool, error) {
		if _, ok := ClaimsFrom(c); ok {
			return true, nil
		}

		token, ok := bearer(c.Request)
		if !ok {
			return false, nil
		}
		claims, err := s.Verify(token)
		if err != nil {
			return false, nil
		}
		c.Set(claimsKey{}, claims)
		return true, nil
	}
}

// HasRole holds when the authenticated claims grant role
func HasRole(role string) middleware.Predicate {
	return func(c *middleware.Context) (bool, error) {
		claims, ok := ClaimsFrom(c)
		return ok && claims.HasRole(role), nil
	}
}

// Unauthorized ends the chain with ErrUnauthorized
func Unauthorized(c *middleware.Context, _ middleware.Next) error {
	if c.Writer != nil {
		c.Writer.Header().Set("WWW-Authenticate", "Bearer")
	}
	return ErrUnauthorized
}

// Forbidden ends the chain with ErrForbidden
func Forbidden(*middleware.Context, middleware.Next) error {
	return ErrForbidden
}

func bearer(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
