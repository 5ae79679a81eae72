package middleware

import (
	"strings"
)

// Predicate decides which branch of a conditional step runs. A predicate
// error aborts the chain and is returned unchanged.
type Predicate func(c *Context) (bool, error)

// If runs then when predicate holds and otherwise when it does not. A nil
// clause calls next instead, so If(p, then, nil) falls through on false.
func If(predicate Predicate, then, otherwise Step) Step {
	return func(c *Context, next Next) error {
		ok, err := predicate(c)
		if err != nil {
			return err
		}

		clause := otherwise
		if ok {
			clause = then
		}
		if clause == nil {
			return next()
		}
		return clause(c, next)
	}
}

// When runs clause when predicate holds, then always continues the chain.
// The clause gets a no-op continuation and cannot stop the outer chain.
func When(predicate Predicate, clause Step) Step {
	return func(c *Context, next Next) error {
		ok, err := predicate(c)
		if err != nil {
			return err
		}

		if ok && clause != nil {
			if err := clause(c, noop); err != nil {
				return err
			}
		}
		return next()
	}
}

// Check continues the chain only when predicate holds.
func Check(predicate Predicate) Step {
	return func(c *Context, next Next) error {
		ok, err := predicate(c)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return next()
	}
}

// Common predicates for convenience

// Static returns a predicate with a fixed answer.
func Static(v bool) Predicate {
	return func(*Context) (bool, error) {
		return v, nil
	}
}

// PathPrefix creates a predicate that matches requests with a path prefix
func PathPrefix(prefix string) Predicate {
	return func(c *Context) (bool, error) {
		return strings.HasPrefix(c.Path(), prefix), nil
	}
}

// PathEquals creates a predicate that matches requests with an exact path
func PathEquals(path string) Predicate {
	return func(c *Context) (bool, error) {
		return c.Path() == path, nil
	}
}

// Method creates a predicate that matches requests with a specific HTTP method
func Method(method string) Predicate {
	return func(c *Context) (bool, error) {
		return c.Method() == method, nil
	}
}

// Header creates a predicate that matches requests with a specific header
func Header(key, value string) Predicate {
	return func(c *Context) (bool, error) {
		if c.Request == nil {
			return false, nil
		}
		return c.Request.Header.Get(key) == value, nil
	}
}

// HasHeader creates a predicate that matches requests with a specific header key
func HasHeader(key string) Predicate {
	return func(c *Context) (bool, error) {
		if c.Request == nil {
			return false, nil
		}
		return c.Request.Header.Get(key) != "", nil
	}
}

// And combines multiple predicates with logical AND
func And(predicates ...Predicate) Predicate {
	return func(c *Context) (bool, error) {
		for _, p := range predicates {
			ok, err := p(c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Or combines multiple predicates with logical OR
func Or(predicates ...Predicate) Predicate {
	return func(c *Context) (bool, error) {
		for _, p := range predicates {
			ok, err := p(c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not negates a predicate
func Not(predicate Predicate) Predicate {
	return func(c *Context) (bool, error) {
		ok, err := predicate(c)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}
