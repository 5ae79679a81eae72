package middleware

type teeConfig struct {
	post bool
}

// TeeOption configures Tee.
type TeeOption func(*teeConfig)

// Post makes a Tee run its function after the rest of the chain returns.
func Post() TeeOption {
	return func(cfg *teeConfig) {
		cfg.post = true
	}
}

// Tee runs fn as a side effect before the rest of the chain, or after it
// with Post. fn receives a no-op continuation; its error ends the chain.
// A post function does not run when the chain failed.
func Tee(fn Step, opts ...TeeOption) Step {
	var cfg teeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *Context, next Next) error {
		if !cfg.post {
			if err := fn(c, noop); err != nil {
				return err
			}
		}

		if err := next(); err != nil {
			return err
		}

		if cfg.post {
			return fn(c, noop)
		}
		return nil
	}
}

// TeePost is shorthand for Tee(fn, Post()).
func TeePost(fn Step) Step {
	return Tee(fn, Post())
}
