package middleware

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNextCalledMultipleTimes is returned when a step resumes its chain
	// more than once.
	ErrNextCalledMultipleTimes = errors.New("next() called multiple times")

	// ErrNotCallable is returned when a chain contains a nil step.
	ErrNotCallable = errors.New("middleware must be composed of functions")
)

// Next resumes the chain at the following step.
type Next func() error

// Step is a unit of a chain. A step may call next at most once; returning
// without calling it ends the chain.
type Step func(c *Context, next Next) error

// Compose returns a single step running steps as nested continuations:
// steps[0] wraps steps[1] which wraps ... the next passed to the result.
func Compose(steps ...Step) (Step, error) {
	for i, s := range steps {
		if s == nil {
			return nil, fmt.Errorf("%w: step %d is nil", ErrNotCallable, i)
		}
	}

	chain := make([]Step, len(steps))
	copy(chain, steps)

	return func(c *Context, next Next) error {
		var (
			mu    sync.Mutex
			index = -1
		)

		var dispatch func(i int) error
		dispatch = func(i int) error {
			mu.Lock()
			if i <= index {
				mu.Unlock()
				return ErrNextCalledMultipleTimes
			}
			index = i
			mu.Unlock()

			if i == len(chain) {
				if next == nil {
					return nil
				}
				return next()
			}

			return chain[i](c.active(), func() error {
				return dispatch(i + 1)
			})
		}

		return dispatch(0)
	}, nil
}

// MustCompose is like Compose but panics on a nil step.
func MustCompose(steps ...Step) Step {
	step, err := Compose(steps...)
	if err != nil {
		panic(err)
	}
	return step
}

// Continue is a step that only calls next.
func Continue(_ *Context, next Next) error {
	return next()
}

// noop is the continuation handed to side branches that must not be able to
// resume the outer chain.
func noop() error {
	return nil
}
