// Package middleware implements continuation-passing request chains.
//
// A Step receives the request Context and a Next continuation. Compose nests
// steps so that each one wraps the rest of the chain:
//
//	step := middleware.MustCompose(auth, logging, handler)
//	err := step(c, nil)
//
// Code before next() runs in declaration order and code after it in reverse.
// Each step may resume the chain at most once; a second call returns
// ErrNextCalledMultipleTimes. Errors are returned to the caller unchanged.
//
// If, When, Check and Tee build branching steps from a Predicate. Wrap,
// Handler and Serve bridge steps onto net/http handlers.
package middleware
