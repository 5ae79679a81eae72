// Package middleware provides the stock steps a host puts in front of
// compiled controllers: request ids, access logging, panic recovery and
// timeouts.
package middleware
