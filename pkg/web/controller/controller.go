package controller

import (
	"sync"

	"github.com/ark7/a7router/pkg/web/router"
)

// Controller is implemented by pointers to structs embedding Base
type Controller interface {
	controllerBase() *Base
}

// Base caches the compiled router of a controller instance. Embed it by
// value and do not copy controllers after first use.
type Base struct {
	once   sync.Once
	router *router.Router
	err    error
}

func (b *Base) controllerBase() *Base {
	return b
}
