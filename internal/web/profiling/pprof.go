// Package profiling exposes the pprof endpoints as an annotated controller.
//
// The endpoints leak runtime internals. Register them behind an
// authenticating guard, and only when debugging.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/ark7/a7router/pkg/web/controller"
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/go-chi/chi/v5"
)

// Config holds profiling configuration
type Config struct {
	// Path is the URL path prefix for profiling endpoints (default: "/debug/pprof")
	Path string

	// BlockRate sets the block profiling rate (0 = disabled)
	BlockRate int

	// MutexFraction sets the mutex profiling fraction (0 = disabled)
	MutexFraction int
}

// DefaultConfig returns default profiling configuration
func DefaultConfig() Config {
	return Config{
		Path:          "/debug/pprof",
		BlockRate:     1,
		MutexFraction: 1,
	}
}

// profiles are the named runtime profiles served under /{profile}
var profiles = map[string]bool{
	"allocs":       true,
	"block":        true,
	"goroutine":    true,
	"heap":         true,
	"mutex":        true,
	"threadcreate": true,
}

var errUnknownProfile = router.NewHTTPError(http.StatusNotFound, "NOT_FOUND", "Unknown profile")

// Controller serves pprof
type Controller struct {
	controller.Base
}

// Index lists the available profiles
func (p *Controller) Index(c *middleware.Context) error {
	pprof.Index(c.Writer, c.Request)
	return nil
}

// Cmdline responds with the running program's command line
func (p *Controller) Cmdline(c *middleware.Context) error {
	pprof.Cmdline(c.Writer, c.Request)
	return nil
}

// Profile responds with a CPU profile
func (p *Controller) Profile(c *middleware.Context) error {
	pprof.Profile(c.Writer, c.Request)
	return nil
}

// Symbol looks up program counters
func (p *Controller) Symbol(c *middleware.Context) error {
	pprof.Symbol(c.Writer, c.Request)
	return nil
}

// SymbolPost is Symbol for counters posted in the body
func (p *Controller) SymbolPost(c *middleware.Context) error {
	return p.Symbol(c)
}

// Trace responds with an execution trace
func (p *Controller) Trace(c *middleware.Context) error {
	pprof.Trace(c.Writer, c.Request)
	return nil
}

// Lookup serves a named runtime profile
func (p *Controller) Lookup(c *middleware.Context) error {
	name := chi.URLParam(c.Request, "profile")
	if !profiles[name] {
		return errUnknownProfile
	}
	pprof.Handler(name).ServeHTTP(c.Writer, c.Request)
	return nil
}

// Stats responds with RuntimeStats as JSON
func (p *Controller) Stats(c *middleware.Context) error {
	return router.WriteJSON(c.Writer, http.StatusOK, RuntimeStats())
}

// Register defines Controller on r under cfg.Path. guard runs before
// every endpoint.
func Register(r *controller.Registry, cfg Config, guard ...*controller.Middleware) error {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.BlockRate > 0 {
		runtime.SetBlockProfileRate(cfg.BlockRate)
	}
	if cfg.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.MutexFraction)
	}

	return controller.Define(r, func() *Controller { return &Controller{} },
		controller.Name("Profiling"),
		controller.Config(router.Options{Prefix: cfg.Path}),
		controller.Use(guard...),
		controller.Member("Index", controller.Get("/")),
		controller.Member("Cmdline", controller.Get("/cmdline")),
		controller.Member("Profile", controller.Get("/profile")),
		controller.Member("Symbol", controller.Get("/symbol")),
		controller.Member("SymbolPost", controller.Handler(controller.HandlerOptions{
			Method: http.MethodPost,
			Path:   "/symbol",
			Name:   "symbol",
		})),
		controller.Member("Trace", controller.Get("/trace")),
		controller.Member("Stats", controller.Get("/stats")),
		controller.Member("Lookup", controller.Get("/{profile}")),
	)
}

// Handler builds the profiling controller on r
func Handler(r *controller.Registry) (http.Handler, error) {
	p, err := controller.New[*Controller](r)
	if err != nil {
		return nil, err
	}
	return r.Handler(p)
}

// Stats are runtime statistics served by the stats endpoint
type Stats struct {
	Goroutines int         `json:"goroutines"`
	Memory     MemoryStats `json:"memory"`
	CPU        CPUStats    `json:"cpu"`
}

// MemoryStats is a subset of runtime.MemStats
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// CPUStats describes the processors available to the program
type CPUStats struct {
	NumCPU     int   `json:"num_cpu"`
	NumCgoCall int64 `json:"num_cgo_call"`
}

// RuntimeStats returns current runtime statistics
func RuntimeStats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Stats{
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
		CPU: CPUStats{
			NumCPU:     runtime.NumCPU(),
			NumCgoCall: runtime.NumCgoCall(),
		},
	}
}
