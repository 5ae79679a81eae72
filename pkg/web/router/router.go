package router

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/go-chi/chi/v5"
)

// DefaultMethods are the verbs a router implements unless Options.Methods
// says otherwise. Anything else is answered with 501 by AllowedMethods.
var DefaultMethods = []string{
	http.MethodHead,
	http.MethodOptions,
	http.MethodGet,
	http.MethodPut,
	http.MethodPatch,
	http.MethodPost,
	http.MethodDelete,
}

// routableMethods are the verbs handlers can be registered for.
var routableMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// Options configures a Router
type Options struct {
	// Prefix is prepended to every route of the router, e.g. "/api".
	Prefix string
	// Methods lists the implemented verbs (see DefaultMethods).
	Methods []string
	// ErrorHandler renders errors left unhandled by the chain.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// Merge returns o overridden by the non-zero fields of other.
func (o Options) Merge(other Options) Options {
	if other.Prefix != "" {
		o.Prefix = other.Prefix
	}
	if other.Methods != nil {
		o.Methods = append([]string(nil), other.Methods...)
	}
	if other.ErrorHandler != nil {
		o.ErrorHandler = other.ErrorHandler
	}
	return o
}

// ErrDuplicateRoute is returned when a method and pattern are routed twice
var ErrDuplicateRoute = errors.New("route already registered")

// Router manages HTTP routing using chi framework. Every route, merged ones
// included, is registered on one mux under its full pattern.
type Router struct {
	mux     chi.Router
	options Options

	// steps registered with Use; merged routes are wrapped in them
	uses []middleware.Step

	// For introspection and debugging; patterns are relative to the prefix
	routes []route
}

type route struct {
	info RouteInfo
	step middleware.Step
	// index routes also answer on their pattern with a trailing slash
	index bool
}

// RouteInfo provides metadata about a route for introspection
type RouteInfo struct {
	Pattern string
	Method  string
	Name    string
}

// New creates a new Router instance
func New(opts Options) *Router {
	opts.Prefix = normalizePrefix(opts.Prefix)
	if opts.Methods == nil {
		opts.Methods = DefaultMethods
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = DefaultErrorHandler
	}

	return &Router{
		mux:     chi.NewRouter(),
		options: opts,
		routes:  make([]route, 0),
	}
}

// Prefix returns the normalized path prefix of the router
func (r *Router) Prefix() string {
	return r.options.Prefix
}

// Use registers a step that runs before every route of the router.
// Steps must be registered before any route.
func (r *Router) Use(step middleware.Step) error {
	if step == nil {
		return fmt.Errorf("router use: %w", middleware.ErrNotCallable)
	}
	if len(r.routes) > 0 {
		return fmt.Errorf("router use: middleware must be registered before routes")
	}
	err := guard("use", func() {
		r.mux.Use(middleware.Wrap(step))
	})
	if err != nil {
		return err
	}
	r.uses = append(r.uses, step)
	return nil
}

// Handle registers step as the handler for method and pattern
func (r *Router) Handle(method, pattern, name string, step middleware.Step) (*RouteInfo, error) {
	if step == nil {
		return nil, fmt.Errorf("router handle %s %s: %w", method, pattern, middleware.ErrNotCallable)
	}

	method = strings.ToUpper(method)
	if !isRoutable(method) {
		return nil, fmt.Errorf("router handle %s %s: unsupported method", method, pattern)
	}
	pattern = normalizePattern(pattern)

	info := RouteInfo{Pattern: pattern, Method: method, Name: name}
	if err := r.add(route{info: info, step: step, index: pattern == "/"}); err != nil {
		return nil, err
	}
	return &info, nil
}

// Get registers a GET route
func (r *Router) Get(pattern, name string, step middleware.Step) (*RouteInfo, error) {
	return r.Handle(http.MethodGet, pattern, name, step)
}

// Post registers a POST route
func (r *Router) Post(pattern, name string, step middleware.Step) (*RouteInfo, error) {
	return r.Handle(http.MethodPost, pattern, name, step)
}

// Put registers a PUT route
func (r *Router) Put(pattern, name string, step middleware.Step) (*RouteInfo, error) {
	return r.Handle(http.MethodPut, pattern, name, step)
}

// Patch registers a PATCH route
func (r *Router) Patch(pattern, name string, step middleware.Step) (*RouteInfo, error) {
	return r.Handle(http.MethodPatch, pattern, name, step)
}

// Delete registers a DELETE route
func (r *Router) Delete(pattern, name string, step middleware.Step) (*RouteInfo, error) {
	return r.Handle(http.MethodDelete, pattern, name, step)
}

// Merge registers the routes of child under the child's own prefix. Steps
// registered on r run before the child's, which only run for the child's
// routes.
func (r *Router) Merge(child *Router) error {
	if child == nil {
		return fmt.Errorf("router merge: nil router")
	}

	for _, cr := range child.routes {
		step := cr.step
		if len(child.uses) > 0 {
			var err error
			step, err = middleware.Compose(append(slices.Clone(child.uses), step)...)
			if err != nil {
				return fmt.Errorf("router merge: %w", err)
			}
		}

		info := cr.info
		info.Pattern = joinPath(child.options.Prefix, info.Pattern)
		if err := r.add(route{info: info, step: step, index: cr.index}); err != nil {
			return err
		}
	}
	return nil
}

// Routes returns the handler serving every route of the router. Errors left
// unhandled by the chain go to Options.ErrorHandler.
func (r *Router) Routes() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := middleware.Serve(r.mux, w, req); err != nil {
			r.options.ErrorHandler(w, req, err)
		}
	})
}

// Match reports whether a route exists for path and method.
func (r *Router) Match(path, method string) bool {
	return r.mux.Match(chi.NewRouteContext(), strings.ToUpper(method), path)
}

// Allowed returns the verbs with a route for path.
func (r *Router) Allowed(path string) []string {
	allowed := make([]string, 0, len(routableMethods))
	for _, m := range routableMethods {
		if r.Match(path, m) {
			allowed = append(allowed, m)
		}
	}
	return allowed
}

// GetRoutes returns all registered routes for introspection, including
// merged ones, with full patterns.
func (r *Router) GetRoutes() []RouteInfo {
	routes := make([]RouteInfo, len(r.routes))
	for i, rt := range r.routes {
		info := rt.info
		info.Pattern = joinPath(r.options.Prefix, info.Pattern)
		routes[i] = info
	}
	return routes
}

// RouteList returns a formatted list of all routes
func (r *Router) RouteList() string {
	routes := r.GetRoutes()
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Pattern < routes[j].Pattern
	})

	var sb strings.Builder
	sb.WriteString("Registered Routes:\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")
	sb.WriteString(fmt.Sprintf("%-8s %-40s %-20s\n", "METHOD", "PATTERN", "NAME"))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for _, info := range routes {
		sb.WriteString(fmt.Sprintf("%-8s %-40s %-20s\n", info.Method, info.Pattern, info.Name))
	}

	return sb.String()
}

// add registers rt on the mux under the prefix of r
func (r *Router) add(rt route) error {
	for _, existing := range r.routes {
		if existing.info.Method == rt.info.Method && existing.info.Pattern == rt.info.Pattern {
			return fmt.Errorf("router handle %s %s: %w", rt.info.Method, rt.info.Pattern, ErrDuplicateRoute)
		}
	}

	full := joinPath(r.options.Prefix, rt.info.Pattern)
	patterns := []string{full}
	if rt.index && full != "/" {
		patterns = append(patterns, full+"/")
	}

	h := middleware.Handler(rt.step)
	err := guard("handle "+rt.info.Method+" "+full, func() {
		for _, p := range patterns {
			r.mux.Method(rt.info.Method, p, h)
		}
	})
	if err != nil {
		return err
	}

	r.routes = append(r.routes, rt)
	return nil
}

// guard converts chi's registration panics into errors
func guard(op string, fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("router %s: %v", op, p)
		}
	}()
	fn()
	return nil
}

func isRoutable(method string) bool {
	for _, m := range routableMethods {
		if m == method {
			return true
		}
	}
	return false
}

// normalizePrefix returns "" or a path starting, and not ending, with "/"
func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func normalizePattern(pattern string) string {
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	return pattern
}

func joinPath(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	if pattern == "/" {
		return prefix
	}
	return prefix + pattern
}
