package controller

import (
	"fmt"
	"net/http"
	"reflect"
	"slices"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"go.uber.org/zap"
)

// Router returns the router compiled from the record of c. The router is
// built on first call and cached on c together with the compile error;
// annotations applied afterwards do not change it.
func (r *Registry) Router(c Controller) (*router.Router, error) {
	return r.router(c, nil)
}

// UseArgs returns the route handler and the allowed methods middleware of c
func (r *Registry) UseArgs(c Controller) (http.Handler, func(http.Handler) http.Handler, error) {
	rt, err := r.Router(c)
	if err != nil {
		return nil, nil, err
	}
	return rt.Routes(), rt.AllowedMethods(), nil
}

// Handler returns the routes of c wrapped by its allowed methods middleware
func (r *Registry) Handler(c Controller) (http.Handler, error) {
	routes, allowed, err := r.UseArgs(c)
	if err != nil {
		return nil, err
	}
	return allowed(routes), nil
}

// Bind returns the chain of member bound to c, or its bare method when the
// member was never annotated.
func (r *Registry) Bind(c Controller, member string) (middleware.Step, error) {
	typ := reflect.TypeOf(c)
	md, ok := r.snapshot(typ)
	if !ok {
		md = NewMetadata(typ)
	}
	return newBinder(r, md, c).member(member)
}

func (r *Registry) router(c Controller, stack []reflect.Type) (*router.Router, error) {
	b := c.controllerBase()
	b.once.Do(func() {
		b.router, b.err = r.compile(c, stack)
	})
	return b.router, b.err
}

func (r *Registry) compile(c Controller, stack []reflect.Type) (*router.Router, error) {
	typ := reflect.TypeOf(c)
	if slices.Contains(stack, typ) {
		return nil, fmt.Errorf("compile %s: %w", typ, ErrControllerCycle)
	}
	stack = append(stack, typ)

	md, ok := r.snapshot(typ)
	if !ok {
		return nil, fmt.Errorf("compile %s: %w", typ, ErrUnknownController)
	}

	rt := router.New(md.routerOptions)
	b := newBinder(r, md, c)

	if len(md.middlewares) > 0 {
		chain, err := b.chain(md.middlewares)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", md.className, err)
		}
		if err := rt.Use(chain); err != nil {
			return nil, fmt.Errorf("compile %s: %w", md.className, err)
		}
	}

	for _, sub := range md.subsidiaries {
		var err error
		switch sub.Kind {
		case KindHandler:
			err = r.compileHandler(rt, b, md, sub)
		case KindSubController:
			err = r.compileSubController(rt, b, sub, stack)
		case KindChain:
		default:
			err = ErrKindUnset
		}
		if err != nil {
			return nil, fmt.Errorf("compile %s.%s: %w", md.className, sub.Name, err)
		}
	}

	r.logger.Debug("controller compiled",
		zap.String("controller", md.className),
		zap.String("prefix", rt.Prefix()),
		zap.Int("routes", len(rt.GetRoutes())),
	)
	return rt, nil
}

func (r *Registry) compileHandler(rt *router.Router, b *binder, md *Metadata, sub *Subsidiary) error {
	if sub.Path == "" {
		return nil
	}
	if sub.Method == "" {
		return ErrMissingMethod
	}

	chain, err := b.member(sub.Name)
	if err != nil {
		return err
	}

	name := md.className + "." + sub.displayName()
	step, err := middleware.Compose(injectHandler(name), chain)
	if err != nil {
		return err
	}

	_, err = rt.Handle(sub.Method, sub.Path, name, step)
	return err
}

func (r *Registry) compileSubController(rt *router.Router, b *binder, sub *Subsidiary, stack []reflect.Type) error {
	ctor, ok := r.constructor(sub.Controller)
	if !ok {
		return fmt.Errorf("%v: %w", sub.Controller, ErrUnknownController)
	}

	nested, err := r.router(ctor(), stack)
	if err != nil {
		return err
	}

	scoped := router.New(router.Options{Prefix: sub.Path})
	if len(sub.middlewares) > 0 {
		chain, err := b.member(sub.Name)
		if err != nil {
			return err
		}
		if err := scoped.Use(chain); err != nil {
			return err
		}
	}

	if err := scoped.Merge(nested); err != nil {
		return err
	}
	return rt.Merge(scoped)
}

// injectHandler records the qualified handler name on the context
func injectHandler(name string) middleware.Step {
	return func(c *middleware.Context, next middleware.Next) error {
		c.Handler = name
		return next()
	}
}
