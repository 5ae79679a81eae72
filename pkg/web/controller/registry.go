package controller

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Registry holds the metadata records and constructors of controller types
type Registry struct {
	mu      sync.RWMutex
	records map[reflect.Type]*Metadata
	ctors   map[reflect.Type]func() Controller
	bodies  map[bodyKey]*Middleware

	mapper func(*Middleware) *Middleware
	mapped map[*Middleware]*Middleware

	logger *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger used for compile and middleware tracing.
// Every bound middleware logs its begin, end and duration at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMiddlewareMapper installs fn to transform every handle passed to an
// annotation. Results are memoised per handle.
func WithMiddlewareMapper(fn func(*Middleware) *Middleware) Option {
	return func(r *Registry) {
		r.mapper = fn
	}
}

// NewRegistry creates an empty Registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		records: make(map[reflect.Type]*Metadata),
		ctors:   make(map[reflect.Type]func() Controller),
		bodies:  make(map[bodyKey]*Middleware),
		mapped:  make(map[*Middleware]*Middleware),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process wide registry
func Default() *Registry {
	return defaultRegistry
}

// Define registers the constructor of T and applies anns to its record
func Define[T Controller](r *Registry, newFn func() T, anns ...Annotation) error {
	typ := reflect.TypeFor[T]()
	if newFn == nil {
		return fmt.Errorf("define %s: nil constructor: %w", typ, middleware.ErrNotCallable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ctors[typ]; ok {
		return fmt.Errorf("define %s: %w", typ, ErrAlreadyDefined)
	}
	if err := r.apply(typ, anns); err != nil {
		return fmt.Errorf("define %s: %w", typ, err)
	}
	r.ctors[typ] = func() Controller { return newFn() }
	return nil
}

// MustDefine is like Define but panics on error. It returns true so it can
// be used in package level var declarations.
func MustDefine[T Controller](r *Registry, newFn func() T, anns ...Annotation) bool {
	if err := Define(r, newFn, anns...); err != nil {
		panic(err)
	}
	return true
}

// Annotate applies more annotations to the record of T. Routers already
// compiled are not affected.
func Annotate[T Controller](r *Registry, anns ...Annotation) error {
	typ := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.apply(typ, anns); err != nil {
		return fmt.Errorf("annotate %s: %w", typ, err)
	}
	return nil
}

// New creates a T with its registered constructor
func New[T Controller](r *Registry) (T, error) {
	var zero T
	typ := reflect.TypeFor[T]()

	ctor, ok := r.constructor(typ)
	if !ok {
		return zero, fmt.Errorf("new %s: %w", typ, ErrUnknownController)
	}
	return ctor().(T), nil
}

// Lookup returns a copy of the record of typ
func (r *Registry) Lookup(typ reflect.Type) (*Metadata, bool) {
	md, ok := r.snapshot(typ)
	if !ok {
		return nil, false
	}
	return md.Clone(), true
}

// Clear drops every record and constructor
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[reflect.Type]*Metadata)
	r.ctors = make(map[reflect.Type]func() Controller)
	r.bodies = make(map[bodyKey]*Middleware)
	r.mapped = make(map[*Middleware]*Middleware)
}

// apply runs one annotation batch on a clone of the record of typ and
// registers the clone. On error the registry is left unchanged. Callers
// hold r.mu.
func (r *Registry) apply(typ reflect.Type, anns []Annotation) error {
	md, ok := r.records[typ]
	if ok {
		md = md.Clone()
	} else {
		md = NewMetadata(typ)
	}

	a := &applier{r: r, typ: typ}

	for _, ann := range anns {
		if ann.members == nil {
			continue
		}
		if err := ann.members(a, md); err != nil {
			return err
		}
	}
	for i := len(anns) - 1; i >= 0; i-- {
		ann := anns[i]
		if ann.members != nil {
			continue
		}
		if ann.class == nil {
			return fmt.Errorf("%s on class: %w", ann.name, ErrInvalidTarget)
		}
		if err := ann.class(a, md); err != nil {
			return err
		}
	}

	r.records[typ] = md
	return nil
}

// snapshot returns the registered record of typ. Records are never
// modified once registered, so the result may be read without locking.
func (r *Registry) snapshot(typ reflect.Type) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	md, ok := r.records[typ]
	return md, ok
}

func (r *Registry) constructor(typ reflect.Type) (func() Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.ctors[typ]
	return ctor, ok
}

// mapHandle passes m through the middleware mapper. Callers hold r.mu.
func (r *Registry) mapHandle(m *Middleware) *Middleware {
	if r.mapper == nil {
		return m
	}
	if mapped, ok := r.mapped[m]; ok {
		return mapped
	}
	mapped := r.mapper(m)
	if mapped == nil {
		mapped = m
	}
	r.mapped[m] = mapped
	return mapped
}

// bodyKey identifies the method backing a member of one controller type
type bodyKey struct {
	typ    reflect.Type
	member string
}

// bodyHandle returns the handle on the method called member of typ.
// Callers hold r.mu.
func (r *Registry) bodyHandle(typ reflect.Type, member string) *Middleware {
	key := bodyKey{typ: typ, member: member}
	if m, ok := r.bodies[key]; ok {
		return m
	}
	m := &Middleware{name: member, kind: bodyHandle, member: member}
	r.bodies[key] = m
	return m
}

// traced wraps step with debug logs when the logger has debug enabled
func (r *Registry) traced(class string, m *Middleware, step middleware.Step) middleware.Step {
	if !r.logger.Core().Enabled(zapcore.DebugLevel) {
		return step
	}

	logger := r.logger.With(
		zap.String("controller", class),
		zap.Stringer("middleware", m),
	)
	return func(c *middleware.Context, next middleware.Next) error {
		start := time.Now()
		logger.Debug("middleware begin",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
		err := step(c, next)
		logger.Debug("middleware end",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
}
