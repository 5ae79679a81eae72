package controller

import (
	"fmt"
	"reflect"

	"github.com/ark7/a7router/pkg/web/middleware"
)

type handleKind int

const (
	funcHandle handleKind = iota
	methodHandle
	refHandle
	bodyHandle
)

// Middleware is a handle on a step used in annotations. Chains are
// de-duplicated by handle, so the same handle applied twice to one target
// runs once.
type Middleware struct {
	name string
	kind handleKind

	step   middleware.Step
	method func(v reflect.Value) (middleware.Step, bool)
	member string
}

// Func returns a handle on a plain step
func Func(name string, step middleware.Step) *Middleware {
	return &Middleware{name: name, kind: funcHandle, step: step}
}

// Method returns a handle on a step bound to the controller instance. The
// instance, or one of its exported embedded fields, must be a T.
func Method[T any](name string, fn func(T, *middleware.Context, middleware.Next) error) *Middleware {
	m := &Middleware{name: name, kind: methodHandle}
	if fn == nil {
		return m
	}
	target := reflect.TypeFor[T]()
	m.method = func(v reflect.Value) (middleware.Step, bool) {
		rv, ok := findReceiver(v, target)
		if !ok {
			return nil, false
		}
		recv := rv.Interface().(T)
		return func(c *middleware.Context, next middleware.Next) error {
			return fn(recv, c, next)
		}, true
	}
	return m
}

// Ref returns a handle on another member of the same controller: its
// composed chain when it has one, its method otherwise.
func Ref(member string) *Middleware {
	return &Middleware{name: member, kind: refHandle, member: member}
}

// Name returns the handle name
func (m *Middleware) Name() string {
	return m.name
}

func (m *Middleware) String() string {
	switch m.kind {
	case methodHandle:
		return "method " + m.name
	case refHandle:
		return "ref " + m.member
	case bodyHandle:
		return "body " + m.member
	default:
		if m.name == "" {
			return "func"
		}
		return "func " + m.name
	}
}

func (m *Middleware) valid() bool {
	if m == nil {
		return false
	}
	switch m.kind {
	case funcHandle:
		return m.step != nil
	case methodHandle:
		return m.method != nil
	default:
		return m.member != ""
	}
}

var (
	contextType = reflect.TypeOf((*middleware.Context)(nil))
	nextType    = reflect.TypeOf(middleware.Next(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// isBodySignature reports whether a method type, receiver included, is
// func(*middleware.Context, middleware.Next) error or
// func(*middleware.Context) error.
func isBodySignature(ft reflect.Type) bool {
	if ft.NumOut() != 1 || ft.Out(0) != errorType {
		return false
	}
	switch ft.NumIn() {
	case 2:
		return ft.In(1) == contextType
	case 3:
		return ft.In(1) == contextType && ft.In(2) == nextType
	default:
		return false
	}
}

// methodStep returns the method member of v as a step
func methodStep(v reflect.Value, member string) (middleware.Step, bool) {
	mv := v.MethodByName(member)
	if !mv.IsValid() {
		return nil, false
	}
	switch fn := mv.Interface().(type) {
	case func(*middleware.Context, middleware.Next) error:
		return fn, true
	case func(*middleware.Context) error:
		return func(c *middleware.Context, _ middleware.Next) error {
			return fn(c)
		}, true
	default:
		return nil, false
	}
}

// findReceiver looks for a value of type target in v and its embedded
// fields, depth first.
func findReceiver(v reflect.Value, target reflect.Type) (reflect.Value, bool) {
	if v.Type().AssignableTo(target) && v.CanInterface() {
		return v, true
	}

	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
		if v.Type().AssignableTo(target) && v.CanInterface() {
			return v, true
		}
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).Anonymous {
			continue
		}
		f := v.Field(i)
		if f.Kind() == reflect.Struct && f.CanAddr() {
			if rv, ok := findReceiver(f.Addr(), target); ok {
				return rv, true
			}
			continue
		}
		if rv, ok := findReceiver(f, target); ok {
			return rv, true
		}
	}
	return reflect.Value{}, false
}

// binder resolves handles against one controller instance
type binder struct {
	r    *Registry
	md   *Metadata
	inst reflect.Value

	chains    map[string]middleware.Step
	resolving map[string]bool
}

func newBinder(r *Registry, md *Metadata, c Controller) *binder {
	return &binder{
		r:         r,
		md:        md,
		inst:      reflect.ValueOf(c),
		chains:    make(map[string]middleware.Step),
		resolving: make(map[string]bool),
	}
}

// chain composes mws bound to the instance
func (b *binder) chain(mws []*Middleware) (middleware.Step, error) {
	steps := make([]middleware.Step, 0, len(mws))
	for _, m := range mws {
		step, err := b.step(m)
		if err != nil {
			return nil, err
		}
		steps = append(steps, b.r.traced(b.md.className, m, step))
	}
	return middleware.Compose(steps...)
}

func (b *binder) step(m *Middleware) (middleware.Step, error) {
	switch m.kind {
	case funcHandle:
		return m.step, nil
	case methodHandle:
		step, ok := m.method(b.inst)
		if !ok {
			return nil, fmt.Errorf("%s on %s: %w", m, b.md.className, ErrReceiverMismatch)
		}
		return step, nil
	case refHandle:
		return b.member(m.member)
	default:
		step, ok := methodStep(b.inst, m.member)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", b.md.className, m.member, ErrUnknownMember)
		}
		return step, nil
	}
}

// member returns the composed chain of the member called name, or its bare
// method when it has no chain.
func (b *binder) member(name string) (middleware.Step, error) {
	if step, ok := b.chains[name]; ok {
		return step, nil
	}
	if b.resolving[name] {
		return nil, fmt.Errorf("%s.%s: %w", b.md.className, name, ErrCyclicReference)
	}

	sub, ok := b.md.Subsidiary(name)
	if !ok {
		step, ok := methodStep(b.inst, name)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", b.md.className, name, ErrUnknownMember)
		}
		b.chains[name] = step
		return step, nil
	}

	b.resolving[name] = true
	defer delete(b.resolving, name)

	step, err := b.chain(sub.middlewares)
	if err != nil {
		return nil, err
	}
	b.chains[name] = step
	return step, nil
}
