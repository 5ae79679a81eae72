package controller

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
)

// Annotation is a declarative attachment applied to a controller type or,
// wrapped in Member, to one of its members.
type Annotation struct {
	name    string
	class   func(a *applier, md *Metadata) error
	member  func(a *applier, md *Metadata, sub *Subsidiary) error
	members func(a *applier, md *Metadata) error
}

// String returns the annotation name
func (ann Annotation) String() string {
	return ann.name
}

// applier carries the state of one annotation batch
type applier struct {
	r   *Registry
	typ reflect.Type
}

// handles validates mws and passes them through the registry mapper
func (a *applier) handles(mws []*Middleware) ([]*Middleware, error) {
	out := make([]*Middleware, 0, len(mws))
	for i, m := range mws {
		if !m.valid() {
			return nil, fmt.Errorf("middleware %d: %w", i, middleware.ErrNotCallable)
		}
		out = append(out, a.r.mapHandle(m))
	}
	return out, nil
}

// body returns the handle on the method backing member, nil if the
// controller has none.
func (a *applier) body(member string) (*Middleware, error) {
	m, ok := a.typ.MethodByName(member)
	if !ok {
		return nil, nil
	}
	if !isBodySignature(m.Type) {
		return nil, fmt.Errorf("%s.%s %s: %w", typeName(a.typ), member, m.Type, ErrBadMemberSignature)
	}
	return a.r.bodyHandle(a.typ, member), nil
}

// Member applies anns to the member called name. The method of the
// controller with the same name, if any, becomes the last step of the
// member chain.
func Member(name string, anns ...Annotation) Annotation {
	return Annotation{
		name: "Member(" + name + ")",
		members: func(a *applier, md *Metadata) error {
			if name == "" {
				return fmt.Errorf("member with empty name: %w", ErrUnknownMember)
			}
			sub, err := md.GetOrCreateSubsidiary(name, KindUnset)
			if err != nil {
				return err
			}

			for i := len(anns) - 1; i >= 0; i-- {
				ann := anns[i]
				if ann.member == nil {
					return fmt.Errorf("%s on member %s: %w", ann.name, name, ErrInvalidTarget)
				}
				if err := ann.member(a, md, sub); err != nil {
					return fmt.Errorf("%s on member %s: %w", ann.name, name, err)
				}
			}

			if sub.Kind == KindSubController {
				return nil
			}
			body, err := a.body(name)
			if err != nil {
				return err
			}
			if body != nil {
				sub.setBody(body)
			}
			return nil
		},
	}
}

// Config merges opts into the router options of the controller
func Config(opts router.Options) Annotation {
	return Annotation{
		name: "Config",
		class: func(_ *applier, md *Metadata) error {
			md.ExtendRouterOptions(opts)
			return nil
		},
	}
}

// Name sets the controller name used in Context.Handler
func Name(name string) Annotation {
	return Annotation{
		name: "Name",
		class: func(_ *applier, md *Metadata) error {
			md.className = name
			return nil
		},
	}
}

// Inherit starts the controller from the record of P. The members of P come
// first and the class chain of the controller runs before the one of P. P
// must be annotated before the controller.
func Inherit[P Controller]() Annotation {
	parent := reflect.TypeFor[P]()
	return Annotation{
		name: "Inherit(" + typeName(parent) + ")",
		class: func(a *applier, md *Metadata) error {
			pmd, ok := a.r.records[parent]
			if !ok {
				return fmt.Errorf("inherit %s: %w", parent, ErrUnknownController)
			}
			return md.inherit(pmd)
		},
	}
}

// Use inserts mws in front of the target chain
func Use(mws ...*Middleware) Annotation {
	return Annotation{
		name: "Use",
		class: func(a *applier, md *Metadata) error {
			handles, err := a.handles(mws)
			if err != nil {
				return err
			}
			md.PushMiddlewaresFront(handles...)
			return nil
		},
		member: func(a *applier, _ *Metadata, sub *Subsidiary) error {
			handles, err := a.handles(mws)
			if err != nil {
				return err
			}
			sub.PushMiddlewaresFront(handles...)
			return nil
		},
	}
}

// UseFunc is Use with anonymous steps. Every call creates new handles.
func UseFunc(steps ...middleware.Step) Annotation {
	mws := make([]*Middleware, len(steps))
	for i, step := range steps {
		mws[i] = Func("", step)
	}
	return Use(mws...)
}

// Chain marks a member as a named chain, reachable through Ref and
// Registry.Bind but never routed.
func Chain(mws ...*Middleware) Annotation {
	return Annotation{
		name: "Chain",
		member: func(a *applier, _ *Metadata, sub *Subsidiary) error {
			if err := sub.SetKind(KindChain); err != nil {
				return err
			}
			handles, err := a.handles(mws)
			if err != nil {
				return err
			}
			sub.PushMiddlewaresFront(handles...)
			return nil
		},
	}
}

// HandlerOptions describes a handler member
type HandlerOptions struct {
	Method string
	Path   string
	// Name replaces the member name in Context.Handler and route listings
	Name       string
	Middleware []*Middleware
}

// Handler marks a member as a route
func Handler(opts HandlerOptions) Annotation {
	return Annotation{
		name: "Handler",
		member: func(a *applier, _ *Metadata, sub *Subsidiary) error {
			if err := sub.SetKind(KindHandler); err != nil {
				return err
			}
			handles, err := a.handles(opts.Middleware)
			if err != nil {
				return err
			}
			sub.PushMiddlewaresFront(handles...)

			if opts.Method != "" {
				sub.Method = strings.ToUpper(opts.Method)
			}
			if opts.Path != "" {
				sub.Path = opts.Path
			} else if sub.Path == "" {
				sub.Path = "/"
			}
			if opts.Name != "" {
				sub.DisplayName = opts.Name
			}
			return nil
		},
	}
}

// Get marks a member as a GET route
func Get(path string, mws ...*Middleware) Annotation {
	return Handler(HandlerOptions{Method: http.MethodGet, Path: path, Middleware: mws})
}

// Post marks a member as a POST route
func Post(path string, mws ...*Middleware) Annotation {
	return Handler(HandlerOptions{Method: http.MethodPost, Path: path, Middleware: mws})
}

// Put marks a member as a PUT route
func Put(path string, mws ...*Middleware) Annotation {
	return Handler(HandlerOptions{Method: http.MethodPut, Path: path, Middleware: mws})
}

// Patch marks a member as a PATCH route
func Patch(path string, mws ...*Middleware) Annotation {
	return Handler(HandlerOptions{Method: http.MethodPatch, Path: path, Middleware: mws})
}

// Delete marks a member as a DELETE route
func Delete(path string, mws ...*Middleware) Annotation {
	return Handler(HandlerOptions{Method: http.MethodDelete, Path: path, Middleware: mws})
}

// SubController mounts a fresh T under path. mws run, bound to the parent
// controller, before every route of T.
func SubController[T Controller](path string, mws ...*Middleware) Annotation {
	nested := reflect.TypeFor[T]()
	return Annotation{
		name: "SubController(" + typeName(nested) + ")",
		member: func(a *applier, _ *Metadata, sub *Subsidiary) error {
			if err := sub.SetKind(KindSubController); err != nil {
				return err
			}
			handles, err := a.handles(mws)
			if err != nil {
				return err
			}
			sub.PushMiddlewaresFront(handles...)
			sub.Controller = nested
			if path != "" {
				sub.Path = path
			} else if sub.Path == "" {
				sub.Path = "/"
			}
			return nil
		},
	}
}

// If runs then when pred holds and otherwise when it does not. A nil clause
// continues the chain.
func If(pred middleware.Predicate, then, otherwise middleware.Step) Annotation {
	var step middleware.Step
	if pred != nil {
		step = middleware.If(pred, then, otherwise)
	}
	return Use(Func("if", step))
}

// When runs clause when pred holds and always continues the chain
func When(pred middleware.Predicate, clause middleware.Step) Annotation {
	var step middleware.Step
	if pred != nil {
		step = middleware.When(pred, clause)
	}
	return Use(Func("when", step))
}

// Check continues the chain only when pred holds
func Check(pred middleware.Predicate) Annotation {
	var step middleware.Step
	if pred != nil {
		step = middleware.Check(pred)
	}
	return Use(Func("check", step))
}

// Tee runs fn as a side effect before the rest of the chain, or after it
// with middleware.Post().
func Tee(fn middleware.Step, opts ...middleware.TeeOption) Annotation {
	var step middleware.Step
	if fn != nil {
		step = middleware.Tee(fn, opts...)
	}
	return Use(Func("tee", step))
}

// TeePost runs fn as a side effect after the rest of the chain
func TeePost(fn middleware.Step) Annotation {
	return Tee(fn, middleware.Post())
}
