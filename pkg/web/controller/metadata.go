package controller

import (
	"fmt"
	"reflect"

	"github.com/ark7/a7router/pkg/web/router"
)

// Kind tells what a member of a controller is compiled into
type Kind int

const (
	// KindUnset is the kind of a member that only received middleware so far
	KindUnset Kind = iota
	// KindHandler members are registered as routes
	KindHandler
	// KindSubController members mount a nested controller
	KindSubController
	// KindChain members are never routed; they are reached through Ref or
	// Registry.Bind
	KindChain
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindHandler:
		return "handler"
	case KindSubController:
		return "sub-controller"
	case KindChain:
		return "chain"
	default:
		return "unset"
	}
}

// Subsidiary describes one member of a controller
type Subsidiary struct {
	Name string
	Kind Kind

	// Method, Path and DisplayName are used by handlers
	Method      string
	Path        string
	DisplayName string

	// Controller is the nested controller type of a sub-controller.
	// Path is its mount prefix.
	Controller reflect.Type

	middlewares []*Middleware
}

// Middlewares returns a copy of the member chain
func (s *Subsidiary) Middlewares() []*Middleware {
	return append([]*Middleware(nil), s.middlewares...)
}

// SetKind fixes the kind of the member. The first concrete kind wins and a
// different one is ErrKindConflict.
func (s *Subsidiary) SetKind(kind Kind) error {
	if kind == KindUnset || kind == s.Kind {
		return nil
	}
	if s.Kind != KindUnset {
		return fmt.Errorf("member %s is a %s, cannot become a %s: %w", s.Name, s.Kind, kind, ErrKindConflict)
	}
	s.Kind = kind
	return nil
}

// PushMiddlewaresFront inserts mws in front of the member chain
func (s *Subsidiary) PushMiddlewaresFront(mws ...*Middleware) {
	s.middlewares = union(mws, s.middlewares)
}

// PushMiddlewaresBack appends mws to the member chain
func (s *Subsidiary) PushMiddlewaresBack(mws ...*Middleware) {
	s.middlewares = union(s.middlewares, mws)
}

// setBody makes body the last step of the member chain. A body inherited
// from another controller type is replaced.
func (s *Subsidiary) setBody(body *Middleware) {
	steps := make([]*Middleware, 0, len(s.middlewares)+1)
	for _, m := range s.middlewares {
		if m.kind != bodyHandle {
			steps = append(steps, m)
		}
	}
	s.middlewares = append(steps, body)
}

// displayName returns the name used in Context.Handler
func (s *Subsidiary) displayName() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

func (s *Subsidiary) clone() *Subsidiary {
	cp := *s
	cp.middlewares = s.Middlewares()
	return &cp
}

// Metadata is the description of one controller type accumulated from its
// annotations. Records held by a Registry are never modified; annotations
// work on a clone that replaces the registered record.
type Metadata struct {
	typ           reflect.Type
	className     string
	middlewares   []*Middleware
	routerOptions router.Options
	subsidiaries  []*Subsidiary
}

// NewMetadata returns an empty record for the controller type typ
func NewMetadata(typ reflect.Type) *Metadata {
	return &Metadata{
		typ:       typ,
		className: typeName(typ),
	}
}

// Type returns the controller type the record describes
func (md *Metadata) Type() reflect.Type {
	return md.typ
}

// ClassName returns the display name of the controller
func (md *Metadata) ClassName() string {
	return md.className
}

// Middlewares returns a copy of the class-level chain
func (md *Metadata) Middlewares() []*Middleware {
	return append([]*Middleware(nil), md.middlewares...)
}

// RouterOptions returns the options the controller router is created with
func (md *Metadata) RouterOptions() router.Options {
	return md.routerOptions
}

// Subsidiaries returns the members in declaration order
func (md *Metadata) Subsidiaries() []*Subsidiary {
	return append([]*Subsidiary(nil), md.subsidiaries...)
}

// Subsidiary returns the member called name
func (md *Metadata) Subsidiary(name string) (*Subsidiary, bool) {
	for _, s := range md.subsidiaries {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// GetOrCreateSubsidiary returns the member called name, creating it at the
// end of the member list when absent. kind is applied with SetKind.
func (md *Metadata) GetOrCreateSubsidiary(name string, kind Kind) (*Subsidiary, error) {
	s, ok := md.Subsidiary(name)
	if !ok {
		s = &Subsidiary{Name: name}
		md.subsidiaries = append(md.subsidiaries, s)
	}
	if err := s.SetKind(kind); err != nil {
		return nil, err
	}
	return s, nil
}

// ExtendRouterOptions merges opts into the router options; non-zero fields
// of opts win.
func (md *Metadata) ExtendRouterOptions(opts router.Options) {
	md.routerOptions = md.routerOptions.Merge(opts)
}

// PushMiddlewaresFront inserts mws in front of the class-level chain. A
// handle already in the chain moves to its new position.
func (md *Metadata) PushMiddlewaresFront(mws ...*Middleware) {
	md.middlewares = union(mws, md.middlewares)
}

// PushMiddlewaresBack appends mws to the class-level chain. Handles already
// in the chain keep their position.
func (md *Metadata) PushMiddlewaresBack(mws ...*Middleware) {
	md.middlewares = union(md.middlewares, mws)
}

// Clone returns a copy of md that can be modified without affecting md
func (md *Metadata) Clone() *Metadata {
	cp := *md
	cp.middlewares = md.Middlewares()
	cp.subsidiaries = make([]*Subsidiary, len(md.subsidiaries))
	for i, s := range md.subsidiaries {
		cp.subsidiaries[i] = s.clone()
	}
	return &cp
}

// inherit rebases md on parent: parent members come first, members declared
// on both are merged and md's class chain runs before parent's.
func (md *Metadata) inherit(parent *Metadata) error {
	base := parent.Clone()
	base.typ = md.typ
	base.className = md.className
	base.routerOptions = base.routerOptions.Merge(md.routerOptions)
	base.middlewares = union(md.middlewares, base.middlewares)

	for _, s := range md.subsidiaries {
		ps, ok := base.Subsidiary(s.Name)
		if !ok {
			base.subsidiaries = append(base.subsidiaries, s.clone())
			continue
		}
		if err := ps.SetKind(s.Kind); err != nil {
			return err
		}
		if s.Method != "" {
			ps.Method = s.Method
		}
		if s.Path != "" {
			ps.Path = s.Path
		}
		if s.DisplayName != "" {
			ps.DisplayName = s.DisplayName
		}
		if s.Controller != nil {
			ps.Controller = s.Controller
		}
		ps.middlewares = mergeChains(s.middlewares, ps.middlewares)
	}

	*md = *base
	return nil
}

// union returns front followed by the elements of back, keeping the first
// occurrence of every handle.
func union(front, back []*Middleware) []*Middleware {
	out := make([]*Middleware, 0, len(front)+len(back))
	seen := make(map[*Middleware]bool, len(front)+len(back))
	for _, list := range [][]*Middleware{front, back} {
		for _, m := range list {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// mergeChains is union(front, back) with the first member body moved to
// the end
func mergeChains(front, back []*Middleware) []*Middleware {
	var body *Middleware
	steps := make([]*Middleware, 0, len(front)+len(back))
	for _, m := range union(front, back) {
		if m.kind == bodyHandle {
			if body == nil {
				body = m
			}
			continue
		}
		steps = append(steps, m)
	}
	if body != nil {
		steps = append(steps, body)
	}
	return steps
}

func typeName(typ reflect.Type) string {
	if typ == nil {
		return ""
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Name()
}
