package controller

import (
	"reflect"
	"testing"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handles(n int) []*Middleware {
	out := make([]*Middleware, n)
	for i := range out {
		out[i] = Func("", middleware.Continue)
	}
	return out
}

func TestPushMiddlewares(t *testing.T) {
	h := handles(4)
	a, b, x, y := h[0], h[1], h[2], h[3]

	tests := []struct {
		name  string
		start []*Middleware
		front bool
		push  []*Middleware
		want  []*Middleware
	}{
		{"front into empty", nil, true, []*Middleware{a, b}, []*Middleware{a, b}},
		{"front keeps order", []*Middleware{x}, true, []*Middleware{a, b}, []*Middleware{a, b, x}},
		{"front moves duplicate", []*Middleware{x, a}, true, []*Middleware{a}, []*Middleware{a, x}},
		{"front of front is no-op", []*Middleware{a, x}, true, []*Middleware{a}, []*Middleware{a, x}},
		{"front dedups input", nil, true, []*Middleware{a, a, b}, []*Middleware{a, b}},
		{"back appends", []*Middleware{x}, false, []*Middleware{y}, []*Middleware{x, y}},
		{"back keeps existing position", []*Middleware{a, x}, false, []*Middleware{a}, []*Middleware{a, x}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMetadata(nil)
			md.middlewares = tt.start
			sub := &Subsidiary{Name: "m", middlewares: tt.start}

			if tt.front {
				md.PushMiddlewaresFront(tt.push...)
				sub.PushMiddlewaresFront(tt.push...)
			} else {
				md.PushMiddlewaresBack(tt.push...)
				sub.PushMiddlewaresBack(tt.push...)
			}

			assert.Equal(t, tt.want, md.Middlewares())
			assert.Equal(t, tt.want, sub.Middlewares())
		})
	}
}

func TestGetOrCreateSubsidiary(t *testing.T) {
	md := NewMetadata(reflect.TypeFor[*ordersController]())

	list, err := md.GetOrCreateSubsidiary("List", KindUnset)
	require.NoError(t, err)
	assert.Equal(t, KindUnset, list.Kind)

	again, err := md.GetOrCreateSubsidiary("List", KindHandler)
	require.NoError(t, err)
	assert.Same(t, list, again)
	assert.Equal(t, KindHandler, list.Kind)

	_, err = md.GetOrCreateSubsidiary("List", KindSubController)
	assert.ErrorIs(t, err, ErrKindConflict)

	_, err = md.GetOrCreateSubsidiary("Show", KindChain)
	require.NoError(t, err)

	subs := md.Subsidiaries()
	require.Len(t, subs, 2)
	assert.Equal(t, "List", subs[0].Name)
	assert.Equal(t, "Show", subs[1].Name)
}

func TestMetadataClone(t *testing.T) {
	h := handles(2)
	md := NewMetadata(reflect.TypeFor[*ordersController]())
	md.ExtendRouterOptions(router.Options{Prefix: "/orders"})
	md.PushMiddlewaresFront(h[0])
	sub, err := md.GetOrCreateSubsidiary("List", KindHandler)
	require.NoError(t, err)
	sub.Path = "/"
	sub.PushMiddlewaresFront(h[0])

	cp := md.Clone()
	cp.PushMiddlewaresFront(h[1])
	cp.ExtendRouterOptions(router.Options{Prefix: "/other"})
	csub, ok := cp.Subsidiary("List")
	require.True(t, ok)
	csub.Path = "/changed"
	csub.PushMiddlewaresFront(h[1])
	_, err = cp.GetOrCreateSubsidiary("Show", KindHandler)
	require.NoError(t, err)

	assert.Equal(t, []*Middleware{h[0]}, md.Middlewares())
	assert.Equal(t, "/orders", md.RouterOptions().Prefix)
	assert.Equal(t, "/", sub.Path)
	assert.Equal(t, []*Middleware{h[0]}, sub.Middlewares())
	assert.Len(t, md.Subsidiaries(), 1)

	assert.Equal(t, []*Middleware{h[1], h[0]}, cp.Middlewares())
	assert.Equal(t, "/other", cp.RouterOptions().Prefix)
	assert.Equal(t, "ordersController", cp.ClassName())
}

func TestExtendRouterOptions(t *testing.T) {
	md := NewMetadata(nil)
	md.ExtendRouterOptions(router.Options{Prefix: "/a", Methods: []string{"GET"}})
	md.ExtendRouterOptions(router.Options{Prefix: "/b"})

	opts := md.RouterOptions()
	assert.Equal(t, "/b", opts.Prefix)
	assert.Equal(t, []string{"GET"}, opts.Methods)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unset", KindUnset.String())
	assert.Equal(t, "handler", KindHandler.String())
	assert.Equal(t, "sub-controller", KindSubController.String())
	assert.Equal(t, "chain", KindChain.String())
}

func TestMiddlewareString(t *testing.T) {
	assert.Equal(t, "func", Func("", middleware.Continue).String())
	assert.Equal(t, "func auth", Func("auth", middleware.Continue).String())
	assert.Equal(t, "ref List", Ref("List").String())
	assert.Equal(t, "method m1", m1.String())
}
