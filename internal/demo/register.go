// Package demo is a small pet API built from annotated controllers. It is
// served by the serve command and doubles as an end-to-end fixture.
package demo

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/ark7/a7router/internal/web/auth"
	"github.com/ark7/a7router/internal/web/cache"
	"github.com/ark7/a7router/internal/web/metrics"
	hostmw "github.com/ark7/a7router/internal/web/middleware"
	"github.com/ark7/a7router/internal/web/ratelimit"
	"github.com/ark7/a7router/internal/web/websocket"
	"github.com/ark7/a7router/pkg/web/controller"
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"go.uber.org/zap"
)

// Deps are the collaborators of the demo controllers
type Deps struct {
	Store *Store
	Auth  *auth.Service
	// Limiter guards the pets collection when set
	Limiter ratelimit.Limiter
	// Cache stores pet reads when set; writes invalidate them
	Cache cache.Cache
	// Events receives pet writes and serves them on /pets/events when set
	Events *websocket.Hub
	// Metrics instruments every request when set
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Timeout bounds every request when positive
	Timeout time.Duration
	Version string
}

// Register defines the demo controllers on r
func Register(r *controller.Registry, deps Deps) error {
	if deps.Store == nil {
		deps.Store = NewStore()
	}
	if deps.Auth == nil {
		return errors.New("demo: auth service is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	var reads []*controller.Middleware
	var writes []controller.Annotation
	if deps.Cache != nil {
		reads = append(reads, controller.Func("cache", cache.Responses(cache.ResponseConfig{
			Cache:  deps.Cache,
			Logger: deps.Logger,
		})))
		writes = append(writes, controller.TeePost(cache.Invalidate(deps.Cache, touchedPaths)))
	}
	members := []controller.Annotation{controller.Name("Pets")}
	if deps.Events != nil {
		writes = append(writes, controller.TeePost(publish(deps.Events, deps.Logger)))
		upgrade := controller.Func("upgrade", websocket.Upgrade(deps.Events, websocket.Config{UserID: userID}))
		members = append(members, controller.Member("Events",
			controller.When(deps.Auth.Authenticated(), nil),
			controller.Get("/events", upgrade),
		))
	}

	members = append(members,
		controller.Member("List", controller.Get("/", reads...)),
		controller.Member("Show", controller.Get("/{id}", reads...)),
		controller.Member("Audit", controller.Chain()),
		controller.Member("Create", append([]controller.Annotation{
			controller.Handler(controller.HandlerOptions{Method: http.MethodPost, Path: "/", Name: "create"}),
			controller.If(deps.Auth.Authenticated(), nil, auth.Unauthorized),
			controller.Use(controller.Ref("Audit")),
			controller.Use(controller.Method("decode", (*PetsController).decode)),
		}, writes...)...),
		controller.Member("Delete", append([]controller.Annotation{
			controller.Delete("/{id}"),
			controller.If(deps.Auth.Authenticated(), nil, auth.Unauthorized),
			controller.If(auth.HasRole("admin"), nil, auth.Forbidden),
			controller.Use(controller.Ref("Audit")),
		}, writes...)...),
	)

	err := controller.Define(r, func() *PetsController {
		return &PetsController{store: deps.Store, logger: deps.Logger}
	}, members...)
	if err != nil {
		return err
	}

	var petsGuard []*controller.Middleware
	if deps.Limiter != nil {
		petsGuard = append(petsGuard, controller.Func("ratelimit", ratelimit.Step(ratelimit.Config{
			Limiter:  deps.Limiter,
			FailOpen: true,
			Logger:   deps.Logger,
		})))
	}

	return controller.Define(r, func() *APIController {
		return &APIController{version: deps.Version, started: time.Now()}
	},
		controller.Name("API"),
		controller.Config(router.Options{Prefix: "/api"}),
		controller.UseFunc(hostSteps(deps)...),
		controller.Member("Health", controller.Get("/health")),
		controller.Member("Pets", controller.SubController[*PetsController]("/pets", petsGuard...)),
	)
}

// touchedPaths are the cached reads a pet write changes: the written
// resource and its collection
func touchedPaths(c *middleware.Context) []string {
	p := c.Path()
	if c.Method() == http.MethodPost {
		return []string{p}
	}
	return []string{p, path.Dir(p)}
}

// userID names the authenticated user of a request, if any
func userID(c *middleware.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok {
		return claims.UserID
	}
	return ""
}

// hostSteps are the class steps of the API root, outermost first
func hostSteps(deps Deps) []middleware.Step {
	steps := []middleware.Step{
		hostmw.RequestID(),
		hostmw.Logging(deps.Logger),
		hostmw.Recovery(deps.Logger),
	}
	if deps.Metrics != nil {
		steps = append(steps, deps.Metrics.Step())
	}
	if deps.Timeout > 0 {
		// websocket connections outlive any request timeout
		steps = append(steps, middleware.If(websocket.IsUpgrade, nil, hostmw.Timeout(deps.Timeout)))
	}
	return steps
}

// Handler builds the API root on r and returns its http.Handler
func Handler(r *controller.Registry) (http.Handler, error) {
	api, err := controller.New[*APIController](r)
	if err != nil {
		return nil, err
	}
	h, err := r.Handler(api)
	if err != nil {
		return nil, fmt.Errorf("compile API: %w", err)
	}
	return h, nil
}

// Router compiles the API root on r
func Router(r *controller.Registry) (*router.Router, error) {
	api, err := controller.New[*APIController](r)
	if err != nil {
		return nil, err
	}
	return r.Router(api)
}

// Routes returns the compiled route table of the API root
func Routes(r *controller.Registry) ([]router.RouteInfo, error) {
	rt, err := Router(r)
	if err != nil {
		return nil, err
	}
	return rt.GetRoutes(), nil
}
