package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ark7/a7router/internal/cli/config"
	"github.com/ark7/a7router/internal/demo"
	"github.com/ark7/a7router/internal/web/auth"
	"github.com/ark7/a7router/internal/web/cache"
	"github.com/ark7/a7router/internal/web/metrics"
	"github.com/ark7/a7router/internal/web/profiling"
	"github.com/ark7/a7router/internal/web/ratelimit"
	"github.com/ark7/a7router/internal/web/websocket"
	"github.com/ark7/a7router/pkg/web/controller"
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app is the demo API assembled from configuration
type app struct {
	registry *controller.Registry
	handler  http.Handler
	metrics  *metrics.Metrics
	redis    *redis.Client
	closers  []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		registry: controller.NewRegistry(controller.WithLogger(registryLogger(cfg, logger))),
	}
	if err := a.build(cfg, logger); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(cfg *config.Config, logger *zap.Logger) error {
	svc, err := newAuthService(cfg, logger)
	if err != nil {
		return err
	}

	deps := demo.Deps{
		Auth:    svc,
		Logger:  logger,
		Timeout: cfg.Server.RequestTimeout,
		Version: Version,
	}
	if deps.Limiter, err = a.newLimiter(cfg); err != nil {
		return err
	}
	if deps.Cache, err = a.newCache(cfg); err != nil {
		return err
	}
	if cfg.Events.Enabled {
		hub := websocket.NewHub(context.Background(), logger)
		a.closers = append(a.closers, hub.Close)
		deps.Events = hub
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics.Namespace, nil)
		deps.Metrics = a.metrics
	}

	if err := demo.Register(a.registry, deps); err != nil {
		return fmt.Errorf("register controllers: %w", err)
	}
	api, err := demo.Handler(a.registry)
	if err != nil {
		return err
	}

	root := chi.NewRouter()
	if a.metrics != nil {
		root.Method(http.MethodGet, cfg.Metrics.Path, a.metrics.Handler())
	}
	if cfg.Debug {
		if err := a.mountProfiling(root, svc); err != nil {
			return err
		}
	}
	root.Mount("/", api)
	a.handler = root
	return nil
}

// mountProfiling serves pprof to admins under the default profiling path
func (a *app) mountProfiling(root chi.Router, svc *auth.Service) error {
	cfg := profiling.DefaultConfig()
	guard := []*controller.Middleware{
		controller.Func("authenticated", middleware.If(svc.Authenticated(), nil, auth.Unauthorized)),
		controller.Func("admin", middleware.If(auth.HasRole("admin"), nil, auth.Forbidden)),
	}
	if err := profiling.Register(a.registry, cfg, guard...); err != nil {
		return fmt.Errorf("register profiling: %w", err)
	}
	h, err := profiling.Handler(a.registry)
	if err != nil {
		return err
	}
	root.Handle(cfg.Path, h)
	root.Handle(cfg.Path+"/*", h)
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// registryLogger enables middleware tracing only in debug mode
func registryLogger(cfg *config.Config, logger *zap.Logger) *zap.Logger {
	if cfg.Debug || !logger.Core().Enabled(zapcore.DebugLevel) {
		return logger
	}
	return logger.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
}

func newAuthService(cfg *config.Config, logger *zap.Logger) (*auth.Service, error) {
	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("auth.secret is not set, using a random secret; issued tokens will not survive a restart")
	}
	return auth.NewService(secret, cfg.Auth.TokenTTL)
}

// redisClient returns the client shared by the redis backends
func (a *app) redisClient(cfg *config.Config) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, a.redis.Close)
	return a.redis, nil
}

func (a *app) newLimiter(cfg *config.Config) (ratelimit.Limiter, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}

	switch rl.Backend {
	case "redis":
		client, err := a.redisClient(cfg)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Client: client,
			Limit:  rl.Limit,
			Window: rl.Window,
		})
	default:
		tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
			Capacity:        rl.Limit,
			RefillRate:      rl.Window,
			CleanupInterval: rl.Window,
		})
		a.closers = append(a.closers, tb.Close)
		return tb, nil
	}
}

func (a *app) newCache(cfg *config.Config) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	cc := cache.DefaultConfig()
	cc.TTL = cfg.Cache.TTL

	switch cfg.Cache.Backend {
	case "redis":
		client, err := a.redisClient(cfg)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(client, cc)
	default:
		m := cache.NewMemory(cc)
		a.closers = append(a.closers, m.Close)
		return m, nil
	}
}
