package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ark7/a7router/internal/log"
	"github.com/spf13/viper"
)

// Config represents the a7router server configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Events    EventsConfig    `mapstructure:"events"`
	// Debug enables middleware tracing in the controller registry and
	// serves pprof to admins
	Debug bool `mapstructure:"debug"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds every controller chain; zero disables it
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Logger returns the configuration understood by the log package
func (l LogConfig) Logger() log.Config {
	return log.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig represents bearer token configuration
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "memory" or "redis"
	Backend string        `mapstructure:"backend"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// CacheConfig represents response cache configuration
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "memory" or "redis"
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// EventsConfig represents the websocket pet event feed
type EventsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig represents prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// Load loads the configuration from a7router.yml or a7router.yaml in the
// working directory, falling back to defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from path. An empty path searches the
// working directory and tolerates a missing file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("a7router")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support: A7ROUTER_SERVER_PORT etc.
	v.SetEnvPrefix("a7router")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("redis.url", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("events.enabled", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "a7router")
	v.SetDefault("debug", false)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative, got: %s", cfg.Server.RequestTimeout)
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got: %s", cfg.Log.Format)
	}
	switch cfg.Log.Output {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("log.output must be stdout or stderr, got: %s", cfg.Log.Output)
	}

	if cfg.Auth.Secret != "" && cfg.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got: %s", cfg.Auth.TokenTTL)
	}

	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Backend {
		case "memory":
		case "redis":
			if cfg.Redis.URL == "" {
				return fmt.Errorf("redis.url is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("ratelimit.backend must be memory or redis, got: %s", cfg.RateLimit.Backend)
		}
		if cfg.RateLimit.Limit <= 0 {
			return fmt.Errorf("ratelimit.limit must be positive, got: %d", cfg.RateLimit.Limit)
		}
		if cfg.RateLimit.Window <= 0 {
			return fmt.Errorf("ratelimit.window must be positive, got: %s", cfg.RateLimit.Window)
		}
	}

	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "memory":
		case "redis":
			if cfg.Redis.URL == "" {
				return fmt.Errorf("redis.url is required for the redis cache backend")
			}
		default:
			return fmt.Errorf("cache.backend must be memory or redis, got: %s", cfg.Cache.Backend)
		}
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got: %s", cfg.Cache.TTL)
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got: %s", cfg.Metrics.Path)
	}
	return nil
}
