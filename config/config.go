package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/layer-3/fluxauth/core"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FLUXAUTH_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Config is the resolved runtime configuration. It is built once by Load and
// treated as read-only afterwards.
type Config struct {
	HTTP       HTTPConfig      `yaml:"http"`
	Log        LogConfig       `yaml:"log"`
	Store      StoreConfig     `yaml:"store"`
	Events     EventsConfig    `yaml:"events"`
	Identities IdentityConfig  `yaml:"identities"`
	Waiter     WaiterConfig    `yaml:"waiter"`
	Health     HealthConfig    `yaml:"health"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	RedisURL      string        `yaml:"redis_url"`
	Prefix        string        `yaml:"prefix"`
	BoltPath      string        `yaml:"bolt_path"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// IdentityConfig holds the two reference addresses used for tier resolution.
type IdentityConfig struct {
	TeamAddress  string `yaml:"team_address"`
	AdminAddress string `yaml:"admin_address"`
}

type WaiterConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DockerSocket string        `yaml:"docker_socket"`
	NodeTier     string        `yaml:"node_tier"`
	DistressURL  string        `yaml:"distress_url"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"` // 0 disables limiting
	Burst     int     `yaml:"burst"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":16127",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Backend:       BackendMemory,
			Prefix:        "fluxauth:",
			BoltPath:      "fluxauth.db",
			SweepInterval: time.Minute,
		},
		Waiter: WaiterConfig{PollInterval: 500 * time.Millisecond},
		Health: HealthConfig{
			DockerSocket: "/var/run/docker.sock",
			ProbeTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{PerSecond: 5, Burst: 10},
	}
}

// Load resolves configuration in priority order: defaults -> file -> env.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	str("HTTP_ADDR", &cfg.HTTP.Addr)
	duration("HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("STORE_BACKEND", &cfg.Store.Backend)
	str("REDIS_URL", &cfg.Store.RedisURL)
	str("STORE_PREFIX", &cfg.Store.Prefix)
	str("BOLT_PATH", &cfg.Store.BoltPath)
	duration("SWEEP_INTERVAL", &cfg.Store.SweepInterval)
	boolean("EVENTS_ENABLED", &cfg.Events.Enabled)
	str("EVENTS_TOPIC_PREFIX", &cfg.Events.TopicPrefix)
	str("TEAM_ADDRESS", &cfg.Identities.TeamAddress)
	str("ADMIN_ADDRESS", &cfg.Identities.AdminAddress)
	duration("POLL_INTERVAL", &cfg.Waiter.PollInterval)
	boolean("HEALTH_ENABLED", &cfg.Health.Enabled)
	str("DOCKER_SOCKET", &cfg.Health.DockerSocket)
	str("NODE_TIER", &cfg.Health.NodeTier)
	str("DISTRESS_URL", &cfg.Health.DistressURL)
	duration("PROBE_TIMEOUT", &cfg.Health.ProbeTimeout)
	float("RATE_LIMIT_PER_SECOND", &cfg.RateLimit.PerSecond)
	integer("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	return errors.Join(errs...)
}

// Validate reports every inconsistency in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	case BackendBolt:
		if c.Store.BoltPath == "" {
			errs = append(errs, errors.New("store.bolt_path is required for the bolt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, redis, bolt", c.Store.Backend))
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, errors.New("store.sweep_interval must be positive"))
	}
	if c.Events.Enabled && c.Store.Backend != BackendRedis {
		errs = append(errs, errors.New("events require the redis backend"))
	}

	for _, id := range []struct{ name, addr string }{
		{"identities.team_address", c.Identities.TeamAddress},
		{"identities.admin_address", c.Identities.AdminAddress},
	} {
		if id.addr == "" {
			continue
		}
		if err := core.ValidateAddress(id.addr); err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a valid address", id.name, id.addr))
		}
	}

	if c.Waiter.PollInterval <= 0 {
		errs = append(errs, errors.New("waiter.poll_interval must be positive"))
	}
	if c.Health.Enabled && c.Health.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("health.probe_timeout must be positive"))
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst == 0 {
		errs = append(errs, errors.New("rate_limit.burst must be positive when limiting is enabled"))
	}

	return errors.Join(errs...)
}
