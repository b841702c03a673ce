// Package config loads burrow settings from defaults, an optional config
// file and BURROW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/burrow/internal/fingerprint"
	"github.com/FranksOps/burrow/internal/logger"
	"github.com/FranksOps/burrow/internal/serp"
	"github.com/FranksOps/burrow/pkg/useragent"
)

// EnvPrefix is prepended to every environment override, e.g.
// BURROW_FETCH_TIMEOUT or BURROW_STORAGE_BACKEND.
const EnvPrefix = "BURROW"

// Config is the top-level configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      logger.Config  `mapstructure:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
}

// EngineConfig selects what is searched.
type EngineConfig struct {
	SearchURL     string `mapstructure:"search_url"`
	Region        string `mapstructure:"region"`
	SafeSearch    string `mapstructure:"safesearch"`
	TimeLimit     string `mapstructure:"timelimit"`
	Pages         int    `mapstructure:"pages"`
	RespectRobots bool   `mapstructure:"respect_robots"`
	RobotsAgent   string `mapstructure:"robots_agent"`
}

// FetchConfig controls the HTTP side.
type FetchConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRedirects     int           `mapstructure:"max_redirects"`
	CookieJar        bool          `mapstructure:"cookie_jar"`
	Fingerprint      string        `mapstructure:"fingerprint"`
	UARotation       string        `mapstructure:"ua_rotation"`
	UserAgents       []string      `mapstructure:"user_agents"`
	ProxyFile        string        `mapstructure:"proxy_file"`
	Proxies          []string      `mapstructure:"proxies"`
	ProxyMaxFailures int           `mapstructure:"proxy_max_failures"`
	ProxyCooldown    time.Duration `mapstructure:"proxy_cooldown"`
	RPS              float64       `mapstructure:"rps"`
	Jitter           float64       `mapstructure:"jitter"`
	Insecure         bool          `mapstructure:"insecure"`
}

// StorageConfig picks the hit backend. DSN is a file path for sqlite, json
// and csv, and a connection string for postgres.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// Storage backends accepted by StorageConfig.Backend.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendJSON     = "json"
	BackendCSV      = "csv"
)

var defaults = map[string]any{
	"engine.search_url":     serp.SogouSearchURL,
	"engine.region":         "",
	"engine.safesearch":     "",
	"engine.timelimit":      "",
	"engine.pages":          1,
	"engine.respect_robots": false,
	"engine.robots_agent":   "*",

	"fetch.timeout":            30 * time.Second,
	"fetch.max_redirects":      10,
	"fetch.cookie_jar":         true,
	"fetch.fingerprint":        string(fingerprint.ProfileChrome),
	"fetch.ua_rotation":        string(useragent.Random),
	"fetch.user_agents":        []string{},
	"fetch.proxy_file":         "",
	"fetch.proxies":            []string{},
	"fetch.proxy_max_failures": 3,
	"fetch.proxy_cooldown":     5 * time.Minute,
	"fetch.rps":                0.5,
	"fetch.jitter":             0.3,
	"fetch.insecure":           false,

	"storage.backend": BackendSQLite,
	"storage.dsn":     "burrow.db",

	"metrics.enabled": false,
	"metrics.port":    9090,

	"log.level":  "info",
	"log.format": "text",
	"log.output": "stderr",

	"pipeline.concurrency": 2,

	"breaker.enabled":      true,
	"breaker.max_failures": 3,
	"breaker.timeout":      2 * time.Minute,
	"breaker.interval":     10 * time.Minute,
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. Callers may bind command-line flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the
// result. An empty path skips the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError accumulates every problem found by Validate.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config: validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for values the rest of burrow would reject later.
func (c *Config) Validate() error {
	ve := &ValidationError{}

	if _, err := serp.ParseTimeLimit(c.Engine.TimeLimit); err != nil {
		ve.add("engine.timelimit: %v", err)
	}
	if c.Engine.Pages < 1 {
		ve.add("engine.pages must be >= 1")
	}
	if _, err := serp.NewSogou(c.Engine.SearchURL); err != nil {
		ve.add("engine.search_url: %v", err)
	}

	if c.Fetch.Timeout <= 0 {
		ve.add("fetch.timeout must be > 0")
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		ve.add("fetch.fingerprint: %v", err)
	}
	if _, err := useragent.ParseRotation(c.Fetch.UARotation); err != nil {
		ve.add("fetch.ua_rotation: %v", err)
	}
	if c.Fetch.RPS < 0 {
		ve.add("fetch.rps must be >= 0")
	}
	if c.Fetch.Jitter < 0 || c.Fetch.Jitter > 1 {
		ve.add("fetch.jitter must be between 0 and 1")
	}

	switch c.Storage.Backend {
	case BackendNone:
	case BackendSQLite, BackendPostgres, BackendJSON, BackendCSV:
		if c.Storage.DSN == "" {
			ve.add("storage.dsn is required for backend %q", c.Storage.Backend)
		}
	default:
		ve.add("storage.backend %q is not one of none, sqlite, postgres, json, csv", c.Storage.Backend)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		ve.add("metrics.port %d is out of range", c.Metrics.Port)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		ve.add("log.format %q is not text or json", c.Log.Format)
	}

	if c.Pipeline.Concurrency < 1 {
		ve.add("pipeline.concurrency must be >= 1")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// IsValidation reports whether err came from Validate.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
