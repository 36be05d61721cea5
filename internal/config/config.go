// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/okian/critreview/internal/adapters/remote"
	"github.com/okian/critreview/internal/adapters/storage"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// APIBaseURL is the review API endpoint.
	APIBaseURL string `koanf:"api_base_url"`

	// HTTPTimeoutMS bounds a single review API request. Zero keeps the client default.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// RateLimitRPS caps outgoing requests per second. Zero means unlimited.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// StorageDriver selects the cache backend: memory, sqlite or redis.
	StorageDriver string `koanf:"storage_driver"`

	SQLitePath string `koanf:"sqlite_path"`
	RedisAddr  string `koanf:"redis_addr"`
	RedisDB    int    `koanf:"redis_db"`

	// ScoreField is the Scores field read when computing intensities.
	ScoreField string `koanf:"score_field"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9090",
		APIBaseURL:    remote.DefaultBaseURL,
		HTTPTimeoutMS: 30_000,
		StorageDriver: storage.DriverMemory,
		SQLitePath:    "./critreview.db",
		RedisAddr:     "localhost:6379",
	}
}

// HTTPTimeout returns HTTPTimeoutMS as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_base_url %q must be an absolute http(s) URL", ErrInvalidConfig, c.APIBaseURL)
	}
	if !slices.Contains(storage.Drivers(), driverName(c.StorageDriver)) {
		return fmt.Errorf("%w: storage_driver %q must be one of %v", ErrInvalidConfig, c.StorageDriver, storage.Drivers())
	}
	if c.HTTPTimeoutMS < 0 {
		return fmt.Errorf("%w: http_timeout_ms must not be negative", ErrInvalidConfig)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q must be text or json", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Normalize canonicalizes case-insensitive fields the way their consumers
// read them.
func (c *Config) Normalize() {
	c.StorageDriver = driverName(c.StorageDriver)
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// driverName mirrors storage.New: case and surrounding space are ignored and
// an empty name selects memory.
func driverName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return storage.DriverMemory
	}
	return s
}
