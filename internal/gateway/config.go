package gateway

import (
	"errors"
	"net"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind      string          `yaml:"bind"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// AllowedOrigins are host patterns accepted on the chat WebSocket in
	// addition to same-origin requests.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ReadTimeout bounds reading request headers.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds each response and each outbound chat frame.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures authentication for the memory API.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
}

// IsConfigured reports whether the memory API should be mounted.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != ""
}

// RateLimitConfig bounds per-user chat turns and per-client auth failures.
// A zero TurnsPerMinute disables turn limiting. AuthFailuresPerMinute
// defaults to 10.
type RateLimitConfig struct {
	TurnsPerMinute        int `yaml:"turns_per_minute"`
	AuthFailuresPerMinute int `yaml:"auth_failures_per_minute"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.RateLimit.AuthFailuresPerMinute == 0 {
		c.RateLimit.AuthFailuresPerMinute = 10
	}
}

// Validate checks the bind address and limits.
func (c *Config) Validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, errors.New("gateway: invalid bind address: "+c.Bind))
	}
	if c.RateLimit.TurnsPerMinute < 0 || c.RateLimit.AuthFailuresPerMinute < 0 {
		errs = append(errs, errors.New("gateway: rate limits must be non-negative"))
	}
	return errors.Join(errs...)
}
