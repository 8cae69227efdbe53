package openai

import (
	"errors"
	"time"
)

const (
	defaultBaseURL    = "https://openrouter.ai/api/v1"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
)

// Config holds the settings of an OpenAI-compatible chat completions
// endpoint.
type Config struct {
	BaseURL    string            `yaml:"base_url"`
	APIKey     string            `yaml:"api_key"`
	Model      string            `yaml:"model"`
	Timeout    time.Duration     `yaml:"timeout"`
	MaxRetries *int              `yaml:"max_retries"`
	Headers    map[string]string `yaml:"headers"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == nil {
		n := defaultMaxRetries
		c.MaxRetries = &n
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("provider.openai: api_key is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("provider.openai: model is required"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("provider.openai: timeout must be non-negative"))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.openai: max_retries must be non-negative"))
	}
	return errors.Join(errs...)
}
