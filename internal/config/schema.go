// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and validation for recall.
package config

import (
	"github.com/flemzord/recall/internal/chat"
	"github.com/flemzord/recall/internal/cron"
	"github.com/flemzord/recall/internal/gateway"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/telemetry"
	"github.com/flemzord/recall/modules/cache/redis"
	"github.com/flemzord/recall/modules/provider/openai"
	"github.com/flemzord/recall/modules/store/sqlite"
)

// CurrentVersion is the only supported config format version.
const CurrentVersion = "1"

// ReconcileOff disables the counter reconcile job when used as
// memory.reconcile_schedule.
const ReconcileOff = "off"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// DataDir holds the SQLite database when store.path is unset.
	DataDir string `yaml:"data_dir"`

	Memory    memory.Config   `yaml:"memory"`
	Cache     redis.Config    `yaml:"cache"`
	Store     sqlite.Config   `yaml:"store"`
	Provider  ProviderConfig  `yaml:"provider"`
	Gateway   gateway.Config  `yaml:"gateway"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig is the LLM endpoint plus the reply generation knobs.
type ProviderConfig struct {
	openai.Config `yaml:",inline"`

	// ReplyTemperature defaults to 0.3.
	ReplyTemperature *float64 `yaml:"reply_temperature"`
	// ReplyMaxTokens is unbounded when zero.
	ReplyMaxTokens int `yaml:"reply_max_tokens"`
	// SystemPrompt replaces the built-in assistant instructions.
	SystemPrompt string `yaml:"system_prompt"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// Tracing converts the section to the telemetry package's config.
func (t TelemetryConfig) Tracing() telemetry.TracingConfig {
	return telemetry.TracingConfig{
		Endpoint:    t.OTLPEndpoint,
		Insecure:    t.Insecure,
		ServiceName: t.ServiceName,
	}
}

// ReconcileEnabled reports whether the reconcile job should be scheduled.
func (c *Config) ReconcileEnabled() bool {
	return c.Memory.ReconcileSchedule != ReconcileOff
}

// ApplyDefaults fills every unset field. dataDir is used when the file does
// not set data_dir.
func (c *Config) ApplyDefaults(dataDir string) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = dataDir
	}

	c.Memory = c.Memory.WithDefaults()
	if c.Memory.ReconcileSchedule == "" {
		c.Memory.ReconcileSchedule = cron.DefaultReconcileSchedule
	}

	c.Cache.Defaults()
	c.Store.Defaults(c.DataDir)
	c.Provider.Defaults()
	if c.Provider.ReplyTemperature == nil {
		t := chat.DefaultReplyTemperature
		c.Provider.ReplyTemperature = &t
	}
	c.Gateway.Defaults()

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "recall"
	}
}
