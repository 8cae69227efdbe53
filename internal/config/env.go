package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the process-level overrides read from the environment.
type Env struct {
	// ConfigPath bypasses the config search order.
	ConfigPath string `env:"RECALL_CONFIG"`
	// LogLevel overrides log_level from the file.
	LogLevel string `env:"RECALL_LOG_LEVEL"`
	// DataDir overrides data_dir from the file.
	DataDir string `env:"RECALL_DATA_DIR"`
}

// LoadEnv parses the RECALL_* variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	return e, nil
}

// Apply copies the set overrides onto cfg. Call it before ApplyDefaults so
// store.path is derived from the overridden data directory.
func (e Env) Apply(cfg *Config) {
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
	if e.DataDir != "" {
		cfg.DataDir = e.DataDir
	}
}

// ResolvePath returns path when set, then RECALL_CONFIG, then the search
// order of ResolveConfigPath.
func (e Env) ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if e.ConfigPath != "" {
		return e.ConfigPath, nil
	}
	return ResolveConfigPath()
}
