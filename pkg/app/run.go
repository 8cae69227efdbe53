// Package app assembles recall's components and runs them until shutdown.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, RECALL_CONFIG and then the standard locations are tried.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string
}

// Run loads configuration, builds every component, and blocks until
// SIGINT or SIGTERM.
func Run(params RunParams) error {
	cfg, cfgPath, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := NewLogger(os.Stderr, level, cfg)
	logger.Info("starting recall",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", cfg.DataDir,
	)

	ctx := context.Background()
	sys, err := Build(ctx, cfg, Deps{Logger: logger})
	if err != nil {
		return err
	}
	return sys.App.Run(ctx)
}

// LoadConfig resolves the config path, applies RECALL_* overrides and
// defaults, and validates. It returns the config and the path it was read
// from.
func LoadConfig(path string) (*config.Config, string, error) {
	return loadConfig(path, config.Resolve)
}

// LoadStoreConfig is LoadConfig for commands that only open the store. Only
// the version and the store section are validated.
func LoadStoreConfig(path string) (*config.Config, string, error) {
	return loadConfig(path, config.ResolveStore)
}

func loadConfig(path string, resolve func(string, config.Env, string) (*config.Config, error)) (*config.Config, string, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, "", err
	}
	cfgPath, err := env.ResolvePath(path)
	if err != nil {
		return nil, "", err
	}
	cfg, err := resolve(cfgPath, env, config.DefaultDataDir())
	if err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

// NewLogger builds the process logger: a text handler on w wrapped in a
// redacting handler that knows the configured secrets.
func NewLogger(w io.Writer, level slog.Level, cfg *config.Config) *slog.Logger {
	redactor := security.NewRedactor(
		cfg.Provider.APIKey,
		cfg.Cache.Password,
		cfg.Gateway.Auth.BearerToken,
	)
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}
