package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/recall/internal/cron"
)

// Validate checks a defaulted Config and reports every problem at once.
func Validate(cfg *Config) error {
	errs := validateVersion(cfg)

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateMemory(cfg)...)

	if err := cfg.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: cache: %w", err))
	}
	errs = append(errs, validateStore(cfg)...)
	if err := cfg.Provider.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: provider: %w", err))
	}
	if t := cfg.Provider.ReplyTemperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("config: provider.reply_temperature must be within [0, 2], got %v", *t))
	}
	if cfg.Provider.ReplyMaxTokens < 0 {
		errs = append(errs, errors.New("config: provider.reply_max_tokens must be non-negative"))
	}
	if err := cfg.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: gateway: %w", err))
	}

	return errors.Join(errs...)
}

// ValidateStore checks only the version and the store section, for commands
// that open the database without running the service.
func ValidateStore(cfg *Config) error {
	errs := validateVersion(cfg)
	errs = append(errs, validateStore(cfg)...)
	return errors.Join(errs...)
}

func validateVersion(cfg *Config) []error {
	switch cfg.Version {
	case CurrentVersion:
		return nil
	case "":
		return []error{errors.New("config: version field is required")}
	default:
		return []error{fmt.Errorf("config: unsupported version %q (supported: %q)", cfg.Version, CurrentVersion)}
	}
}

func validateStore(cfg *Config) []error {
	if err := cfg.Store.Validate(); err != nil {
		return []error{fmt.Errorf("config: store: %w", err)}
	}
	return nil
}

func validateMemory(cfg *Config) []error {
	var errs []error
	m := cfg.Memory

	if cfg.ReconcileEnabled() {
		if err := cron.ValidateSchedule(m.ReconcileSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: memory.reconcile_schedule: %w", err))
		}
	}
	return errs
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log_level %q", s)
	}
	return level, nil
}
