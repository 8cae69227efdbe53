package memory

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flemzord/recall/internal/telemetry"
)

// Bootstrapper rebuilds a user's session cache from durable state when a
// session opens. Running it twice with no intervening writes leaves the
// cache in the same state.
type Bootstrapper struct {
	cache       Cache
	store       SummaryStore
	directory   UserDirectory
	counter     *Counter
	windowLimit int
	logger      *slog.Logger
}

// BootstrapperConfig holds the dependencies of a Bootstrapper.
type BootstrapperConfig struct {
	Cache       Cache
	Store       SummaryStore
	Directory   UserDirectory
	Counter     *Counter
	WindowLimit int
	Logger      *slog.Logger
}

// NewBootstrapper creates a Bootstrapper.
func NewBootstrapper(cfg BootstrapperConfig) *Bootstrapper {
	if cfg.WindowLimit <= 0 {
		cfg.WindowLimit = DefaultWindowLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bootstrapper{
		cache:       cfg.Cache,
		store:       cfg.Store,
		directory:   cfg.Directory,
		counter:     cfg.Counter,
		windowLimit: cfg.WindowLimit,
		logger:      cfg.Logger.With("component", "memory.bootstrap"),
	}
}

// Bootstrap warms the cache for userID. It returns ErrUnknownUser, before
// touching the cache, when the directory has no such user.
func (b *Bootstrapper) Bootstrap(ctx context.Context, userID string) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "memory.bootstrap")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	profile, err := b.directory.Profile(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolving user %q: %w", userID, err)
	}

	if err := b.cache.ClearWindow(ctx, userID); err != nil {
		return fmt.Errorf("clearing window: %w", err)
	}

	recent, err := b.store.ReadRecentMessages(ctx, userID, b.windowLimit)
	if err != nil {
		return fmt.Errorf("reading recent messages: %w", err)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if err := b.cache.Push(ctx, userID, recent[i], b.windowLimit); err != nil {
			return fmt.Errorf("filling window: %w", err)
		}
	}

	summary, _, err := b.store.ReadSummary(ctx, userID)
	if err != nil {
		return fmt.Errorf("reading summary: %w", err)
	}
	if err := b.cache.SetSummary(ctx, userID, summary.Text); err != nil {
		return fmt.Errorf("mirroring summary: %w", err)
	}

	if err := b.counter.Initialize(ctx, userID); err != nil {
		return err
	}

	_, loaded, err := b.cache.UserContext(ctx, userID)
	if err != nil {
		return fmt.Errorf("reading user context: %w", err)
	}
	if !loaded {
		if err := b.cache.SetUserContext(ctx, userID, profile.Context()); err != nil {
			return fmt.Errorf("loading user context: %w", err)
		}
	}

	b.logger.Debug("session cache warmed",
		"user", userID,
		"window", len(recent),
		"last_folded_seq", summary.LastFoldedSeq,
	)
	return nil
}
