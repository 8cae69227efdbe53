package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/telemetry"
	"github.com/flemzord/recall/pkg/message"
)

// releaseTimeout bounds the lock release issued after a run, which uses its
// own context so a cancelled run still frees the lock.
const releaseTimeout = 5 * time.Second

// Result describes one consolidation run.
type Result struct {
	UserID string
	// Skipped is true when there was nothing to fold.
	Skipped bool
	// Folded is the number of messages folded into the summary.
	Folded int
	// LastFoldedSeq is the summary watermark after the run.
	LastFoldedSeq int64
	// Summary is the stored summary text.
	Summary string
}

// Consolidator folds unsummarized messages into the durable summary.
// The caller must hold the user's consolidation lock; Consolidate always
// releases it.
type Consolidator struct {
	cache      Cache
	store      SummaryStore
	locker     Locker
	counter    *Counter
	summarizer Summarizer
	maxWords   int
	lockTTL    time.Duration
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// ConsolidatorConfig holds the dependencies of a Consolidator. LockTTL
// bounds a single run so it cannot outlive the lock it holds.
type ConsolidatorConfig struct {
	Cache      Cache
	Store      SummaryStore
	Locker     Locker
	Counter    *Counter
	Summarizer Summarizer
	MaxWords   int
	LockTTL    time.Duration
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(cfg ConsolidatorConfig) *Consolidator {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = DefaultMaxSummaryWords
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Consolidator{
		cache:      cfg.Cache,
		store:      cfg.Store,
		locker:     cfg.Locker,
		counter:    cfg.Counter,
		summarizer: cfg.Summarizer,
		maxWords:   cfg.MaxWords,
		lockTTL:    cfg.LockTTL,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "memory.consolidator"),
	}
}

// Consolidate folds every message after the durable watermark into the
// summary. On failure the durable summary is unchanged and the range stays
// pending for the next trigger.
func (c *Consolidator) Consolidate(ctx context.Context, userID string) (res Result, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "memory.consolidate")
	span.SetAttributes(attribute.String("user.id", userID))

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := c.locker.Release(relCtx, userID); relErr != nil {
			c.logger.Warn("releasing consolidation lock failed", "user", userID, "error", relErr)
		}

		outcome := telemetry.OutcomeOK
		switch {
		case provider.IsRetryable(err):
			outcome = telemetry.OutcomeRetryable
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case err != nil:
			outcome = telemetry.OutcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Skipped:
			outcome = telemetry.OutcomeSkipped
		}
		span.SetAttributes(
			attribute.String("memory.outcome", outcome),
			attribute.Int("memory.folded", res.Folded),
		)
		span.End()
		c.metrics.ConsolidationFinished(outcome, res.Folded, time.Since(start))
	}()

	res.UserID = userID

	ctx, cancel := context.WithTimeout(ctx, c.lockTTL)
	defer cancel()

	summary, _, err := c.store.ReadSummary(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("reading summary: %w", err)
	}
	res.LastFoldedSeq = summary.LastFoldedSeq
	res.Summary = summary.Text

	pending, err := c.store.ReadMessagesAfter(ctx, userID, summary.LastFoldedSeq)
	if err != nil {
		return res, fmt.Errorf("reading unsummarized messages: %w", err)
	}
	if len(pending) == 0 {
		res.Skipped = true
		return res, nil
	}

	text, err := c.summarizer.Summarize(ctx, SummaryRequest{
		Existing:     summary.Text,
		Conversation: message.Transcript(pending),
		MaxWords:     c.maxWords,
	})
	if err != nil {
		return res, fmt.Errorf("summarizing: %w", err)
	}
	text = CapWords(text, c.maxWords)

	lastSeq := pending[len(pending)-1].Seq
	if err := c.store.UpsertSummary(ctx, userID, text, lastSeq); err != nil {
		if errors.Is(err, ErrSummaryRegression) {
			c.logger.Warn("summary moved past this run, discarding", "user", userID, "last_seq", lastSeq)
		}
		return res, fmt.Errorf("storing summary: %w", err)
	}

	res.Folded = len(pending)
	res.LastFoldedSeq = lastSeq
	res.Summary = text

	// The durable state is authoritative from here; bootstrap re-mirrors it.
	if err := c.cache.SetSummary(ctx, userID, text); err != nil {
		c.logger.Warn("mirroring summary to cache failed", "user", userID, "error", err)
	}
	if err := c.counter.Reset(ctx, userID); err != nil {
		c.logger.Warn("resetting counter failed", "user", userID, "error", err)
	}

	c.logger.Info("summary consolidated",
		"user", userID,
		"folded", res.Folded,
		"last_folded_seq", lastSeq,
		"words", len(strings.Fields(text)),
	)
	return res, nil
}
