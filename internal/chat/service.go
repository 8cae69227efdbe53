// Package chat orchestrates a conversational turn over the memory
// subsystem: persist, cache, reply, persist, count, and hand consolidation
// to the background pool.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/telemetry"
	"github.com/flemzord/recall/pkg/message"
)

// Turn results used in metrics.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Config holds the dependencies of a Service.
type Config struct {
	Memory       memory.Config
	Cache        memory.Cache
	Locker       memory.Locker
	Store        memory.SummaryStore
	Directory    memory.UserDirectory
	Counter      *memory.Counter
	Bootstrapper *memory.Bootstrapper
	Pool         memory.Enqueuer
	Replier      ReplyGenerator
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
}

// Service handles chat sessions and turns.
type Service struct {
	cfg          memory.Config
	cache        memory.Cache
	locker       memory.Locker
	store        memory.SummaryStore
	directory    memory.UserDirectory
	counter      *memory.Counter
	bootstrapper *memory.Bootstrapper
	pool         memory.Enqueuer
	replier      ReplyGenerator
	metrics      *telemetry.Metrics
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]int
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		cfg:          cfg.Memory.WithDefaults(),
		cache:        cfg.Cache,
		locker:       cfg.Locker,
		store:        cfg.Store,
		directory:    cfg.Directory,
		counter:      cfg.Counter,
		bootstrapper: cfg.Bootstrapper,
		pool:         cfg.Pool,
		replier:      cfg.Replier,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With("component", "chat"),
		sessions:     make(map[string]int),
	}
}

// Connect opens a session for userID and warms its cache. It returns
// memory.ErrUnknownUser when the user does not exist. Other bootstrap
// failures are logged and the session opens degraded; turns then read
// their context from the durable store.
func (s *Service) Connect(ctx context.Context, userID string) error {
	if err := s.bootstrapper.Bootstrap(ctx, userID); err != nil {
		if errors.Is(err, memory.ErrUnknownUser) {
			return err
		}
		s.metrics.CacheDegraded("bootstrap")
		s.logger.Warn("bootstrap failed, session continues without warm cache", "user", userID, "error", err)
	}

	s.mu.Lock()
	s.sessions[userID]++
	s.mu.Unlock()
	s.metrics.SessionOpened()
	s.logger.Info("session opened", "user", userID)
	return nil
}

// Disconnect closes one session of userID.
func (s *Service) Disconnect(userID string) {
	s.mu.Lock()
	if n := s.sessions[userID]; n <= 1 {
		delete(s.sessions, userID)
	} else {
		s.sessions[userID] = n - 1
	}
	s.mu.Unlock()
	s.metrics.SessionClosed()
	s.logger.Info("session closed", "user", userID)
}

// ActiveUsers returns the users with at least one open session, sorted.
func (s *Service) ActiveUsers() []string {
	s.mu.Lock()
	users := make([]string, 0, len(s.sessions))
	for u := range s.sessions {
		users = append(users, u)
	}
	s.mu.Unlock()
	slices.Sort(users)
	return users
}

// HandleTurn persists the user input, generates and persists the reply,
// and triggers consolidation when the counter reaches the threshold.
// Cache failures degrade the context but never fail the turn.
func (s *Service) HandleTurn(ctx context.Context, userID, input string) (reply string, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "chat.turn")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		result := resultOK
		if err != nil {
			result = resultError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.TurnFinished(result, time.Since(start))
	}()

	userMsg, err := message.New(message.RoleUser, input)
	if err != nil {
		return "", err
	}

	if err := s.record(ctx, userID, &userMsg); err != nil {
		return "", err
	}
	degraded := s.mirror(ctx, userID, userMsg)

	req, fromCache := s.turnContext(ctx, userID, degraded)
	req.Input = input
	span.SetAttributes(attribute.Bool("chat.cache_context", fromCache))

	reply, err = s.replier.Reply(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReply, err)
	}

	assistantMsg, err := message.New(message.RoleAssistant, reply)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReply, err)
	}
	if err := s.record(ctx, userID, &assistantMsg); err != nil {
		return "", err
	}
	s.mirror(ctx, userID, assistantMsg)

	s.maybeConsolidate(ctx, userID)
	return reply, nil
}

// record appends msg to the durable log and replaces it with the stored
// copy, so the window carries the same seq and timestamp as the log.
func (s *Service) record(ctx context.Context, userID string, msg *message.Message) error {
	stored, err := s.store.AppendMessage(ctx, userID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	*msg = stored
	s.metrics.MessagePersisted(string(msg.Role))
	return nil
}

// mirror pushes msg into the window and increments the counter. It
// reports whether the cache failed.
func (s *Service) mirror(ctx context.Context, userID string, msg message.Message) bool {
	failed := false
	if err := s.cache.Push(ctx, userID, msg, s.cfg.WindowLimit); err != nil {
		s.degrade(userID, "push", err)
		failed = true
	}
	if _, err := s.counter.Increment(ctx, userID); err != nil {
		s.degrade(userID, "incr", err)
		failed = true
	}
	return failed
}

// turnContext assembles the reply input from the cache, falling back to the
// durable store and the user directory when the cache is unusable.
func (s *Service) turnContext(ctx context.Context, userID string, degraded bool) (ReplyRequest, bool) {
	if !degraded {
		req, err := s.cachedContext(ctx, userID)
		if err == nil {
			return req, true
		}
		s.degrade(userID, "read", err)
	}

	var req ReplyRequest
	if sum, _, err := s.store.ReadSummary(ctx, userID); err == nil {
		req.Summary = sum.Text
	} else {
		s.logger.Warn("reading durable summary failed", "user", userID, "error", err)
	}
	if recent, err := s.store.ReadRecentMessages(ctx, userID, s.cfg.WindowLimit); err == nil {
		slices.Reverse(recent)
		req.Recent = recent
	} else {
		s.logger.Warn("reading durable window failed", "user", userID, "error", err)
	}
	if p, err := s.directory.Profile(ctx, userID); err == nil {
		req.Profile = p.Context()
	} else {
		s.logger.Warn("reading profile failed", "user", userID, "error", err)
	}
	return req, false
}

func (s *Service) cachedContext(ctx context.Context, userID string) (ReplyRequest, error) {
	var (
		req ReplyRequest
		err error
	)
	if req.Summary, err = s.cache.Summary(ctx, userID); err != nil {
		return req, err
	}
	if req.Recent, err = s.cache.Window(ctx, userID); err != nil {
		return req, err
	}
	profile, loaded, err := s.cache.UserContext(ctx, userID)
	if err != nil {
		return req, err
	}
	if !loaded {
		p, err := s.directory.Profile(ctx, userID)
		if err != nil {
			return req, err
		}
		profile = p.Context()
		if err := s.cache.SetUserContext(ctx, userID, profile); err != nil {
			return req, err
		}
	}
	req.Profile = profile
	return req, nil
}

// maybeConsolidate enqueues a consolidation when this turn won the lock.
// Errors are logged; the turn has already succeeded.
func (s *Service) maybeConsolidate(ctx context.Context, userID string) {
	if s.pool == nil {
		return
	}
	ok, err := s.counter.ShouldConsolidate(ctx, userID, s.cfg.TriggerCount)
	if err != nil {
		s.degrade(userID, "trigger", err)
		return
	}
	if !ok {
		return
	}

	if _, err := s.pool.Enqueue(userID); err != nil {
		s.logger.Warn("consolidation not scheduled", "user", userID, "error", err)
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := s.locker.Release(relCtx, userID); relErr != nil {
			s.logger.Warn("releasing consolidation lock failed", "user", userID, "error", relErr)
		}
		return
	}
	s.logger.Debug("consolidation scheduled", "user", userID)
}

func (s *Service) degrade(userID, op string, err error) {
	s.metrics.CacheDegraded(op)
	s.logger.Warn("cache unavailable, using degraded context",
		"user", userID,
		"op", op,
		"error", fmt.Errorf("%w: %w", memory.ErrCacheUnavailable, err),
	)
}
