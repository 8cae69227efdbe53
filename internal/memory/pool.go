package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/telemetry"
)

// ConsolidateFunc runs one consolidation for a user.
type ConsolidateFunc func(ctx context.Context, userID string) (Result, error)

// Completion reports the outcome of an enqueued consolidation.
type Completion struct {
	UserID   string
	Result   Result
	Err      error
	Duration time.Duration
}

type poolJob struct {
	userID string
	done   chan Completion
}

// Pool is a fixed set of goroutines consuming a bounded consolidation
// queue. Work runs on the pool's own context, never the caller's.
type Pool struct {
	run     ConsolidateFunc
	size    int
	queue   chan poolJob
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// NewPool creates a pool that executes run for each enqueued user.
func NewPool(run ConsolidateFunc, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		run:     run,
		size:    cfg.Workers,
		queue:   make(chan poolJob, cfg.QueueSize),
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "memory.pool"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines. Jobs enqueued before Start wait in
// the queue.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	if p.started {
		return nil
	}
	p.started = true

	for range p.size {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.queue {
				p.execute(job)
			}
		}()
	}
	p.logger.Info("consolidation pool started", "workers", p.size, "queue", cap(p.queue))
	return nil
}

// Enqueue schedules a consolidation for userID without blocking. The
// returned channel receives exactly one Completion.
func (p *Pool) Enqueue(userID string) (<-chan Completion, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.metrics.QueueRejected()
		return nil, ErrPoolStopped
	}

	job := poolJob{userID: userID, done: make(chan Completion, 1)}
	select {
	case p.queue <- job:
		return job.done, nil
	default:
		p.metrics.QueueRejected()
		return nil, ErrQueueFull
	}
}

// Stop refuses new work and waits for queued and in-flight jobs. When ctx
// expires first, running jobs are cancelled and ctx.Err is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		p.cancel()
		for job := range p.queue {
			job.done <- Completion{UserID: job.userID, Err: ErrPoolStopped}
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("stopping consolidation pool: %w", ctx.Err())
	}
}

func (p *Pool) execute(job poolJob) {
	start := time.Now()
	res, err := p.run(p.ctx, job.userID)
	c := Completion{UserID: job.userID, Result: res, Err: err, Duration: time.Since(start)}

	switch {
	case provider.IsRetryable(err):
		p.logger.Warn("consolidation deferred by a transient provider error",
			"user", job.userID, "duration", c.Duration, "error", err)
	case err != nil:
		p.logger.Error("consolidation failed", "user", job.userID, "duration", c.Duration, "error", err)
	case res.Skipped:
		p.logger.Debug("consolidation skipped, nothing to fold", "user", job.userID)
	default:
		p.logger.Info("consolidation finished",
			"user", job.userID,
			"folded", res.Folded,
			"last_folded_seq", res.LastFoldedSeq,
			"duration", c.Duration,
		)
	}
	job.done <- c
}
