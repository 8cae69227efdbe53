package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/recall/internal/chat"
	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/cron"
	"github.com/flemzord/recall/internal/gateway"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/telemetry"
	"github.com/flemzord/recall/modules/cache/redis"
	"github.com/flemzord/recall/modules/provider/openai"
	"github.com/flemzord/recall/modules/store/sqlite"
)

// Deps overrides collaborators that Build would otherwise create from the
// config. Zero fields use the defaults.
type Deps struct {
	Logger *slog.Logger
	// Provider replaces the OpenAI-compatible client.
	Provider provider.Provider
	// Registry replaces the process Prometheus registry.
	Registry *prometheus.Registry
}

// System is the assembled process. App owns the lifecycle of everything
// else.
type System struct {
	App       *core.App
	Store     *sqlite.Store
	Cache     *redis.Cache
	Chat      *chat.Service
	Pool      *memory.Pool
	Scheduler *cron.Scheduler
	Gateway   *gateway.Gateway
	Registry  *prometheus.Registry
}

// Build opens the stores and wires the memory subsystem, the chat service,
// the reconcile job, and the gateway into a core.App. Nothing is started.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (sys *System, err error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := telemetry.NewMetrics(reg)

	// Anything opened before a later failure is closed again.
	var closers []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](ctx)
		}
	}()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing(), logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, shutdownTracing)

	store, err := sqlite.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store.Stop)

	cache, err := redis.New(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, cache.Stop)
	locker := cache.Locker()

	llm := deps.Provider
	if llm == nil {
		if llm, err = openai.New(cfg.Provider.Config, logger); err != nil {
			return nil, fmt.Errorf("provider: %w", err)
		}
	}

	mcfg := cfg.Memory
	counter := memory.NewCounter(memory.CounterConfig{
		Cache: cache, Store: store, Locker: locker, LockTTL: mcfg.LockTTL,
		Metrics: metrics, Logger: logger,
	})
	consolidator := memory.NewConsolidator(memory.ConsolidatorConfig{
		Cache:      cache,
		Store:      store,
		Locker:     locker,
		Counter:    counter,
		Summarizer: &memory.LLMSummarizer{Provider: llm, MaxTokens: mcfg.SummaryMaxTokens},
		MaxWords:   mcfg.MaxSummaryWords,
		LockTTL:    mcfg.LockTTL,
		Metrics:    metrics,
		Logger:     logger,
	})
	pool := memory.NewPool(consolidator.Consolidate, memory.PoolConfig{
		Workers: mcfg.Workers, QueueSize: mcfg.QueueSize, Metrics: metrics, Logger: logger,
	})

	svc := chat.NewService(chat.Config{
		Memory:    mcfg,
		Cache:     cache,
		Locker:    locker,
		Store:     store,
		Directory: store,
		Counter:   counter,
		Bootstrapper: memory.NewBootstrapper(memory.BootstrapperConfig{
			Cache: cache, Store: store, Directory: store, Counter: counter,
			WindowLimit: mcfg.WindowLimit, Logger: logger,
		}),
		Pool: pool,
		Replier: &chat.LLMReplier{
			Provider:     llm,
			SystemPrompt: cfg.Provider.SystemPrompt,
			Temperature:  cfg.Provider.ReplyTemperature,
			MaxTokens:    cfg.Provider.ReplyMaxTokens,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	scheduler := cron.NewScheduler(logger)
	if cfg.ReconcileEnabled() {
		job := &cron.CounterReconcileJob{
			Reconciler: &memory.Reconciler{
				ActiveUsers: svc.ActiveUsers,
				Cache:       cache,
				Locker:      locker,
				Counter:     counter,
				Pool:        pool,
				Threshold:   mcfg.TriggerCount,
				Metrics:     metrics,
				Logger:      logger,
			},
			Logger:       logger,
			ScheduleExpr: mcfg.ReconcileSchedule,
		}
		if err = scheduler.RegisterJob(job); err != nil {
			return nil, err
		}
	}

	gw := gateway.New(gateway.Options{
		Config: cfg.Gateway,
		Chat:   svc,
		Checks: []gateway.HealthCheck{
			{Name: "cache", Pinger: cache},
			{Name: "store", Pinger: store},
		},
		Gatherer: reg,
		Metrics:  metrics,
		Logger:   logger,
	})

	application := core.NewApp(logger, core.DefaultShutdownTimeout)
	components := []struct {
		name  string
		value any
	}{
		{"tracing", core.StopFunc(shutdownTracing)},
		{"store.sqlite", store},
		{"cache.redis", cache},
		{"memory.pool", pool},
		{"cron", scheduler},
		{"gateway", gw},
	}
	for _, c := range components {
		if err = application.Add(c.name, c.value); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	return &System{
		App:       application,
		Store:     store,
		Cache:     cache,
		Chat:      svc,
		Pool:      pool,
		Scheduler: scheduler,
		Gateway:   gw,
		Registry:  reg,
	}, nil
}
