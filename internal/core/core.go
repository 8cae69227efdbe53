// Package core runs the process lifecycle: named components start in
// registration order and stop in reverse.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds the whole reverse-order stop sequence.
const DefaultShutdownTimeout = 30 * time.Second

// ErrAlreadyStarted is returned by Add and Start once the app is running.
var ErrAlreadyStarted = errors.New("core: app already started")

// App manages the lifecycle of a set of components.
type App struct {
	components      []component
	logger          *slog.Logger
	shutdownTimeout time.Duration
	running         bool
}

type component struct {
	name    string
	value   any
	started bool
}

// NewApp creates an empty App. A zero shutdownTimeout uses
// DefaultShutdownTimeout.
func NewApp(logger *slog.Logger, shutdownTimeout time.Duration) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &App{
		logger:          logger.With("component", "core"),
		shutdownTimeout: shutdownTimeout,
	}
}

// Add registers a component. It takes part in Start when it implements
// Starter and in Stop when it implements Stopper.
func (a *App) Add(name string, c any) error {
	if a.running {
		return ErrAlreadyStarted
	}
	_, isStarter := c.(Starter)
	_, isStopper := c.(Stopper)
	if !isStarter && !isStopper {
		return fmt.Errorf("core: component %s implements neither Starter nor Stopper", name)
	}
	a.components = append(a.components, component{name: name, value: c})
	return nil
}

// Names returns the registered component names in start order.
func (a *App) Names() []string {
	names := make([]string, len(a.components))
	for i, c := range a.components {
		names[i] = c.name
	}
	return names
}

// Start starts every component in order. When one fails, those already
// started are stopped in reverse order and the error is returned.
func (a *App) Start() error {
	if a.running {
		return ErrAlreadyStarted
	}
	a.running = true

	for i := range a.components {
		c := &a.components[i]
		if s, ok := c.value.(Starter); ok {
			a.logger.Info("starting component", "name", c.name)
			if err := s.Start(); err != nil {
				a.logger.Error("component start failed", "name", c.name, "error", err)
				a.stopFrom(i - 1)
				a.running = false
				return fmt.Errorf("starting component %s: %w", c.name, err)
			}
		}
		// Stop-only components are considered started once reached.
		c.started = true
	}
	a.logger.Info("all components started", "count", len(a.components))
	return nil
}

// Stop stops every started component in reverse order within the shutdown
// timeout and returns the joined stop errors.
func (a *App) Stop() error {
	err := a.stopFrom(len(a.components) - 1)
	a.running = false
	return err
}

func (a *App) stopFrom(index int) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := index; i >= 0; i-- {
		c := &a.components[i]
		if !c.started {
			continue
		}
		if s, ok := c.value.(Stopper); ok {
			a.logger.Info("stopping component", "name", c.name)
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("component stop error", "name", c.name, "error", err)
				errs = append(errs, fmt.Errorf("stopping component %s: %w", c.name, err))
			}
		}
		c.started = false
	}
	return errors.Join(errs...)
}

// Run starts all components and blocks until ctx is done or SIGINT/SIGTERM
// arrives, then stops them.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	a.logger.Info("shutdown requested", "cause", context.Cause(sigCtx))

	err := a.Stop()
	a.logger.Info("shutdown complete")
	return err
}
