package core

import "context"

// Starter is implemented by components that need to start background work
// (goroutines, listeners, connections).
type Starter interface {
	Start() error
}

// Stopper is implemented by components that need to clean up resources.
// Called during shutdown in reverse order of Start().
type Stopper interface {
	Stop(ctx context.Context) error
}

// StartFunc adapts a function to Starter.
type StartFunc func() error

// Start implements Starter.
func (f StartFunc) Start() error { return f() }

// StopFunc adapts a function to Stopper.
type StopFunc func(ctx context.Context) error

// Stop implements Stopper.
func (f StopFunc) Stop(ctx context.Context) error { return f(ctx) }
