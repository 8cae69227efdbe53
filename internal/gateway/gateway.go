// Package gateway exposes the chat WebSocket, health, metrics, and the
// memory inspection API over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/flemzord/recall/internal/chat"
	"github.com/flemzord/recall/internal/security"
	"github.com/flemzord/recall/internal/telemetry"
	"github.com/flemzord/recall/pkg/message"
	"github.com/prometheus/client_golang/prometheus"
)

// ChatService is the session and turn surface the gateway drives.
type ChatService interface {
	Connect(ctx context.Context, userID string) error
	Disconnect(userID string)
	HandleTurn(ctx context.Context, userID, input string) (string, error)
	Snapshot(ctx context.Context, userID string) (chat.Snapshot, error)
	History(ctx context.Context, userID string, limit, offset int) ([]message.Message, error)
}

var _ ChatService = (*chat.Service)(nil)

// Pinger is a dependency checked by GET /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names a Pinger in the health report.
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

// Options wires the gateway's collaborators.
type Options struct {
	Config   Config
	Chat     ChatService
	Checks   []HealthCheck
	Gatherer prometheus.Gatherer // nil leaves /metrics unmounted
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// Gateway is the HTTP server. It implements core.Starter and core.Stopper.
type Gateway struct {
	config   Config
	chat     ChatService
	checks   []HealthCheck
	gatherer prometheus.Gatherer
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	turnLimiter *security.RateLimiter
	authLimiter *security.RateLimiter

	mu     sync.Mutex
	conns  map[*websocket.Conn]string
	server *http.Server
	addr   net.Addr
}

// New creates a Gateway. opts.Config is expected to be defaulted.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:      opts.Config,
		chat:        opts.Chat,
		checks:      opts.Checks,
		gatherer:    opts.Gatherer,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "gateway"),
		turnLimiter: security.NewRateLimiter(opts.Config.RateLimit.TurnsPerMinute, time.Minute),
		authLimiter: security.NewRateLimiter(opts.Config.RateLimit.AuthFailuresPerMinute, time.Minute),
		conns:       make(map[*websocket.Conn]string),
	}
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start() error {
	// ReadHeaderTimeout rather than ReadTimeout: the latter would also cut
	// hijacked WebSocket connections.
	server := &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.Handler(),
		ReadHeaderTimeout: g.config.ReadTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	g.mu.Lock()
	g.server = server
	g.addr = ln.Addr()
	g.mu.Unlock()

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// Stop closes open chat sockets and shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	server := g.server
	conns := make([]*websocket.Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	if server == nil {
		return nil
	}

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down", "open_sockets", len(conns))
	return server.Shutdown(shutdownCtx)
}

func (g *Gateway) track(c *websocket.Conn, userID string) {
	g.mu.Lock()
	g.conns[c] = userID
	g.mu.Unlock()
}

func (g *Gateway) untrack(c *websocket.Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
}
