// Package redis implements the session context cache and the distributed
// consolidation lock on Redis. Every multi-step mutation runs as a single
// MULTI/EXEC transaction so concurrent processes never observe partial
// state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/pkg/message"
)

// Cache implements memory.Cache on Redis.
type Cache struct {
	rdb    *goredis.Client
	keys   keyspace
	ttl    time.Duration
	logger *slog.Logger
}

// Compile-time interface guard.
var _ memory.Cache = (*Cache)(nil)

// New connects to Redis as described by cfg. The connection is lazy; use
// Ping to verify reachability.
func New(cfg Config, logger *slog.Logger) (*Cache, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return NewWithClient(rdb, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client, cfg Config, logger *slog.Logger) *Cache {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		rdb:    rdb,
		keys:   keyspace{prefix: cfg.KeyPrefix},
		ttl:    cfg.TTL,
		logger: logger.With("component", "cache.redis"),
	}
}

// Locker returns the consolidation lock sharing this cache's connection.
func (c *Cache) Locker() *Locker {
	return &Locker{rdb: c.rdb, keys: c.keys}
}

// Ping verifies Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Stop closes the client. It satisfies the lifecycle stopper.
func (c *Cache) Stop(_ context.Context) error {
	c.logger.Info("redis cache stopping")
	return c.Close()
}

// Push appends msg and trims the window to the newest limit entries.
func (c *Cache) Push(ctx context.Context, userID string, msg message.Message, limit int) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("redis: push: window limit must be positive, got %d", limit)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: encode message: %w", err)
	}

	key := c.keys.messages(userID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.LTrim(ctx, key, int64(-limit), -1)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: push: %w", err)
	}
	return nil
}

// Window returns the cached window oldest-first. Entries that fail to
// decode are skipped and logged.
func (c *Cache) Window(ctx context.Context, userID string) ([]message.Message, error) {
	raw, err := c.rdb.LRange(ctx, c.keys.messages(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: window: %w", err)
	}
	msgs := make([]message.Message, 0, len(raw))
	for _, r := range raw {
		var m message.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			c.logger.Warn("skipping undecodable window entry", "user", userID, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ClearWindow deletes the window.
func (c *Cache) ClearWindow(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, c.keys.messages(userID)).Err(); err != nil {
		return fmt.Errorf("redis: clear window: %w", err)
	}
	return nil
}

// Exists reports whether a window is cached for the user.
func (c *Cache) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.keys.messages(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists: %w", err)
	}
	return n > 0, nil
}

// Summary returns the mirrored summary, or "" when absent.
func (c *Cache) Summary(ctx context.Context, userID string) (string, error) {
	text, _, err := c.get(ctx, c.keys.summary(userID))
	if err != nil {
		return "", fmt.Errorf("redis: summary: %w", err)
	}
	return text, nil
}

// SetSummary mirrors the summary text.
func (c *Cache) SetSummary(ctx context.Context, userID, text string) error {
	if err := c.rdb.Set(ctx, c.keys.summary(userID), text, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set summary: %w", err)
	}
	return nil
}

// UserContext returns the profile blob and whether the key exists.
func (c *Cache) UserContext(ctx context.Context, userID string) (string, bool, error) {
	text, ok, err := c.get(ctx, c.keys.userContext(userID))
	if err != nil {
		return "", false, fmt.Errorf("redis: user context: %w", err)
	}
	return text, ok, nil
}

// SetUserContext stores the profile blob.
func (c *Cache) SetUserContext(ctx context.Context, userID, text string) error {
	if err := c.rdb.Set(ctx, c.keys.userContext(userID), text, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set user context: %w", err)
	}
	return nil
}

// Count returns the unsummarized counter, or 0 when absent.
func (c *Cache) Count(ctx context.Context, userID string) (int64, error) {
	n, err := c.rdb.Get(ctx, c.keys.count(userID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: count: %w", err)
	}
	return n, nil
}

// SetCount overwrites the counter.
func (c *Cache) SetCount(ctx context.Context, userID string, n int64) error {
	if err := c.rdb.Set(ctx, c.keys.count(userID), n, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set count: %w", err)
	}
	return nil
}

// Incr increments the counter and refreshes its TTL atomically.
func (c *Cache) Incr(ctx context.Context, userID string) (int64, error) {
	key := c.keys.count(userID)
	var incr *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis: incr: %w", err)
	}
	return incr.Val(), nil
}

func (c *Cache) get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
