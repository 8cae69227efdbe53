// Package memorytest provides in-memory implementations of the memory
// interfaces for tests. They are process-local and must not be used to
// serve more than one process.
package memorytest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/pkg/message"
)

type lockEntry struct {
	expires time.Time
}

// Cache is an in-memory memory.Cache and memory.Locker. Set Err to make
// every call fail, simulating an unreachable cache.
type Cache struct {
	mu       sync.Mutex
	now      func() time.Time
	err      error
	windows  map[string][]message.Message
	summary  map[string]string
	contexts map[string]string
	counts   map[string]int64
	locks    map[string]lockEntry
}

// NewCache returns an empty cache using the wall clock.
func NewCache() *Cache {
	return &Cache{
		now:      time.Now,
		windows:  make(map[string][]message.Message),
		summary:  make(map[string]string),
		contexts: make(map[string]string),
		counts:   make(map[string]int64),
		locks:    make(map[string]lockEntry),
	}
}

// SetClock replaces the clock used for lock expiry.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// SetErr makes every subsequent call return err. Pass nil to recover.
func (c *Cache) SetErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Push implements memory.Cache.
func (c *Cache) Push(_ context.Context, userID string, msg message.Message, limit int) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	w := append(c.windows[userID], msg)
	if limit > 0 && len(w) > limit {
		w = append([]message.Message(nil), w[len(w)-limit:]...)
	}
	c.windows[userID] = w
	return nil
}

// Window implements memory.Cache.
func (c *Cache) Window(_ context.Context, userID string) ([]message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]message.Message(nil), c.windows[userID]...), nil
}

// ClearWindow implements memory.Cache.
func (c *Cache) ClearWindow(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.windows, userID)
	return nil
}

// Exists implements memory.Cache.
func (c *Cache) Exists(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	return len(c.windows[userID]) > 0, nil
}

// Summary implements memory.Cache.
func (c *Cache) Summary(_ context.Context, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.summary[userID], nil
}

// SetSummary implements memory.Cache.
func (c *Cache) SetSummary(_ context.Context, userID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.summary[userID] = text
	return nil
}

// UserContext implements memory.Cache.
func (c *Cache) UserContext(_ context.Context, userID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	text, ok := c.contexts[userID]
	return text, ok, nil
}

// SetUserContext implements memory.Cache.
func (c *Cache) SetUserContext(_ context.Context, userID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.contexts[userID] = text
	return nil
}

// Count implements memory.Cache.
func (c *Cache) Count(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.counts[userID], nil
}

// SetCount implements memory.Cache.
func (c *Cache) SetCount(_ context.Context, userID string, n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.counts[userID] = n
	return nil
}

// Incr implements memory.Cache.
func (c *Cache) Incr(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[userID]++
	return c.counts[userID], nil
}

// Acquire implements memory.Locker.
func (c *Cache) Acquire(_ context.Context, userID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	now := c.now()
	if l, ok := c.locks[userID]; ok && now.Before(l.expires) {
		return false, nil
	}
	c.locks[userID] = lockEntry{expires: now.Add(ttl)}
	return true, nil
}

// Release implements memory.Locker.
func (c *Cache) Release(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.locks, userID)
	return nil
}

// Held implements memory.Locker.
func (c *Cache) Held(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	l, ok := c.locks[userID]
	return ok && c.now().Before(l.expires), nil
}

// Interface guards.
var (
	_ memory.Cache  = (*Cache)(nil)
	_ memory.Locker = (*Cache)(nil)
)
