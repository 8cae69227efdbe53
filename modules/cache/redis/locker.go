package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flemzord/recall/internal/memory"
)

// Locker implements memory.Locker with SET NX and a per-acquisition token.
// Release is an unconditional DEL; TTL expiry frees a lock whose holder
// crashed.
type Locker struct {
	rdb  *goredis.Client
	keys keyspace
}

// Compile-time interface guard.
var _ memory.Locker = (*Locker)(nil)

// Acquire sets the lock key only if absent.
func (l *Locker) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.keys.lock(userID), uuid.NewString(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// Release deletes the lock key.
func (l *Locker) Release(ctx context.Context, userID string) error {
	if err := l.rdb.Del(ctx, l.keys.lock(userID)).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

// Held reports whether the lock key exists.
func (l *Locker) Held(ctx context.Context, userID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.keys.lock(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: lock exists: %w", err)
	}
	return n > 0, nil
}
