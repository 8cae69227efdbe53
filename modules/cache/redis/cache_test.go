package redis_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/flemzord/recall/modules/cache/redis"
	"github.com/flemzord/recall/pkg/message"
)

func newTestCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := redis.New(redis.Config{Addr: mr.Addr(), TTL: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func msg(t *testing.T, i int) message.Message {
	t.Helper()
	m, err := message.New(message.RoleUser, fmt.Sprintf("m%d", i))
	if err != nil {
		t.Fatal(err)
	}
	m.Seq = int64(i)
	return m
}

func TestCache_WindowKeepsNewest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const limit = 3
	for _, n := range []int{0, 1, 3, 7} {
		t.Run(fmt.Sprintf("pushes=%d", n), func(t *testing.T) {
			t.Parallel()
			c, _ := newTestCache(t)
			for i := 1; i <= n; i++ {
				if err := c.Push(ctx, "u1", msg(t, i), limit); err != nil {
					t.Fatalf("Push: %v", err)
				}
			}

			w, err := c.Window(ctx, "u1")
			if err != nil {
				t.Fatalf("Window: %v", err)
			}
			want := min(n, limit)
			if len(w) != want {
				t.Fatalf("len = %d, want %d", len(w), want)
			}
			for i, m := range w {
				if wantSeq := int64(n - want + i + 1); m.Seq != wantSeq {
					t.Errorf("w[%d].Seq = %d, want %d", i, m.Seq, wantSeq)
				}
			}
		})
	}
}

func TestCache_PushRejectsInvalid(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)

	err := c.Push(context.Background(), "u1", message.Message{Role: "tool", Content: "x"}, 3)
	if !errors.Is(err, message.ErrInvalidRole) {
		t.Errorf("err = %v, want ErrInvalidRole", err)
	}
}

func TestCache_KeysAndTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)

	if err := c.Push(ctx, "u1", msg(t, 1), 3); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSummary(ctx, "u1", "facts"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Incr(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"chat:u1:messages", "chat:u1:summary", "chat:u1:count"} {
		if !mr.Exists(key) {
			t.Errorf("key %s missing", key)
			continue
		}
		if ttl := mr.TTL(key); ttl != time.Hour {
			t.Errorf("TTL(%s) = %v, want 1h", key, ttl)
		}
	}

	ok, err := c.Exists(ctx, "u1")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	if err := c.ClearWindow(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Exists(ctx, "u1"); ok {
		t.Error("window still exists after ClearWindow")
	}
}

func TestCache_UserContextPresence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestCache(t)

	if _, ok, err := c.UserContext(ctx, "u1"); err != nil || ok {
		t.Fatalf("UserContext before set = %v, %v", ok, err)
	}
	if err := c.SetUserContext(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}
	text, ok, err := c.UserContext(ctx, "u1")
	if err != nil || !ok || text != "" {
		t.Errorf("UserContext = %q, %v, %v; want empty and loaded", text, ok, err)
	}
}

func TestCache_Counter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestCache(t)

	if n, err := c.Count(ctx, "u1"); err != nil || n != 0 {
		t.Fatalf("Count before set = %d, %v", n, err)
	}
	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "u1")
		if err != nil || n != want {
			t.Fatalf("Incr = %d, %v; want %d", n, err, want)
		}
	}
	if err := c.SetCount(ctx, "u1", 0); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Count(ctx, "u1"); n != 0 {
		t.Errorf("Count after reset = %d", n)
	}
}

func TestCache_SummaryMissing(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)

	text, err := c.Summary(context.Background(), "u1")
	if err != nil || text != "" {
		t.Errorf("Summary = %q, %v", text, err)
	}
}

func TestCache_KeyPrefix(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	c, err := redis.New(redis.Config{Addr: mr.Addr(), KeyPrefix: "tenant"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	if err := c.SetSummary(context.Background(), "u1", "x"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("tenant:u1:summary") {
		t.Error("prefixed key missing")
	}
}

func TestCache_Unreachable(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	c, err := redis.New(redis.Config{Addr: mr.Addr(), DialTimeout: 100 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	mr.Close()

	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded against closed server")
	}
}
