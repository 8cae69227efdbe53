package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/memory/memorytest"
	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/telemetry"
)

type consolidatorFixture struct {
	cache      *memorytest.Cache
	store      *memorytest.Store
	summarizer *memorytest.Summarizer
	cons       *memory.Consolidator
}

func newConsolidatorFixture(t *testing.T, maxWords int) *consolidatorFixture {
	t.Helper()
	f := &consolidatorFixture{
		cache:      memorytest.NewCache(),
		store:      memorytest.NewStore(),
		summarizer: &memorytest.Summarizer{},
	}
	counter := newCounter(f.cache, f.store)
	f.cons = memory.NewConsolidator(memory.ConsolidatorConfig{
		Cache:      f.cache,
		Store:      f.store,
		Locker:     f.cache,
		Counter:    counter,
		Summarizer: f.summarizer,
		MaxWords:   maxWords,
	})
	return f
}

func (f *consolidatorFixture) lock(t *testing.T, userID string) {
	t.Helper()
	ok, err := f.cache.Acquire(context.Background(), userID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
}

func TestConsolidate_FoldsPendingRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newConsolidatorFixture(t, 200)

	if last := f.store.Seed("u1", 10); last != 10 {
		t.Fatalf("seed last = %d", last)
	}
	if err := f.store.UpsertSummary(ctx, "u1", "old facts", 10); err != nil {
		t.Fatal(err)
	}
	f.store.Seed("u1", 3)
	_ = f.cache.SetCount(ctx, "u1", 3)
	f.summarizer.SummarizeFunc = func(_ context.Context, req memory.SummaryRequest) (string, error) {
		if req.Existing != "old facts" {
			t.Errorf("Existing = %q", req.Existing)
		}
		if n := strings.Count(req.Conversation, "\n") + 1; n != 3 {
			t.Errorf("conversation has %d lines, want 3", n)
		}
		return "new facts", nil
	}

	f.lock(t, "u1")
	res, err := f.cons.Consolidate(ctx, "u1")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if res.Skipped || res.Folded != 3 || res.LastFoldedSeq != 13 {
		t.Errorf("result = %+v", res)
	}

	sum, _, _ := f.store.ReadSummary(ctx, "u1")
	if sum.Text != "new facts" || sum.LastFoldedSeq != 13 {
		t.Errorf("summary = %+v", sum)
	}
	if got, _ := f.cache.Summary(ctx, "u1"); got != "new facts" {
		t.Errorf("cached summary = %q", got)
	}
	if got, _ := f.cache.Count(ctx, "u1"); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
	if held, _ := f.cache.Held(ctx, "u1"); held {
		t.Error("lock still held")
	}

	// Nothing new: the run is a no-op and still releases the lock.
	f.lock(t, "u1")
	res, err = f.cons.Consolidate(ctx, "u1")
	if err != nil {
		t.Fatalf("second Consolidate: %v", err)
	}
	if !res.Skipped {
		t.Errorf("second run not skipped: %+v", res)
	}
	if held, _ := f.cache.Held(ctx, "u1"); held {
		t.Error("lock still held after no-op")
	}
	if n := len(f.summarizer.Calls()); n != 1 {
		t.Errorf("summarizer calls = %d, want 1", n)
	}
}

func TestConsolidate_SummarizerFailureKeepsRangePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newConsolidatorFixture(t, 200)
	f.store.Seed("u1", 4)
	_ = f.cache.SetCount(ctx, "u1", 4)

	boom := errors.New("llm down")
	f.summarizer.SummarizeFunc = func(context.Context, memory.SummaryRequest) (string, error) {
		return "", boom
	}

	f.lock(t, "u1")
	if _, err := f.cons.Consolidate(ctx, "u1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, ok, _ := f.store.ReadSummary(ctx, "u1"); ok {
		t.Error("summary written after failure")
	}
	if got, _ := f.cache.Count(ctx, "u1"); got != 4 {
		t.Errorf("count = %d, want 4", got)
	}
	if held, _ := f.cache.Held(ctx, "u1"); held {
		t.Error("lock not released after failure")
	}
}

func TestConsolidate_TransientProviderErrorIsRetryable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newConsolidatorFixture(t, 200)
	reg := prometheus.NewRegistry()
	f.cons = memory.NewConsolidator(memory.ConsolidatorConfig{
		Cache:      f.cache,
		Store:      f.store,
		Locker:     f.cache,
		Counter:    newCounter(f.cache, f.store),
		Summarizer: f.summarizer,
		Metrics:    telemetry.NewMetrics(reg),
	})
	f.store.Seed("u1", 2)
	f.summarizer.SummarizeFunc = func(context.Context, memory.SummaryRequest) (string, error) {
		return "", fmt.Errorf("%w: status 429", provider.ErrRateLimit)
	}

	f.lock(t, "u1")
	_, err := f.cons.Consolidate(ctx, "u1")
	if !provider.IsRetryable(err) {
		t.Fatalf("err = %v, want retryable", err)
	}

	want := `
# HELP recall_memory_consolidations_total Consolidation runs, by outcome.
# TYPE recall_memory_consolidations_total counter
recall_memory_consolidations_total{outcome="retryable"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "recall_memory_consolidations_total"); err != nil {
		t.Error(err)
	}
}

func TestConsolidate_BoundedByLockTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newConsolidatorFixture(t, 200)
	f.cons = memory.NewConsolidator(memory.ConsolidatorConfig{
		Cache:      f.cache,
		Store:      f.store,
		Locker:     f.cache,
		Counter:    newCounter(f.cache, f.store),
		Summarizer: f.summarizer,
		LockTTL:    50 * time.Millisecond,
	})
	f.store.Seed("u1", 2)
	f.summarizer.SummarizeFunc = func(ctx context.Context, _ memory.SummaryRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f.lock(t, "u1")
	start := time.Now()
	_, err := f.cons.Consolidate(ctx, "u1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %v, want it cut at the lock ttl", elapsed)
	}
	if _, ok, _ := f.store.ReadSummary(ctx, "u1"); ok {
		t.Error("summary written after timeout")
	}
	if held, _ := f.cache.Held(ctx, "u1"); held {
		t.Error("lock not released after timeout")
	}
}

func TestConsolidate_CapsSummaryWords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newConsolidatorFixture(t, 3)
	f.store.Seed("u1", 2)
	f.summarizer.SummarizeFunc = func(context.Context, memory.SummaryRequest) (string, error) {
		return "one two three four five", nil
	}

	f.lock(t, "u1")
	res, err := f.cons.Consolidate(ctx, "u1")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if res.Summary != "one two three" {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestConsolidate_CacheFailureAfterUpsertIsNotAnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newConsolidatorFixture(t, 200)
	f.store.Seed("u1", 2)
	f.summarizer.SummarizeFunc = func(context.Context, memory.SummaryRequest) (string, error) {
		f.cache.SetErr(errors.New("redis gone"))
		return "facts", nil
	}

	f.lock(t, "u1")
	if _, err := f.cons.Consolidate(ctx, "u1"); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if sum, _, _ := f.store.ReadSummary(ctx, "u1"); sum.LastFoldedSeq != 2 {
		t.Errorf("LastFoldedSeq = %d, want 2", sum.LastFoldedSeq)
	}
}
