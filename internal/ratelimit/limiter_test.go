package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

func TestKey(t *testing.T) {
	if got := Key("tenant-1", types.CapChat); got != "caller:tenant-1" {
		t.Errorf("expected caller key, got %s", got)
	}
	if got := Key("", types.CapEmbedding); got != "capability:embedding" {
		t.Errorf("expected capability key, got %s", got)
	}
}

func TestLimiter_AllowsUpToCap(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 3, time.Minute, nil)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background(), "k", false); err != nil {
			t.Fatalf("call %d: unexpected error %v", i+1, err)
		}
	}
	err := l.Acquire(context.Background(), "k", false)
	var limited *LimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected LimitedError, got %v", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("expected ErrRateLimited in chain")
	}
	if limited.Key != "k" || limited.Wait <= 0 || limited.Wait > time.Minute {
		t.Errorf("unexpected limited error %+v", limited)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Minute, nil)

	if err := l.Acquire(context.Background(), "a", false); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(context.Background(), "b", false); err != nil {
		t.Errorf("key b must have its own window: %v", err)
	}
}

func TestLimiter_BlockingWaitsForWindowBoundary(t *testing.T) {
	const window = 100 * time.Millisecond
	l := NewLimiter(NewMemoryStore(), 2, window, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx, "k", true); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Acquire(ctx, "k", true); err != nil {
		t.Fatalf("blocking acquire must not fail: %v", err)
	}
	if elapsed := time.Since(start); elapsed < window {
		t.Errorf("third call completed after %s, before the %s window boundary", elapsed, window)
	}
}

func TestLimiter_BlockingHonorsCancellation(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Hour, nil)
	l.Acquire(context.Background(), "k", true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Acquire(ctx, "k", true); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLimiter_ConcurrentAdmissionNeverExceedsCap(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 25, time.Hour, nil)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(context.Background(), "shared", false) == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 25 {
		t.Errorf("expected exactly 25 admissions, got %d", got)
	}
}

func TestLimiter_ConfigureAppliesToNextCall(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Hour, nil)
	l.Acquire(context.Background(), "k", false)

	l.Configure(2, time.Hour)
	if err := l.Acquire(context.Background(), "k", false); err != nil {
		t.Errorf("expected raised cap to admit a second call: %v", err)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 0, 0, nil)
	limit, window := l.settings()
	if limit != DefaultMaxRequests || window != DefaultWindow {
		t.Errorf("expected defaults, got %d/%s", limit, window)
	}
}

func TestLimiter_RecordsRejections(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	l := NewLimiter(NewMemoryStore(), 1, time.Hour, m)

	l.Acquire(context.Background(), "k", false)
	l.Acquire(context.Background(), "k", false)

	var metric dto.Metric
	m.RateLimitedTotal.WithLabelValues("reject").Write(&metric)
	if metric.GetCounter().GetValue() != 1 {
		t.Errorf("expected 1 rejection, got %v", metric.GetCounter().GetValue())
	}
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, int64, time.Duration) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func TestLimiter_StoreErrorFailsOpen(t *testing.T) {
	l := NewLimiter(failingStore{}, 1, time.Minute, nil)
	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background(), "k", false); err != nil {
			t.Fatalf("expected fail open, got %v", err)
		}
	}
}

func TestMemoryStore_WindowResetsLazily(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Take(ctx, "k", 1, time.Minute)
	res, _ := s.Take(ctx, "k", 1, time.Minute)
	if res.Allowed {
		t.Fatal("expected window to be full")
	}
	if !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Errorf("expected reset at window end, got %s", res.ResetAt)
	}

	now = now.Add(time.Minute)
	res, _ = s.Take(ctx, "k", 1, time.Minute)
	if !res.Allowed || res.Count != 1 {
		t.Errorf("expected fresh window after rollover, got %+v", res)
	}
}

func TestRedisStore_NilClientAllows(t *testing.T) {
	s := NewRedisStore(nil)
	res, err := s.Take(context.Background(), "k", 1, time.Minute)
	if err != nil || !res.Allowed {
		t.Fatalf("expected allow without redis, got %+v %v", res, err)
	}
}

func TestRedisStore_UnreachableFailsOpenThroughLimiter(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := NewRedisStore(rdb)
	if _, err := s.Take(context.Background(), "k", 1, time.Minute); err == nil {
		t.Fatal("expected store error for unreachable redis")
	}

	l := NewLimiter(s, 1, time.Minute, nil)
	if err := l.Acquire(context.Background(), "k", false); err != nil {
		t.Errorf("expected limiter to fail open, got %v", err)
	}
}
