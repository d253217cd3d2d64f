// Package ratelimit implements fixed-window admission control keyed by a
// stable caller identity.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 100
)

var ErrRateLimited = errors.New("rate limited")

// LimitedError is returned in non-blocking mode when the window is full.
type LimitedError struct {
	Key  string
	Wait time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited: key %s, retry in %s", e.Key, e.Wait)
}

func (e *LimitedError) Unwrap() error { return ErrRateLimited }

// Result is the outcome of one admission check.
type Result struct {
	Allowed bool
	Count   int64
	ResetAt time.Time
}

// Store counts calls per key in fixed windows.
type Store interface {
	Take(ctx context.Context, key string, limit int64, window time.Duration) (Result, error)
}

// Key returns the limiting key for a caller: the caller id when present,
// otherwise one shared bucket per capability.
func Key(callerID string, capability types.Capability) string {
	if callerID != "" {
		return "caller:" + callerID
	}
	return "capability:" + string(capability)
}

// Limiter admits calls against a Store, either waiting for the window to
// roll over or rejecting with a LimitedError.
type Limiter struct {
	store   Store
	metrics *telemetry.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	limit  int64
	window time.Duration
}

func NewLimiter(store Store, limit int64, window time.Duration, metrics *telemetry.Metrics) *Limiter {
	l := &Limiter{store: store, metrics: metrics, now: time.Now}
	l.Configure(limit, window)
	return l
}

// Configure changes the cap and window for subsequent calls.
func (l *Limiter) Configure(limit int64, window time.Duration) {
	if limit <= 0 {
		limit = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l.mu.Lock()
	l.limit, l.window = limit, window
	l.mu.Unlock()
}

func (l *Limiter) settings() (int64, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit, l.window
}

// Acquire admits one call for key. When the window is full it waits for
// the rollover, or returns a *LimitedError when blocking is false. Store
// errors fail open.
func (l *Limiter) Acquire(ctx context.Context, key string, blocking bool) error {
	waited := false
	for {
		limit, window := l.settings()
		res, err := l.store.Take(ctx, key, limit, window)
		if err != nil {
			slog.Warn("rate limit store unavailable, allowing request", "key", key, "error", err)
			return nil
		}
		if res.Allowed {
			return nil
		}

		wait := max(res.ResetAt.Sub(l.now()), 0)
		if !blocking {
			l.metrics.RecordRateLimited("reject")
			return &LimitedError{Key: key, Wait: wait}
		}
		if !waited {
			l.metrics.RecordRateLimited("wait")
			slog.Debug("rate limit reached, waiting for window", "key", key, "wait_ms", wait.Milliseconds())
			waited = true
		}

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// Reset drops all window state when the store keeps it in process.
// Shared stores are left alone.
func (l *Limiter) Reset() {
	if r, ok := l.store.(interface{ Reset() }); ok {
		r.Reset()
	}
}
