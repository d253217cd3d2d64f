package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	mu    sync.Mutex
	start time.Time
	count int64
}

// MemoryStore keeps windows in process. Each key has its own lock; an
// expired window is reset by the next call for that key.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window), now: time.Now}
}

func (s *MemoryStore) Take(_ context.Context, key string, limit int64, size time.Duration) (Result, error) {
	w := s.window(key)
	now := s.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.start.IsZero() || !now.Before(w.start.Add(size)) {
		w.start = now
		w.count = 0
	}
	resetAt := w.start.Add(size)
	if w.count >= limit {
		return Result{Allowed: false, Count: w.count, ResetAt: resetAt}, nil
	}
	w.count++
	return Result{Allowed: true, Count: w.count, ResetAt: resetAt}, nil
}

func (s *MemoryStore) window(key string) *window {
	s.mu.RLock()
	w, ok := s.windows[key]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[key]; ok {
		return w
	}
	w = &window{}
	s.windows[key] = w
	return w
}

// Reset drops every window.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.windows = make(map[string]*window)
	s.mu.Unlock()
}
