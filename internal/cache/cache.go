// Package cache stores successful response data under a request
// fingerprint for a fixed TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/af-corp/ai-gateway/internal/types"
)

const DefaultTTL = 5 * time.Minute

// Entry is one cached result.
type Entry struct {
	Data     any       `json:"data"`
	StoredAt time.Time `json:"stored_at"`
}

// Store persists entries. Get must report entries older than their TTL as
// absent.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Manager fronts a Store. Store errors are logged and treated as misses so
// a cache outage never fails a request.
type Manager struct {
	store Store
	ttl   atomic.Int64
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) *Manager {
	m := &Manager{store: store, now: time.Now}
	m.ttl.Store(int64(DefaultTTL))
	m.SetTTL(ttl)
	return m
}

func (m *Manager) TTL() time.Duration { return time.Duration(m.ttl.Load()) }

// SetTTL changes the TTL. Lookups compare an entry's age against the current
// TTL, so lowering it expires older entries at once. Raising it does not
// outlive the expiry a store set when the entry was written.
func (m *Manager) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		m.ttl.Store(int64(ttl))
	}
}

func (m *Manager) Get(ctx context.Context, fingerprint string) (any, bool) {
	e, ok, err := m.store.Get(ctx, fingerprint)
	if err != nil {
		slog.Warn("cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !e.StoredAt.IsZero() && !m.now().Before(e.StoredAt.Add(m.TTL())) {
		return nil, false
	}
	return e.Data, true
}

func (m *Manager) Put(ctx context.Context, fingerprint string, data any) {
	err := m.store.Set(ctx, fingerprint, Entry{Data: data, StoredAt: m.now()}, m.TTL())
	if err != nil {
		slog.Warn("cache store failed", "error", err)
	}
}

func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Fingerprint derives the cache key of a request. Caching is scoped per
// caller: two callers with the same payload never share an entry. An
// explicit service id is part of the scope; routed requests share "auto".
// Runs of whitespace in the payload are collapsed and per-call parameters
// are encoded canonically.
func Fingerprint(req *types.Request) string {
	scope := req.ServiceID
	if scope == "" {
		scope = "auto"
	}

	h := sha256.New()
	for _, part := range []string{
		string(req.Capability),
		req.CallerID,
		scope,
		normalize(req.Payload),
		canonical(req.Parameters),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(payload string) string {
	return strings.Join(strings.Fields(payload), " ")
}

// canonical relies on encoding/json sorting map keys.
func canonical(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	b, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(b)
}
