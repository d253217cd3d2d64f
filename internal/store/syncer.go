package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/af-corp/ai-gateway/internal/events"
	"github.com/af-corp/ai-gateway/internal/types"
)

const syncTimeout = 5 * time.Second

// CatalogWriter is the write side of a catalog store.
type CatalogWriter interface {
	Save(ctx context.Context, cfg types.ServiceConfig) error
	Delete(ctx context.Context, id string) error
}

// SyncHook mirrors catalog events into w. lookup returns the current config
// of a service id, normally Registry.Get. Write failures are logged; the
// in-memory registry stays authoritative.
func SyncHook(w CatalogWriter, lookup func(id string) (types.ServiceConfig, error)) events.Hook {
	return func(ctx context.Context, e events.Event) {
		if !e.IsService() {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
		defer cancel()

		if e.Type == events.ServiceRemoved {
			if err := w.Delete(ctx, e.ServiceID); err != nil {
				slog.Error("catalog sync failed", "service_id", e.ServiceID, "event", string(e.Type), "error", err)
			}
			return
		}

		cfg, err := lookup(e.ServiceID)
		if err != nil {
			slog.Warn("catalog sync skipped", "service_id", e.ServiceID, "error", err)
			return
		}
		if err := w.Save(ctx, cfg); err != nil {
			slog.Error("catalog sync failed", "service_id", e.ServiceID, "event", string(e.Type), "error", err)
		}
	}
}
