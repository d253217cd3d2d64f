package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LogHook writes every event to logger. request.started is logged at debug.
func LogHook(logger *slog.Logger) Hook {
	return func(ctx context.Context, e Event) {
		attrs := []slog.Attr{slog.String("event", string(e.Type))}
		if e.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", e.RequestID))
		}
		if e.ServiceID != "" {
			attrs = append(attrs, slog.String("service_id", e.ServiceID))
		}
		if e.Capability != "" {
			attrs = append(attrs, slog.String("capability", string(e.Capability)))
		}

		level := slog.LevelInfo
		switch e.Type {
		case RequestStarted:
			level = slog.LevelDebug
		case RequestCompleted:
			attrs = append(attrs,
				slog.Bool("success", e.Success),
				slog.Int("retry_count", e.RetryCount),
				slog.Int64("duration_ms", e.Latency.Milliseconds()),
			)
			if e.Cancelled {
				attrs = append(attrs, slog.Bool("cancelled", true))
			}
			if e.Error != "" {
				attrs = append(attrs, slog.String("error", e.Error))
				level = slog.LevelWarn
			}
		case ServiceAdded, ServiceUpdated, ServiceEnabled, ServiceDisabled:
			attrs = append(attrs, slog.Bool("enabled", e.Enabled))
		}
		logger.LogAttrs(ctx, level, "gateway event", attrs...)
	}
}

const publishTimeout = 2 * time.Second

// RedisPublisher publishes events as JSON on a pub/sub channel so other
// processes can follow gateway activity.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "ai-gateway:events"
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Hook returns a hook that publishes in the background. Publish failures
// are logged and otherwise ignored.
func (p *RedisPublisher) Hook() Hook {
	return func(_ context.Context, e Event) {
		if p.rdb == nil {
			return
		}
		payload, err := json.Marshal(e)
		if err != nil {
			slog.Warn("encode event", "event", string(e.Type), "error", err)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
				slog.Warn("publish event", "event", string(e.Type), "error", err)
			}
		}()
	}
}
