package redisclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const notificationChannel = "notifications"

// Notifier is the fire-and-forget notification sink. Delivery failures must
// never fail the operation that emitted the notification.
type Notifier interface {
	Notify(ctx context.Context, subjectID uuid.UUID, eventType string, payload map[string]any)
}

type redisNotifier struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisNotifier publishes notification events on a Redis channel consumed
// by the delivery service.
func NewRedisNotifier(client *redis.Client, log zerolog.Logger) Notifier {
	return &redisNotifier{client: client, log: log}
}

type notification struct {
	SubjectID uuid.UUID      `json:"subject_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

func (n *redisNotifier) Notify(ctx context.Context, subjectID uuid.UUID, eventType string, payload map[string]any) {
	msg := notification{
		SubjectID: subjectID,
		EventType: eventType,
		Payload:   payload,
		EmittedAt: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		n.log.Warn().Err(err).Str("event_type", eventType).Msg("marshal notification")
		return
	}

	if err := n.client.Publish(ctx, notificationChannel, data).Err(); err != nil {
		n.log.Warn().Err(err).Str("event_type", eventType).Msg("publish notification")
	}
}

// NopNotifier discards notifications. Used by commands that do not deliver.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, string, map[string]any) {}
