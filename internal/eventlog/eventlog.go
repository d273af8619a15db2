// Package eventlog records an append-only audit trail of protocol events.
// Writes are best-effort: a failed insert is logged, never propagated.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventSubscriptionCreated  = "SUBSCRIPTION_CREATED"
	EventSubscriptionActive   = "SUBSCRIPTION_ACTIVATED"
	EventSubscriptionRenewed  = "SUBSCRIPTION_RENEWED"
	EventSubscriptionExpired  = "SUBSCRIPTION_EXPIRED"
	EventSlotsGenerated       = "SLOTS_GENERATED"
	EventSlotsReconciled      = "SLOTS_RECONCILED"
)

// Recorder accepts audit events keyed by the subject they concern.
type Recorder interface {
	Record(ctx context.Context, eventType string, subjectID uuid.UUID, payload map[string]any)
}

type PgRecorder struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPgRecorder(pool *pgxpool.Pool, log zerolog.Logger) *PgRecorder {
	return &PgRecorder{pool: pool, log: log}
}

func (r *PgRecorder) Record(ctx context.Context, eventType string, subjectID uuid.UUID, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			r.log.Warn().Err(err).Str("event_type", eventType).Msg("marshal event payload")
			data = nil
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, subject_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, eventType, subjectID, data, time.Now())
	if err != nil {
		r.log.Warn().Err(err).Str("event_type", eventType).Msg("insert event log")
	}
}

// NopRecorder discards events. Used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, uuid.UUID, map[string]any) {}
