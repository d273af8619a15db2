package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPgRepository(pool *pgxpool.Pool, log zerolog.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

const appointmentColumns = `id, slot_id, doctor_id, patient_id, type, status,
	fee, payment_id, payment_status, booked_at, cancelled_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var paymentID *string

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.DoctorID,
		&a.PatientID,
		&a.Type,
		&a.Status,
		&a.Fee,
		&paymentID,
		&a.PaymentStatus,
		&a.BookedAt,
		&a.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if paymentID != nil {
		a.PaymentID = *paymentID
	}
	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) list(ctx context.Context, where string, arg any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+where+` = $1
		ORDER BY booked_at DESC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return r.list(ctx, "doctor_id", doctorID)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.list(ctx, "patient_id", patientID)
}

func (r *PgRepository) ListActiveWithWindows(ctx context.Context, patientID uuid.UUID) ([]AppointmentWithWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.slot_id, a.doctor_id, a.patient_id, a.type, a.status,
		       a.fee, a.payment_id, a.payment_status, a.booked_at, a.cancelled_at,
		       s.start_time, s.end_time, s.clinic_id
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		WHERE a.patient_id = $1
		  AND a.status <> 'cancelled'
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentWithWindow
	for rows.Next() {
		var w AppointmentWithWindow
		var paymentID *string

		err := rows.Scan(
			&w.ID, &w.SlotID, &w.DoctorID, &w.PatientID, &w.Type, &w.Status,
			&w.Fee, &paymentID, &w.PaymentStatus, &w.BookedAt, &w.CancelledAt,
			&w.SlotStart, &w.SlotEnd, &w.ClinicID,
		)
		if err != nil {
			return nil, err
		}
		if paymentID != nil {
			w.PaymentID = *paymentID
		}
		result = append(result, w)
	}

	return result, rows.Err()
}

// Book flips the slot with a conditional update and creates the appointment
// in the same transaction. The conditional update is the concurrency-safety
// mechanism: a racing finalize that lost sees zero rows affected.
func (r *PgRepository) Book(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	uow, err := db.Begin(ctx, r.pool)
	if err != nil {
		return err
	}
	defer uow.Abort(ctx, r.log)

	q := uow.Querier()

	tag, err := q.Exec(ctx, `
		UPDATE slots
		SET availability = 'booked',
		    updated_at = now()
		WHERE id = $1
		  AND availability = 'available'
	`, a.SlotID)
	if err != nil {
		return fmt.Errorf("book slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}

	// If the transaction cannot roll back cleanly the slot stays claimed
	// with no appointment; undo the claim directly on the pool.
	slotID := a.SlotID
	uow.Compensate("release slot "+slotID.String(), func(cctx context.Context) error {
		_, err := r.pool.Exec(cctx, `
			UPDATE slots SET availability = 'available', updated_at = now()
			WHERE id = $1 AND availability = 'booked'
		`, slotID)
		return err
	})

	_, err = q.Exec(ctx, `
		INSERT INTO appointments (id, slot_id, doctor_id, patient_id, type, status,
			fee, payment_id, payment_status, booked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	`, a.ID, a.SlotID, a.DoctorID, a.PatientID, a.Type, a.Status,
		a.Fee, a.PaymentID, a.PaymentStatus, a.BookedAt)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	return uow.Commit(ctx)
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	uow, err := db.Begin(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer uow.Abort(ctx, r.log)

	q := uow.Querier()

	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns+`
	`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Distinguish a missing appointment from an already-cancelled one.
			if existing, lookupErr := r.GetByID(ctx, id); lookupErr == nil && existing.Status == StatusCancelled {
				return nil, ErrAlreadyCancelled
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	_, err = q.Exec(ctx, `
		UPDATE slots
		SET availability = 'available',
		    updated_at = now()
		WHERE id = $1
	`, appt.SlotID)
	if err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	return appt, nil
}

// ReleaseOrphanedSlots frees booked slots with no live appointment. Such
// slots can only exist if a compensation failed mid-booking.
func (r *PgRepository) ReleaseOrphanedSlots(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots s
		SET availability = 'available',
		    updated_at = now()
		WHERE s.availability = 'booked'
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.slot_id = s.id
			  AND a.status <> 'cancelled'
		  )
	`)
	if err != nil {
		return 0, fmt.Errorf("release orphaned slots: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
