package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic

	err := row.Scan(
		&c.ID,
		&c.DoctorID,
		&c.Name,
		&c.Address,
		&c.City,
		&c.ConsultationFee,
		&c.Timing.Days,
		&c.Timing.StartTime,
		&c.Timing.EndTime,
		&c.Timing.SlotMinutes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &c, nil
}

const clinicColumns = `id, doctor_id, name, address, city, consultation_fee,
	timing_days, timing_start, timing_end, timing_slot_minutes, created_at, updated_at`

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		WHERE doctor_id = $1
		ORDER BY created_at ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	return result, rows.Err()
}

func (r *PgRepository) Insert(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinics (id, doctor_id, name, address, city, consultation_fee,
			timing_days, timing_start, timing_end, timing_slot_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
	`, c.ID, c.DoctorID, c.Name, c.Address, c.City, c.ConsultationFee,
		c.Timing.Days, c.Timing.StartTime, c.Timing.EndTime, c.Timing.SlotMinutes)
	if err != nil {
		return fmt.Errorf("insert clinic: %w", err)
	}

	return nil
}
