package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.ClinicID,
		&s.Start,
		&s.End,
		&s.Availability,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, clinic_id, start_time, end_time, availability, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]Slot, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, doctor_id, clinic_id, start_time, end_time, availability, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1
	`)
	args := []any{doctorID}

	if f.From != nil {
		args = append(args, *f.From)
		fmt.Fprintf(&query, " AND start_time >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		fmt.Fprintf(&query, " AND start_time <= $%d", len(args))
	}
	if f.Availability != "" {
		args = append(args, f.Availability)
		fmt.Fprintf(&query, " AND availability = $%d", len(args))
	}
	query.WriteString(" ORDER BY start_time ASC")

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) Insert(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, doctor_id, clinic_id, start_time, end_time, availability, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, s.ID, s.DoctorID, s.ClinicID, s.Start, s.End, s.Availability)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert slot: %w", err)
	}

	return nil
}

func (r *PgRepository) BulkInsert(ctx context.Context, slots []Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	inserted := 0
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range slots {
		s := &slots[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, clinic_id, start_time, end_time, availability, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (doctor_id, clinic_id, start_time) DO NOTHING
		`, s.ID, s.DoctorID, s.ClinicID, s.Start, s.End, s.Availability)
		if err != nil {
			return 0, fmt.Errorf("bulk insert slot: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}

	return inserted, nil
}

func (r *PgRepository) SetAvailability(ctx context.Context, id uuid.UUID, from, to Availability) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET availability = $2,
		    updated_at = now()
		WHERE id = $1
		  AND availability = $3
	`, id, to, from)
	if err != nil {
		return false, fmt.Errorf("set slot availability: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
