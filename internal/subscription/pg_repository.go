package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/payment"
)

type PgRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPgRepository(pool *pgxpool.Pool, log zerolog.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

const subscriptionColumns = `id, doctor_id, plan_id, start_date, end_date, is_active, posts_used, payment_id`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	var paymentID *string

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.PlanID,
		&s.StartDate,
		&s.EndDate,
		&s.IsActive,
		&s.PostsUsed,
		&paymentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if paymentID != nil {
		s.PaymentID = *paymentID
	}
	return &s, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1
	`, id)
	return scanSubscription(row)
}

func (r *PgRepository) GetActive(ctx context.Context, doctorID uuid.UUID) (*Subscription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE doctor_id = $1
		  AND is_active
		ORDER BY end_date DESC
		LIMIT 1
	`, doctorID)
	return scanSubscription(row)
}

func (r *PgRepository) GetPlan(ctx context.Context, planID uuid.UUID) (*Plan, error) {
	var p Plan
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, price, post_limit, days, discount, is_active
		FROM plans
		WHERE id = $1
	`, planID).Scan(&p.ID, &p.Name, &p.Price, &p.PostLimit, &p.Days, &p.Discount, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) DoctorApproved(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT status FROM doctor_profiles WHERE user_id = $1
	`, doctorID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrDoctorNotFound
		}
		return false, err
	}
	return status == "approved", nil
}

func (r *PgRepository) HasDoctorRole(ctx context.Context, userID uuid.UUID) (bool, error) {
	var granted bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN roles ro ON ro.id = ur.role_id
			WHERE ur.user_id = $1
			  AND ro.name = 'Doctor'
		)
	`, userID).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("check doctor role: %w", err)
	}
	return granted, nil
}

func (r *PgRepository) CreatePending(ctx context.Context, sub *Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (id, doctor_id, plan_id, is_active, posts_used, created_at, updated_at)
		VALUES ($1, $2, $3, false, 0, now(), now())
	`, sub.ID, sub.DoctorID, sub.PlanID)
	if err != nil {
		return fmt.Errorf("create pending subscription: %w", err)
	}

	return nil
}

// insertPaymentRow writes the audit record. The UNIQUE constraint on
// subscription_id rejects a second payment row for the same subscription.
func insertPaymentRow(ctx context.Context, q db.Querier, subID uuid.UUID, plan *Plan, proof payment.Proof) error {
	_, err := q.Exec(ctx, `
		INSERT INTO payments (id, order_id, payment_id, signature, amount, currency, status, subscription_id, created_at)
		VALUES ($1, $2, $3, $4, $5, 'INR', 'paid', $6, now())
	`, uuid.New(), proof.OrderID, proof.PaymentID, proof.Signature, plan.Price, subID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyActive
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// grantDoctorRole upserts the Doctor role mapping and drops the User-only
// marker. Upsert-on-conflict keeps retries idempotent.
func grantDoctorRole(ctx context.Context, q db.Querier, userID uuid.UUID) error {
	var doctorRoleID uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM roles WHERE name = 'Doctor'`).Scan(&doctorRoleID)
	if errors.Is(err, pgx.ErrNoRows) {
		doctorRoleID = uuid.New()
		if _, err = q.Exec(ctx, `INSERT INTO roles (id, name) VALUES ($1, 'Doctor')`, doctorRoleID); err != nil {
			return fmt.Errorf("create doctor role: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load doctor role: %w", err)
	}

	_, err = q.Exec(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1
		  AND role_id = (SELECT id FROM roles WHERE name = 'User')
	`, userID)
	if err != nil {
		return fmt.Errorf("drop user role marker: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, doctorRoleID)
	if err != nil {
		return fmt.Errorf("grant doctor role: %w", err)
	}

	return nil
}

func (r *PgRepository) Activate(ctx context.Context, subID uuid.UUID, plan *Plan, proof payment.Proof, now time.Time) (*Subscription, error) {
	uow, err := db.Begin(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer uow.Abort(ctx, r.log)

	q := uow.Querier()

	row := q.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1
		FOR UPDATE
	`, subID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, err
	}
	if sub.IsActive {
		return nil, ErrAlreadyActive
	}

	if err := insertPaymentRow(ctx, q, subID, plan, proof); err != nil {
		return nil, err
	}

	endDate := now.AddDate(0, 0, plan.Days)
	row = q.QueryRow(ctx, `
		UPDATE subscriptions
		SET start_date = $2,
		    end_date = $3,
		    is_active = true,
		    payment_id = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+subscriptionColumns+`
	`, subID, now, endDate, proof.PaymentID)
	updated, err := scanSubscription(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrActiveExists
		}
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	if err := grantDoctorRole(ctx, q, updated.DoctorID); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *PgRepository) ReplaceAndActivate(ctx context.Context, doctorID uuid.UUID, plan *Plan, proof payment.Proof, now time.Time) (*Subscription, error) {
	uow, err := db.Begin(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer uow.Abort(ctx, r.log)

	q := uow.Querier()

	// Deactivate the current subscription inside the same transaction so the
	// old-inactive/new-active switch is never partially observable.
	_, err = q.Exec(ctx, `
		UPDATE subscriptions
		SET is_active = false,
		    end_date = $2,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND is_active
	`, doctorID, now)
	if err != nil {
		return nil, fmt.Errorf("deactivate current subscription: %w", err)
	}

	newID := uuid.New()
	endDate := now.AddDate(0, 0, plan.Days)
	_, err = q.Exec(ctx, `
		INSERT INTO subscriptions (id, doctor_id, plan_id, start_date, end_date, is_active, posts_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, 0, now(), now())
	`, newID, doctorID, plan.ID, now, endDate)
	if err != nil {
		return nil, fmt.Errorf("create replacement subscription: %w", err)
	}

	if err := insertPaymentRow(ctx, q, newID, plan, proof); err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `
		UPDATE subscriptions
		SET is_active = true,
		    payment_id = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+subscriptionColumns+`
	`, newID, proof.PaymentID)
	newSub, err := scanSubscription(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrActiveExists
		}
		return nil, fmt.Errorf("activate replacement subscription: %w", err)
	}

	if err := grantDoctorRole(ctx, q, doctorID); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	return newSub, nil
}

func (r *PgRepository) IncrementPostsUsed(ctx context.Context, subID uuid.UUID, limit int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET posts_used = posts_used + 1,
		    updated_at = now()
		WHERE id = $1
		  AND posts_used < $2
	`, subID, limit)
	if err != nil {
		return false, fmt.Errorf("increment posts used: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) DecrementPostsUsed(ctx context.Context, subID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET posts_used = GREATEST(posts_used - 1, 0),
		    updated_at = now()
		WHERE id = $1
	`, subID)
	if err != nil {
		return fmt.Errorf("decrement posts used: %w", err)
	}
	return nil
}

func (r *PgRepository) Deactivate(ctx context.Context, subID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET is_active = false,
		    updated_at = now()
		WHERE id = $1
	`, subID)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	return nil
}

func (r *PgRepository) listSubscriptions(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	return r.listSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE is_active
		  AND end_date >= $1
		  AND end_date <= $2
	`, from, to)
}

func (r *PgRepository) ListExpired(ctx context.Context, now time.Time) ([]Subscription, error) {
	return r.listSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE is_active
		  AND end_date < $1
	`, now)
}
