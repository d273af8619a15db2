// Package post holds the doctor post records whose creation consumes the
// subscription's post quota.
package post

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

type Post struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Title     string
	Body      string
	Status    Status
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, p *Post) error
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, p *Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor_posts (id, doctor_id, title, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, p.ID, p.DoctorID, p.Title, p.Body, p.Status)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}
