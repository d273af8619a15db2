package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("clinic not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Clinic, error)
	Insert(ctx context.Context, c *Clinic) error
}
