package slot

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("slot not found")
	ErrDuplicate    = errors.New("slot already exists for this start time")
	ErrNotAvailable = errors.New("slot is not available")
	ErrNotOwned     = errors.New("slot belongs to another doctor")
)

// Repository contains all slot store interactions.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]Slot, error)

	// Insert fails with ErrDuplicate when a slot with the same
	// (doctor, clinic, start) already exists.
	Insert(ctx context.Context, s *Slot) error

	// BulkInsert tolerates duplicate windows as a no-op and reports how many
	// rows were actually created.
	BulkInsert(ctx context.Context, slots []Slot) (int, error)

	// SetAvailability is the conditional update: the transition applies only
	// if the slot currently holds the expected state. Returns false when the
	// precondition did not hold.
	SetAvailability(ctx context.Context, id uuid.UUID, from, to Availability) (bool, error)
}
