package slot

import (
	"time"

	"github.com/google/uuid"
)

type Availability string

const (
	Available Availability = "available"
	Booked    Availability = "booked"
	Hold      Availability = "hold"
	Blocked   Availability = "blocked"
)

func (a Availability) Valid() bool {
	switch a {
	case Available, Booked, Hold, Blocked:
		return true
	}
	return false
}

// Slot is a discrete bookable time window for a doctor at a clinic. At most
// one slot may exist per (doctor, clinic, start).
type Slot struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	ClinicID     uuid.UUID
	Start        time.Time
	End          time.Time
	Availability Availability
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListFilter narrows the outward slot query surface.
type ListFilter struct {
	From         *time.Time
	To           *time.Time
	Availability Availability // empty means any
}

// GenerationResult reports per-clinic slot generation, including partial
// success when duplicate windows were already present.
type GenerationResult struct {
	ClinicID          uuid.UUID `json:"clinic_id"`
	SlotsCreated      int       `json:"slots_created"`
	DuplicatesSkipped int       `json:"duplicates_skipped,omitempty"`
}
