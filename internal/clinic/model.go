package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/schedule"
)

// Clinic is a doctor's practice location. Its timing template drives slot
// generation and its fee prices appointments booked there.
type Clinic struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	Name            string
	Address         string
	City            string
	ConsultationFee int64
	Timing          schedule.Timing
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasTiming reports whether the clinic declared a complete timing template.
// Clinics without one are skipped during bulk slot generation.
func (c *Clinic) HasTiming() bool {
	return len(c.Timing.Days) > 0 &&
		c.Timing.StartTime != "" &&
		c.Timing.EndTime != "" &&
		c.Timing.SlotMinutes > 0
}
