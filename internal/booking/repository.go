package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrAlreadyCancelled = errors.New("appointment already cancelled")
	ErrSlotUnavailable  = errors.New("slot not available")
)

// Repository contains the appointment store interactions. Book and Cancel
// are composite atomic operations: the slot transition and the appointment
// write commit together or not at all.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	// ListActiveWithWindows returns the caller's non-cancelled appointments
	// joined with their slot windows, for the conflict scan.
	ListActiveWithWindows(ctx context.Context, patientID uuid.UUID) ([]AppointmentWithWindow, error)

	// Book performs the conditional slot flip (available to booked) and
	// creates the appointment in one atomic unit. Fails with
	// ErrSlotUnavailable when the flip affects zero rows.
	Book(ctx context.Context, a *Appointment) error

	// Cancel marks the appointment cancelled and frees its slot.
	Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ReleaseOrphanedSlots frees booked slots that have no live appointment.
	// Reconciliation safety net for failed compensations.
	ReleaseOrphanedSlots(ctx context.Context) (int, error)
}
