package booking

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeWalkIn    Type = "walk-in"
	TypeVirtual   Type = "virtual"
	TypeHomeVisit Type = "home-visit"
)

func (t Type) Valid() bool {
	switch t {
	case TypeWalkIn, TypeVirtual, TypeHomeVisit:
		return true
	}
	return false
}

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Appointment binds a patient, doctor and slot. It exists only if its slot
// was atomically flipped available to booked at creation time.
type Appointment struct {
	ID            uuid.UUID
	SlotID        uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Type          Type
	Status        Status
	Fee           int64
	PaymentID     string
	PaymentStatus PaymentStatus
	BookedAt      time.Time
	CancelledAt   *time.Time
}

// AppointmentWithWindow carries the slot's time window and clinic alongside
// the appointment, for the cross-clinic conflict scan.
type AppointmentWithWindow struct {
	Appointment
	SlotStart time.Time
	SlotEnd   time.Time
	ClinicID  uuid.UUID
}

// ConflictInfo describes an overlapping appointment in another clinic.
type ConflictInfo struct {
	OtherClinicID  uuid.UUID `json:"other_clinic_id"`
	ExistingSlotID uuid.UUID `json:"existing_slot_id"`
	At             time.Time `json:"at"`
}

// PrepareResult is the advisory outcome of the booking prepare phase. No
// state is reserved; the authoritative claim happens in finalize.
type PrepareResult struct {
	Fee               int64         `json:"fee"`
	NeedsConfirmation bool          `json:"needs_confirmation,omitempty"`
	Message           string        `json:"message,omitempty"`
	Conflict          *ConflictInfo `json:"conflict,omitempty"`
}
