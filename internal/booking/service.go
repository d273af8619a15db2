package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/confirm"
	"github.com/careslot/careslot/internal/eventlog"
	"github.com/careslot/careslot/internal/payment"
	"github.com/careslot/careslot/internal/slot"
)

// Service runs the two-phase appointment booking protocol. Prepare is purely
// advisory; finalize owns all mutation and the payment trust boundary.
type Service struct {
	repo          Repository
	slots         slot.Repository
	clinics       clinic.Repository
	events        eventlog.Recorder
	paymentSecret string
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, slots slot.Repository, clinics clinic.Repository,
	events eventlog.Recorder, paymentSecret string, log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		slots:         slots,
		clinics:       clinics,
		events:        events,
		paymentSecret: paymentSecret,
		log:           log,
		now:           time.Now,
	}
}

// Prepare validates the slot and reports the fee the caller must pay. The
// availability check here is advisory only; a racing finalize can still
// claim the slot first. A time overlap with the caller's appointment in a
// different clinic needs an explicit override confirmation.
func (s *Service) Prepare(ctx context.Context, callerID, slotID uuid.UUID, confirmOverride any) (*PrepareResult, error) {
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if sl.Availability != slot.Available {
		return nil, ErrSlotUnavailable
	}

	cl, err := s.clinics.GetByID(ctx, sl.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic for slot: %w", err)
	}

	existing, err := s.repo.ListActiveWithWindows(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("scan existing appointments: %w", err)
	}

	var conflictWith *ConflictInfo
	for i := range existing {
		e := &existing[i]
		overlaps := e.SlotStart.Before(sl.End) && sl.Start.Before(e.SlotEnd)
		if overlaps && e.ClinicID != sl.ClinicID {
			conflictWith = &ConflictInfo{
				OtherClinicID:  e.ClinicID,
				ExistingSlotID: e.SlotID,
				At:             e.SlotStart,
			}
			break
		}
	}

	if conflictWith != nil && !confirm.Normalized(confirmOverride) {
		return &PrepareResult{
			Fee:               cl.ConsultationFee,
			NeedsConfirmation: true,
			Message:           "You already have an appointment at this time in another clinic. Confirm to book anyway.",
			Conflict:          conflictWith,
		}, nil
	}

	return &PrepareResult{Fee: cl.ConsultationFee}, nil
}

// Finalize verifies the payment proof and performs the atomic slot claim
// plus appointment creation. A retried finalize after the slot flipped fails
// with ErrSlotUnavailable; that is the double-booking guard, not a bug.
func (s *Service) Finalize(ctx context.Context, callerID, slotID uuid.UUID, typ Type, proof payment.Proof) (*Appointment, error) {
	if err := proof.Verify(s.paymentSecret); err != nil {
		return nil, err
	}

	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	cl, err := s.clinics.GetByID(ctx, sl.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic for slot: %w", err)
	}

	if !typ.Valid() {
		typ = TypeVirtual
	}

	appt := &Appointment{
		ID:            uuid.New(),
		SlotID:        sl.ID,
		DoctorID:      sl.DoctorID,
		PatientID:     callerID,
		Type:          typ,
		Status:        StatusConfirmed,
		Fee:           cl.ConsultationFee,
		PaymentID:     proof.PaymentID,
		PaymentStatus: PaymentPaid,
		BookedAt:      s.now(),
	}

	if err := s.repo.Book(ctx, appt); err != nil {
		return nil, err
	}

	s.events.Record(ctx, eventlog.EventAppointmentBooked, appt.ID, map[string]any{
		"slot_id":    sl.ID.String(),
		"patient_id": callerID.String(),
		"payment_id": proof.PaymentID,
	})

	return appt, nil
}

// Cancel marks the appointment cancelled and frees the slot for rebooking.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return err
	}

	s.events.Record(ctx, eventlog.EventAppointmentCancelled, appt.ID, map[string]any{
		"slot_id": appt.SlotID.String(),
	})

	return nil
}

// Get retrieves one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns appointments for a doctor or a patient, newest first.
func (s *Service) List(ctx context.Context, doctorID, patientID uuid.UUID) ([]Appointment, error) {
	switch {
	case doctorID != uuid.Nil:
		return s.repo.ListByDoctor(ctx, doctorID)
	case patientID != uuid.Nil:
		return s.repo.ListByPatient(ctx, patientID)
	default:
		return nil, fmt.Errorf("doctor or patient id required")
	}
}

// Reconcile frees booked slots that lost their appointment. Invoked
// periodically by the worker as a safety net for failed compensations.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	released, err := s.repo.ReleaseOrphanedSlots(ctx)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.log.Warn().Int("released", released).Msg("reconciled orphaned booked slots")
		s.events.Record(ctx, eventlog.EventSlotsReconciled, uuid.Nil, map[string]any{
			"released": released,
		})
	}
	return released, nil
}
