package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/schedule"
)

var (
	ErrSubscriptionExpired = errors.New("subscription expired, cannot generate slots")
	ErrMissingTiming       = errors.New("clinic has no timing template")
)

// Service owns slot generation and the manual slot surface.
type Service struct {
	repo        Repository
	clinics     clinic.Repository
	horizonDays int
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, clinics clinic.Repository, horizonDays int, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		clinics:     clinics,
		horizonDays: horizonDays,
		log:         log,
		now:         time.Now,
	}
}

// GenerateForClinic expands the clinic's timing template into slots bounded
// by the subscription end date and bulk-inserts them, treating duplicate
// windows as skipped rather than failed.
func (s *Service) GenerateForClinic(ctx context.Context, c *clinic.Clinic, subscriptionEnd time.Time) (*GenerationResult, error) {
	if !c.HasTiming() {
		return nil, ErrMissingTiming
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if subscriptionEnd.Before(today) {
		return nil, ErrSubscriptionExpired
	}

	candidates, err := schedule.Generate(c.Timing, now, s.horizonDays, subscriptionEnd)
	if err != nil {
		return nil, fmt.Errorf("generate slots for clinic %s: %w", c.ID, err)
	}

	slots := make([]Slot, 0, len(candidates))
	for _, cand := range candidates {
		slots = append(slots, Slot{
			ID:           uuid.New(),
			DoctorID:     c.DoctorID,
			ClinicID:     c.ID,
			Start:        cand.Start,
			End:          cand.End,
			Availability: Available,
		})
	}

	created, err := s.repo.BulkInsert(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("bulk insert slots for clinic %s: %w", c.ID, err)
	}

	return &GenerationResult{
		ClinicID:          c.ID,
		SlotsCreated:      created,
		DuplicatesSkipped: len(slots) - created,
	}, nil
}

// GenerateForDoctor runs generation for every clinic the doctor owns that
// declares a timing template. Best-effort: a failing clinic is logged and
// skipped, the rest of the summary still comes back.
func (s *Service) GenerateForDoctor(ctx context.Context, doctorID uuid.UUID, subscriptionEnd time.Time) []GenerationResult {
	clinics, err := s.clinics.ListByDoctor(ctx, doctorID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("doctor_id", doctorID).Msg("list clinics for slot generation")
		return nil
	}

	var summary []GenerationResult
	for i := range clinics {
		c := &clinics[i]
		if !c.HasTiming() {
			continue
		}

		res, err := s.GenerateForClinic(ctx, c, subscriptionEnd)
		if err != nil {
			s.log.Warn().Err(err).Stringer("clinic_id", c.ID).Msg("slot generation for clinic failed")
			continue
		}
		summary = append(summary, *res)
	}

	return summary
}

// CreateSlot inserts a single manual slot for the owning doctor.
func (s *Service) CreateSlot(ctx context.Context, sl *Slot) error {
	if !sl.End.After(sl.Start) {
		return schedule.ErrInvalidTiming
	}
	if sl.Availability == "" {
		sl.Availability = Available
	}
	return s.repo.Insert(ctx, sl)
}

// GetSlot retrieves a single slot.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByDoctor lists a doctor's slots sorted by start ascending.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]Slot, error) {
	return s.repo.ListByDoctor(ctx, doctorID, f)
}

// Transition moves an available slot to hold or blocked for the owning
// doctor.
func (s *Service) Transition(ctx context.Context, doctorID, slotID uuid.UUID, to Availability) error {
	if to != Hold && to != Blocked {
		return fmt.Errorf("unsupported transition target %q", to)
	}

	sl, err := s.repo.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	if sl.DoctorID != doctorID {
		return ErrNotOwned
	}

	ok, err := s.repo.SetAvailability(ctx, slotID, Available, to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAvailable
	}
	return nil
}
