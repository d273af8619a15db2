package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/eventlog"
	"github.com/careslot/careslot/internal/payment"
	"github.com/careslot/careslot/internal/slot"
)

const testSecret = "test-payment-secret"

// memSlotRepo is an in-memory slot store whose SetAvailability has the same
// compare-and-swap semantics as the SQL conditional update.
type memSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot.Slot
}

func newMemSlotRepo() *memSlotRepo {
	return &memSlotRepo{slots: make(map[uuid.UUID]*slot.Slot)}
}

func (r *memSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*slot.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, slot.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSlotRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, _ slot.ListFilter) ([]slot.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []slot.Slot
	for _, s := range r.slots {
		if s.DoctorID == doctorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSlotRepo) Insert(_ context.Context, s *slot.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.slots[s.ID] = &cp
	return nil
}

func (r *memSlotRepo) BulkInsert(_ context.Context, slots []slot.Slot) (int, error) {
	for i := range slots {
		_ = r.Insert(context.Background(), &slots[i])
	}
	return len(slots), nil
}

func (r *memSlotRepo) SetAvailability(_ context.Context, id uuid.UUID, from, to slot.Availability) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok || s.Availability != from {
		return false, nil
	}
	s.Availability = to
	return true, nil
}

// memBookingRepo implements the composite atomic operations over the same
// mutex that guards the slot store, mirroring the single-transaction
// guarantee of the SQL implementation.
type memBookingRepo struct {
	slots *memSlotRepo

	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
}

func newMemBookingRepo(slots *memSlotRepo) *memBookingRepo {
	return &memBookingRepo{slots: slots, appts: make(map[uuid.UUID]*Appointment)}
}

func (r *memBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memBookingRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if a.DoctorID == doctorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memBookingRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memBookingRepo) ListActiveWithWindows(ctx context.Context, patientID uuid.UUID) ([]AppointmentWithWindow, error) {
	appts, _ := r.ListByPatient(ctx, patientID)
	var out []AppointmentWithWindow
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		sl, err := r.slots.GetByID(ctx, a.SlotID)
		if err != nil {
			continue
		}
		out = append(out, AppointmentWithWindow{
			Appointment: a,
			SlotStart:   sl.Start,
			SlotEnd:     sl.End,
			ClinicID:    sl.ClinicID,
		})
	}
	return out, nil
}

func (r *memBookingRepo) Book(ctx context.Context, a *Appointment) error {
	flipped, err := r.slots.SetAvailability(ctx, a.SlotID, slot.Available, slot.Booked)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrSlotUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.appts[a.ID] = &cp
	return nil
}

func (r *memBookingRepo) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	a, ok := r.appts[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	if a.Status == StatusCancelled {
		r.mu.Unlock()
		return nil, ErrAlreadyCancelled
	}
	a.Status = StatusCancelled
	now := time.Now()
	a.CancelledAt = &now
	cp := *a
	r.mu.Unlock()

	_, err := r.slots.SetAvailability(ctx, a.SlotID, slot.Booked, slot.Available)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *memBookingRepo) ReleaseOrphanedSlots(context.Context) (int, error) {
	return 0, nil
}

type memClinicRepo struct {
	clinics map[uuid.UUID]*clinic.Clinic
}

func (r *memClinicRepo) GetByID(_ context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	c, ok := r.clinics[id]
	if !ok {
		return nil, clinic.ErrNotFound
	}
	return c, nil
}

func (r *memClinicRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]clinic.Clinic, error) {
	var out []clinic.Clinic
	for _, c := range r.clinics {
		if c.DoctorID == doctorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memClinicRepo) Insert(_ context.Context, c *clinic.Clinic) error {
	r.clinics[c.ID] = c
	return nil
}

type fixture struct {
	svc      *Service
	slots    *memSlotRepo
	bookings *memBookingRepo
	clinic   *clinic.Clinic
	doctorID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doctorID := uuid.New()
	cl := &clinic.Clinic{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		Name:            "Test Clinic",
		ConsultationFee: 500,
	}

	slots := newMemSlotRepo()
	bookings := newMemBookingRepo(slots)
	clinics := &memClinicRepo{clinics: map[uuid.UUID]*clinic.Clinic{cl.ID: cl}}

	svc := NewService(bookings, slots, clinics, eventlog.NopRecorder{}, testSecret, zerolog.Nop())

	return &fixture{svc: svc, slots: slots, bookings: bookings, clinic: cl, doctorID: doctorID}
}

func (f *fixture) addSlot(t *testing.T, start time.Time) *slot.Slot {
	t.Helper()
	sl := &slot.Slot{
		ID:           uuid.New(),
		DoctorID:     f.doctorID,
		ClinicID:     f.clinic.ID,
		Start:        start,
		End:          start.Add(30 * time.Minute),
		Availability: slot.Available,
	}
	require.NoError(t, f.slots.Insert(context.Background(), sl))
	return sl
}

func validProof() payment.Proof {
	return payment.Proof{
		OrderID:   "order_test",
		PaymentID: "pay_test",
		Signature: payment.ComputeSignature(testSecret, "order_test", "pay_test"),
	}
}

func TestPrepare(t *testing.T) {
	ctx := context.Background()
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	t.Run("available slot reports the clinic fee", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		res, err := f.svc.Prepare(ctx, uuid.New(), sl.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(500), res.Fee)
		assert.False(t, res.NeedsConfirmation)
	})

	t.Run("unknown slot", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Prepare(ctx, uuid.New(), uuid.New(), nil)
		assert.ErrorIs(t, err, slot.ErrNotFound)
	})

	t.Run("booked slot is rejected", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)
		_, err := f.slots.SetAvailability(ctx, sl.ID, slot.Available, slot.Booked)
		require.NoError(t, err)

		_, err = f.svc.Prepare(ctx, uuid.New(), sl.ID, nil)
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("prepare reserves nothing", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		_, err := f.svc.Prepare(ctx, uuid.New(), sl.ID, nil)
		require.NoError(t, err)

		got, err := f.slots.GetByID(ctx, sl.ID)
		require.NoError(t, err)
		assert.Equal(t, slot.Available, got.Availability)
	})

	t.Run("overlap in another clinic asks for confirmation", func(t *testing.T) {
		f := newFixture(t)
		patientID := uuid.New()

		// Existing appointment at the same hour in a second clinic.
		other := &clinic.Clinic{ID: uuid.New(), DoctorID: uuid.New(), ConsultationFee: 300}
		otherSlot := &slot.Slot{
			ID:           uuid.New(),
			DoctorID:     other.DoctorID,
			ClinicID:     other.ID,
			Start:        start,
			End:          start.Add(30 * time.Minute),
			Availability: slot.Booked,
		}
		require.NoError(t, f.slots.Insert(ctx, otherSlot))
		existingID := uuid.New()
		f.bookings.appts[existingID] = &Appointment{
			ID:        existingID,
			SlotID:    otherSlot.ID,
			DoctorID:  other.DoctorID,
			PatientID: patientID,
			Status:    StatusConfirmed,
		}

		sl := f.addSlot(t, start.Add(10*time.Minute))

		res, err := f.svc.Prepare(ctx, patientID, sl.ID, nil)
		require.NoError(t, err)
		assert.True(t, res.NeedsConfirmation)
		require.NotNil(t, res.Conflict)
		assert.Equal(t, other.ID, res.Conflict.OtherClinicID)

		// Explicit override clears the confirmation requirement.
		res, err = f.svc.Prepare(ctx, patientID, sl.ID, "yes")
		require.NoError(t, err)
		assert.False(t, res.NeedsConfirmation)

		// A non-truthy override value does not.
		res, err = f.svc.Prepare(ctx, patientID, sl.ID, "nope")
		require.NoError(t, err)
		assert.True(t, res.NeedsConfirmation)
	})
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()
	start := time.Now().Add(24 * time.Hour)

	t.Run("books the slot and records payment", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)
		patientID := uuid.New()

		appt, err := f.svc.Finalize(ctx, patientID, sl.ID, TypeWalkIn, validProof())
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, appt.Status)
		assert.Equal(t, PaymentPaid, appt.PaymentStatus)
		assert.Equal(t, int64(500), appt.Fee)
		assert.Equal(t, f.doctorID, appt.DoctorID)

		got, err := f.slots.GetByID(ctx, sl.ID)
		require.NoError(t, err)
		assert.Equal(t, slot.Booked, got.Availability)
	})

	t.Run("invalid signature rejected before any mutation", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		proof := validProof()
		proof.Signature = "deadbeef"

		_, err := f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, proof)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)

		got, err := f.slots.GetByID(ctx, sl.ID)
		require.NoError(t, err)
		assert.Equal(t, slot.Available, got.Availability)
	})

	t.Run("second finalize on the same slot conflicts", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		_, err := f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, validProof())
		require.NoError(t, err)

		_, err = f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, validProof())
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("unknown type defaults to virtual", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		appt, err := f.svc.Finalize(ctx, uuid.New(), sl.ID, Type("house-call"), validProof())
		require.NoError(t, err)
		assert.Equal(t, TypeVirtual, appt.Type)
	})

	t.Run("concurrent finalizes produce exactly one booking", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		const workers = 50
		var wg sync.WaitGroup
		errs := make(chan error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, validProof())
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var success, conflict int
		for err := range errs {
			switch {
			case err == nil:
				success++
			default:
				assert.ErrorIs(t, err, ErrSlotUnavailable)
				conflict++
			}
		}

		assert.Equal(t, 1, success)
		assert.Equal(t, workers-1, conflict)
		assert.Len(t, f.bookings.appts, 1)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	start := time.Now().Add(24 * time.Hour)

	t.Run("frees the slot for rebooking", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		appt, err := f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, validProof())
		require.NoError(t, err)

		require.NoError(t, f.svc.Cancel(ctx, appt.ID))

		got, err := f.slots.GetByID(ctx, sl.ID)
		require.NoError(t, err)
		assert.Equal(t, slot.Available, got.Availability)

		// Another patient can now claim the slot.
		_, err = f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, validProof())
		assert.NoError(t, err)
	})

	t.Run("double cancel conflicts", func(t *testing.T) {
		f := newFixture(t)
		sl := f.addSlot(t, start)

		appt, err := f.svc.Finalize(ctx, uuid.New(), sl.ID, TypeVirtual, validProof())
		require.NoError(t, err)

		require.NoError(t, f.svc.Cancel(ctx, appt.ID))
		assert.ErrorIs(t, f.svc.Cancel(ctx, appt.ID), ErrAlreadyCancelled)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.Cancel(ctx, uuid.New()), ErrNotFound)
	})
}
