package subscription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/confirm"
	"github.com/careslot/careslot/internal/eventlog"
	"github.com/careslot/careslot/internal/payment"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/slot"
)

// RenewalResult is the outcome of a finalized renewal: the new subscription
// plus the best-effort per-clinic slot generation summary.
type RenewalResult struct {
	Subscription *Subscription
	SlotSummary  []slot.GenerationResult
}

// Service owns the subscription lifecycle: pending creation, payment-backed
// activation, the renewal protocol, post quota and the expiry sweep.
type Service struct {
	repo          Repository
	slots         *slot.Service
	events        eventlog.Recorder
	notifier      redisclient.Notifier
	paymentSecret string
	lookahead     time.Duration
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, slots *slot.Service, events eventlog.Recorder,
	notifier redisclient.Notifier, paymentSecret string, lookahead time.Duration,
	log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		slots:         slots,
		events:        events,
		notifier:      notifier,
		paymentSecret: paymentSecret,
		lookahead:     lookahead,
		log:           log,
		now:           time.Now,
	}
}

// GetActive returns the doctor's current subscription. Expiry is lazy: a
// past-due subscription found here is flipped inactive and reported as
// ErrExpired.
func (s *Service) GetActive(ctx context.Context, doctorID uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetActive(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if sub.Expired(s.now()) {
		if err := s.repo.Deactivate(ctx, sub.ID); err != nil {
			s.log.Warn().Err(err).Stringer("subscription_id", sub.ID).Msg("lazy expiry deactivation failed")
		}
		return nil, ErrExpired
	}

	return sub, nil
}

// CreatePending starts a subscription purchase: the record exists inactive
// with dates unset until payment verification activates it.
func (s *Service) CreatePending(ctx context.Context, doctorID, planID uuid.UUID) (*Subscription, error) {
	approved, err := s.repo.DoctorApproved(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, ErrDoctorNotApproved
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	if _, err := s.GetActive(ctx, doctorID); err == nil {
		return nil, ErrActiveExists
	} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired) {
		return nil, err
	}

	sub := &Subscription{
		ID:       uuid.New(),
		DoctorID: doctorID,
		PlanID:   planID,
	}
	if err := s.repo.CreatePending(ctx, sub); err != nil {
		return nil, err
	}

	s.events.Record(ctx, eventlog.EventSubscriptionCreated, sub.ID, map[string]any{
		"doctor_id": doctorID.String(),
		"plan_id":   planID.String(),
	})

	return sub, nil
}

// Activate verifies the payment proof and flips the pending subscription
// active with dates derived from its plan. Idempotent re-invocation on an
// already-active subscription fails with ErrAlreadyActive and writes no
// duplicate payment row.
func (s *Service) Activate(ctx context.Context, subID uuid.UUID, proof payment.Proof) (*Subscription, *Plan, error) {
	if err := proof.Verify(s.paymentSecret); err != nil {
		return nil, nil, err
	}

	sub, err := s.repo.GetByID(ctx, subID)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, err
	}
	if !plan.IsActive {
		return nil, nil, ErrPlanInactive
	}

	activated, err := s.repo.Activate(ctx, subID, plan, proof, s.now())
	if err != nil {
		return nil, nil, err
	}

	s.events.Record(ctx, eventlog.EventSubscriptionActive, activated.ID, map[string]any{
		"doctor_id":  activated.DoctorID.String(),
		"payment_id": proof.PaymentID,
	})

	return activated, plan, nil
}

// PrepareRenewal is purely advisory: it validates plan and ownership and
// asks for explicit confirmation before a replacement. No mutation happens
// here regardless of the confirmation value.
func (s *Service) PrepareRenewal(ctx context.Context, callerID, doctorID, planID uuid.UUID, confirmReplace any) (*RenewalPrepare, error) {
	if callerID != doctorID {
		return nil, ErrForbidden
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	var activeSub *Subscription
	if sub, err := s.GetActive(ctx, doctorID); err == nil {
		activeSub = sub
	} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired) {
		return nil, err
	}

	if !confirm.Normalized(confirmReplace) {
		msg := "No active subscription found. Confirm to start a new subscription plan."
		if activeSub != nil {
			msg = "Current subscription is active. Confirm to replace (will deactivate current plan)."
		}
		return &RenewalPrepare{
			Plan:              plan,
			ActiveSub:         activeSub,
			NeedsConfirmation: true,
			Message:           msg,
		}, nil
	}

	return &RenewalPrepare{Plan: plan, ActiveSub: activeSub}, nil
}

// FinalizeRenewal re-verifies the payment proof, atomically replaces the
// doctor's subscription, then regenerates clinic slots bounded by the new
// end date. Replacing a still-active subscription requires the confirmation
// the prepare phase asked for; a finalize that skipped prepare cannot
// silently discard a running plan. Slot generation runs after commit and
// can only degrade to a partial summary, never roll back the financial
// transaction.
func (s *Service) FinalizeRenewal(ctx context.Context, doctorID, planID uuid.UUID, proof payment.Proof, confirmReplace any) (*RenewalResult, error) {
	if err := proof.Verify(s.paymentSecret); err != nil {
		return nil, err
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	if _, err := s.GetActive(ctx, doctorID); err == nil {
		if !confirm.Normalized(confirmReplace) {
			return nil, ErrConfirmRequired
		}
	} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired) {
		return nil, err
	}

	newSub, err := s.repo.ReplaceAndActivate(ctx, doctorID, plan, proof, s.now())
	if err != nil {
		return nil, err
	}

	s.events.Record(ctx, eventlog.EventSubscriptionRenewed, newSub.ID, map[string]any{
		"doctor_id":  doctorID.String(),
		"plan_id":    planID.String(),
		"payment_id": proof.PaymentID,
	})

	result := &RenewalResult{Subscription: newSub}
	if newSub.EndDate != nil {
		result.SlotSummary = s.slots.GenerateForDoctor(ctx, doctorID, *newSub.EndDate)
		if len(result.SlotSummary) > 0 {
			created := 0
			for _, r := range result.SlotSummary {
				created += r.SlotsCreated
			}
			s.events.Record(ctx, eventlog.EventSlotsGenerated, doctorID, map[string]any{
				"slots_created": created,
				"clinics":       len(result.SlotSummary),
			})
		}
	}

	return result, nil
}

// ConsumePost checks the caller holds the Doctor role, then claims one
// post from the active subscription's quota. The claim is a conditional
// update in the store, so concurrent posts cannot overshoot the limit.
// Returns the subscription the claim landed on so a failed post write can
// hand the unit back via ReleasePost.
func (s *Service) ConsumePost(ctx context.Context, doctorID uuid.UUID) (*Subscription, error) {
	isDoctor, err := s.repo.HasDoctorRole(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !isDoctor {
		return nil, ErrNotDoctor
	}

	sub, err := s.GetActive(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	plan, err := s.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.IncrementPostsUsed(ctx, sub.ID, plan.PostLimit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	return sub, nil
}

// ReleasePost hands one quota unit back after the post write failed. Best
// effort: a failed release is logged and costs the doctor a post at worst.
func (s *Service) ReleasePost(ctx context.Context, subID uuid.UUID) {
	if err := s.repo.DecrementPostsUsed(ctx, subID); err != nil {
		s.log.Warn().Err(err).Stringer("subscription_id", subID).Msg("release post quota failed")
	}
}

// RunExpirySweep notifies doctors whose subscriptions end inside the
// lookahead window and expires past-due ones. Best-effort and idempotent: a
// failing record is logged and the sweep continues.
func (s *Service) RunExpirySweep(ctx context.Context) error {
	now := s.now()

	expiringSoon, err := s.repo.ListExpiringBetween(ctx, now, now.Add(s.lookahead))
	if err != nil {
		return fmt.Errorf("list expiring subscriptions: %w", err)
	}

	for i := range expiringSoon {
		sub := &expiringSoon[i]
		daysLeft := int(math.Ceil(sub.EndDate.Sub(now).Hours() / 24))
		s.notifier.Notify(ctx, sub.DoctorID, "subscription_expiring", map[string]any{
			"subscription_id": sub.ID.String(),
			"days_left":       daysLeft,
		})
	}

	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired subscriptions: %w", err)
	}

	for i := range expired {
		sub := &expired[i]
		if err := s.repo.Deactivate(ctx, sub.ID); err != nil {
			s.log.Warn().Err(err).Stringer("subscription_id", sub.ID).Msg("expire subscription failed")
			continue
		}
		s.events.Record(ctx, eventlog.EventSubscriptionExpired, sub.ID, map[string]any{
			"doctor_id": sub.DoctorID.String(),
		})
		s.notifier.Notify(ctx, sub.DoctorID, "subscription_expired", map[string]any{
			"subscription_id": sub.ID.String(),
		})
	}

	s.log.Info().
		Int("expiring_soon", len(expiringSoon)).
		Int("expired", len(expired)).
		Msg("subscription expiry sweep complete")

	return nil
}
