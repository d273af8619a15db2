package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/payment"
)

var (
	ErrNotFound          = errors.New("subscription not found")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrPlanInactive      = errors.New("plan is not active")
	ErrDoctorNotFound    = errors.New("doctor profile not found")
	ErrDoctorNotApproved = errors.New("doctor profile is not approved")
	ErrActiveExists      = errors.New("an active subscription already exists")
	ErrAlreadyActive     = errors.New("subscription already active")
	ErrQuotaExceeded     = errors.New("post quota exceeded")
	ErrExpired           = errors.New("subscription expired")
	ErrForbidden         = errors.New("caller does not own this doctor account")
	ErrNotDoctor         = errors.New("only doctors can create posts")
	ErrConfirmRequired   = errors.New("an active subscription exists, confirm replacement to proceed")
)

// Repository contains the subscription store interactions. Activate and
// ReplaceAndActivate are composite atomic operations: subscription state,
// the payment audit row and the role grant commit together or not at all.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// GetActive returns the doctor's is_active subscription, even when its
	// end date has already passed; expiry is the service's call. If the
	// at-most-one invariant is ever violated, the latest end date wins.
	GetActive(ctx context.Context, doctorID uuid.UUID) (*Subscription, error)

	GetPlan(ctx context.Context, planID uuid.UUID) (*Plan, error)
	DoctorApproved(ctx context.Context, doctorID uuid.UUID) (bool, error)

	// HasDoctorRole reports whether the Doctor role has been granted to the
	// user. Activation writes the grant; this is the read side.
	HasDoctorRole(ctx context.Context, userID uuid.UUID) (bool, error)

	// CreatePending inserts an inactive subscription with dates unset.
	CreatePending(ctx context.Context, sub *Subscription) error

	// Activate verifies nothing itself; the service has already checked the
	// signature. It flips the pending subscription active with dates derived
	// from the plan, writes the unique payment row and grants the Doctor
	// role. Re-invocation on an active subscription fails ErrAlreadyActive.
	Activate(ctx context.Context, subID uuid.UUID, plan *Plan, proof payment.Proof, now time.Time) (*Subscription, error)

	// ReplaceAndActivate deactivates the doctor's current subscription (if
	// any), creates the new one, records payment and activates it, all in
	// one transaction. Partial state is never observable.
	ReplaceAndActivate(ctx context.Context, doctorID uuid.UUID, plan *Plan, proof payment.Proof, now time.Time) (*Subscription, error)

	// IncrementPostsUsed applies the quota consumption conditionally.
	// Returns false when the quota is already exhausted.
	IncrementPostsUsed(ctx context.Context, subID uuid.UUID, limit int) (bool, error)

	// DecrementPostsUsed hands back one consumed unit, compensating a post
	// write that failed after the quota claim. Never goes below zero.
	DecrementPostsUsed(ctx context.Context, subID uuid.UUID) error

	// Deactivate flips is_active off, used by lazy expiry and the sweep.
	Deactivate(ctx context.Context, subID uuid.UUID) error

	// ListExpiringBetween returns active subscriptions ending inside the
	// lookahead window. ListExpired returns active ones already past due.
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]Subscription, error)
	ListExpired(ctx context.Context, now time.Time) ([]Subscription, error)
}
