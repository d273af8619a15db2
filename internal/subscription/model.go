package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Plan is immutable reference data: a priced tier defining subscription
// duration and post quota.
type Plan struct {
	ID        uuid.UUID
	Name      string
	Price     int64
	PostLimit int
	Days      int
	Discount  int
	IsActive  bool
}

// Subscription is a doctor's paid access window. It is created inactive with
// dates unset and only activated after payment signature verification.
type Subscription struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PlanID    uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	IsActive  bool
	PostsUsed int
	PaymentID string
}

// Expired reports whether the subscription's window has passed.
func (s *Subscription) Expired(now time.Time) bool {
	return s.EndDate != nil && now.After(*s.EndDate)
}

// PaymentRecord is the write-once audit row, one per subscription, created
// only after signature verification succeeds.
type PaymentRecord struct {
	ID             uuid.UUID
	OrderID        string
	PaymentID      string
	Signature      string
	Amount         int64
	Currency       string
	Status         string
	SubscriptionID uuid.UUID
}

// RenewalPrepare is the advisory outcome of the renewal prepare phase.
// Nothing is mutated regardless of confirmation.
type RenewalPrepare struct {
	Plan              *Plan
	ActiveSub         *Subscription
	NeedsConfirmation bool
	Message           string
}
