package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/booking"
	"github.com/careslot/careslot/internal/slot"
	"github.com/careslot/careslot/internal/subscription"
)

type PaymentProofRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type CheckoutRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PrepareAppointmentRequest struct {
	SlotID          string `json:"slot_id"`
	ConfirmOverride any    `json:"confirm_override"`
}

type FinalizeAppointmentRequest struct {
	SlotID string `json:"slot_id"`
	Type   string `json:"type"`
	PaymentProofRequest
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	SlotID        uuid.UUID  `json:"slot_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Fee           int64      `json:"fee"`
	PaymentStatus string     `json:"payment_status"`
	BookedAt      time.Time  `json:"booked_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		SlotID:        a.SlotID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Type:          string(a.Type),
		Status:        string(a.Status),
		Fee:           a.Fee,
		PaymentStatus: string(a.PaymentStatus),
		BookedAt:      a.BookedAt,
		CancelledAt:   a.CancelledAt,
	}
}

type CreateSubscriptionRequest struct {
	PlanID string `json:"plan_id"`
}

type VerifySubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id"`
	PaymentProofRequest
}

type RenewalPrepareRequest struct {
	DoctorID       string `json:"doctor_id"`
	PlanID         string `json:"plan_id"`
	ConfirmReplace any    `json:"confirm_replace"`
}

type RenewalFinalizeRequest struct {
	DoctorID       string `json:"doctor_id"`
	PlanID         string `json:"plan_id"`
	ConfirmReplace any    `json:"confirm_replace"`
	PaymentProofRequest
}

type SubscriptionResponse struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	PlanID    uuid.UUID  `json:"plan_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	IsActive  bool       `json:"is_active"`
	PostsUsed int        `json:"posts_used"`
}

func toSubscriptionResponse(s *subscription.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		PlanID:    s.PlanID,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		IsActive:  s.IsActive,
		PostsUsed: s.PostsUsed,
	}
}

type ClinicTimingRequest struct {
	Days        []string `json:"days"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	SlotMinutes int      `json:"slot_minutes"`
}

type CreateClinicRequest struct {
	Name            string               `json:"name"`
	Address         string               `json:"address"`
	City            string               `json:"city"`
	ConsultationFee int64                `json:"consultation_fee"`
	Timing          *ClinicTimingRequest `json:"timing"`
}

type CreateSlotRequest struct {
	ClinicID string    `json:"clinic_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type SlotResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	ClinicID     uuid.UUID `json:"clinic_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Availability string    `json:"availability"`
}

func toSlotResponse(s *slot.Slot) SlotResponse {
	return SlotResponse{
		ID:           s.ID,
		DoctorID:     s.DoctorID,
		ClinicID:     s.ClinicID,
		Start:        s.Start,
		End:          s.End,
		Availability: string(s.Availability),
	}
}

type CreatePostRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Status string `json:"status"`
}
