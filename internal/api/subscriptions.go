package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/identity"
	"github.com/careslot/careslot/internal/payment"
	"github.com/careslot/careslot/internal/post"
	"github.com/careslot/careslot/internal/subscription"
)

func createSubscriptionHandler(svc *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		var req CreateSubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		planID, err := uuid.Parse(req.PlanID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_plan_id", "plan_id must be a valid UUID")
			return
		}

		sub, err := svc.CreatePending(r.Context(), callerID, planID)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
	}
}

func activeSubscriptionHandler(svc *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		sub, err := svc.GetActive(r.Context(), callerID)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
	}
}

func verifySubscriptionHandler(svc *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifySubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		subID, err := uuid.Parse(req.SubscriptionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_subscription_id", "subscription_id must be a valid UUID")
			return
		}

		proof := payment.Proof{
			OrderID:   req.RazorpayOrderID,
			PaymentID: req.RazorpayPaymentID,
			Signature: req.RazorpaySignature,
		}

		sub, plan, err := svc.Activate(r.Context(), subID, proof)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"subscription": toSubscriptionResponse(sub),
			"plan":         plan.Name,
		})
	}
}

func prepareRenewalHandler(svc *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		var req RenewalPrepareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		planID, err := uuid.Parse(req.PlanID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_plan_id", "plan_id must be a valid UUID")
			return
		}

		prep, err := svc.PrepareRenewal(r.Context(), callerID, doctorID, planID, req.ConfirmReplace)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}

		resp := map[string]any{
			"plan":               prep.Plan.Name,
			"needs_confirmation": prep.NeedsConfirmation,
		}
		if prep.Message != "" {
			resp["message"] = prep.Message
		}
		if prep.ActiveSub != nil {
			resp["active_subscription"] = toSubscriptionResponse(prep.ActiveSub)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func finalizeRenewalHandler(svc *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		var req RenewalFinalizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if doctorID != callerID {
			writeError(w, http.StatusForbidden, "forbidden", "can only renew your own subscription")
			return
		}
		planID, err := uuid.Parse(req.PlanID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_plan_id", "plan_id must be a valid UUID")
			return
		}

		proof := payment.Proof{
			OrderID:   req.RazorpayOrderID,
			PaymentID: req.RazorpayPaymentID,
			Signature: req.RazorpaySignature,
		}

		result, err := svc.FinalizeRenewal(r.Context(), doctorID, planID, proof, req.ConfirmReplace)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"subscription": toSubscriptionResponse(result.Subscription),
			"slot_summary": result.SlotSummary,
		})
	}
}

func createPostHandler(subs *subscription.Service, posts post.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		var req CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, "invalid_title", "title is required")
			return
		}
		status := post.Status(req.Status)
		if status != "" && !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be draft, published or archived")
			return
		}

		// Payload is fully validated; only a storage failure past this
		// point can stop the post, and that hands the quota unit back.
		sub, err := subs.ConsumePost(r.Context(), callerID)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}

		p := &post.Post{
			DoctorID: callerID,
			Title:    req.Title,
			Body:     req.Body,
			Status:   status,
		}
		if err := posts.Insert(r.Context(), p); err != nil {
			subs.ReleasePost(r.Context(), sub.ID)
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":     p.ID,
			"status": string(p.Status),
		})
	}
}

func handleSubscriptionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		writeError(w, http.StatusNotFound, "subscription_not_found", err.Error())
	case errors.Is(err, subscription.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan_not_found", err.Error())
	case errors.Is(err, subscription.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, subscription.ErrDoctorNotApproved):
		writeError(w, http.StatusForbidden, "doctor_not_approved", err.Error())
	case errors.Is(err, subscription.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, subscription.ErrNotDoctor):
		writeError(w, http.StatusForbidden, "not_doctor", err.Error())
	case errors.Is(err, subscription.ErrPlanInactive):
		writeError(w, http.StatusBadRequest, "plan_inactive", err.Error())
	case errors.Is(err, subscription.ErrActiveExists):
		writeError(w, http.StatusConflict, "active_subscription_exists", err.Error())
	case errors.Is(err, subscription.ErrAlreadyActive):
		writeError(w, http.StatusConflict, "subscription_already_active", err.Error())
	case errors.Is(err, subscription.ErrQuotaExceeded):
		writeError(w, http.StatusConflict, "post_quota_exceeded", err.Error())
	case errors.Is(err, subscription.ErrConfirmRequired):
		writeError(w, http.StatusConflict, "confirmation_required", err.Error())
	case errors.Is(err, subscription.ErrExpired):
		writeError(w, http.StatusConflict, "subscription_expired", err.Error())
	case errors.Is(err, payment.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid_payment_signature", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
