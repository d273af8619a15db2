package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/identity"
	"github.com/careslot/careslot/internal/schedule"
	"github.com/careslot/careslot/internal/slot"
	"github.com/careslot/careslot/internal/subscription"
)

func createClinicHandler(clinics clinic.Repository, subs *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		// Clinics hang off a paid doctor account.
		if _, err := subs.GetActive(r.Context(), callerID); err != nil {
			handleSubscriptionError(w, err)
			return
		}

		var req CreateClinicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_name", "name is required")
			return
		}

		c := &clinic.Clinic{
			ID:              uuid.New(),
			DoctorID:        callerID,
			Name:            req.Name,
			Address:         req.Address,
			City:            req.City,
			ConsultationFee: req.ConsultationFee,
		}
		if req.Timing != nil {
			c.Timing = schedule.Timing{
				Days:        req.Timing.Days,
				StartTime:   req.Timing.StartTime,
				EndTime:     req.Timing.EndTime,
				SlotMinutes: req.Timing.SlotMinutes,
			}
		}

		if err := clinics.Insert(r.Context(), c); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, c)
	}
}

func getClinicHandler(clinics clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "id must be a valid UUID")
			return
		}

		c, err := clinics.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrNotFound) {
				writeError(w, http.StatusNotFound, "clinic_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, c)
	}
}

func listClinicsHandler(clinics clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		list, err := clinics.ListByDoctor(r.Context(), doctorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func createSlotHandler(svc *slot.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}

		sl := &slot.Slot{
			ID:       uuid.New(),
			DoctorID: callerID,
			ClinicID: clinicID,
			Start:    req.Start,
			End:      req.End,
		}

		if err := svc.CreateSlot(r.Context(), sl); err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(sl))
	}
}

func getSlotHandler(svc *slot.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		sl, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(sl))
	}
}

func listDoctorSlotsHandler(svc *slot.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		var f slot.ListFilter
		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
				return
			}
			f.From = &t
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
				return
			}
			f.To = &t
		}
		f.Availability = slot.Availability(r.URL.Query().Get("availability"))

		slots, err := svc.ListByDoctor(r.Context(), doctorID, f)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// generateClinicSlotsHandler expands one clinic's timing template into slots
// bounded by the caller's active subscription end date.
func generateClinicSlotsHandler(slots *slot.Service, clinics clinic.Repository, subs *subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		clinicID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "id must be a valid UUID")
			return
		}

		c, err := clinics.GetByID(r.Context(), clinicID)
		if err != nil {
			if errors.Is(err, clinic.ErrNotFound) {
				writeError(w, http.StatusNotFound, "clinic_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if c.DoctorID != callerID {
			writeError(w, http.StatusForbidden, "clinic_not_owned", "clinic belongs to another doctor")
			return
		}

		sub, err := subs.GetActive(r.Context(), callerID)
		if err != nil {
			handleSubscriptionError(w, err)
			return
		}
		if sub.EndDate == nil {
			writeError(w, http.StatusConflict, "subscription_not_activated", "subscription has no end date yet")
			return
		}

		result, err := slots.GenerateForClinic(r.Context(), c, *sub.EndDate)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func transitionSlotHandler(svc *slot.Service, to slot.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := identity.Subject(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.Transition(r.Context(), callerID, id, to); err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"availability": string(to)})
	}
}

func handleSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, slot.ErrDuplicate):
		writeError(w, http.StatusConflict, "slot_duplicate", err.Error())
	case errors.Is(err, slot.ErrNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, slot.ErrNotOwned):
		writeError(w, http.StatusForbidden, "slot_not_owned", err.Error())
	case errors.Is(err, slot.ErrMissingTiming), errors.Is(err, schedule.ErrInvalidTiming):
		writeError(w, http.StatusBadRequest, "invalid_timing", err.Error())
	case errors.Is(err, slot.ErrSubscriptionExpired):
		writeError(w, http.StatusConflict, "subscription_expired", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
