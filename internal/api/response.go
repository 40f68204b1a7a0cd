package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses. Unnamed errors are storage
// faults; their details are logged by the service and not echoed.
func handleServiceError(w http.ResponseWriter, err error) {
	var invalid *validation.Error
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Details: err.Error(), Fields: invalid.Fields})
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, account.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "username_taken", err.Error())
	case errors.Is(err, appointment.ErrNotAppointmentOwner):
		writeError(w, http.StatusForbidden, "not_appointment_owner", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrVaccineNotFound):
		writeError(w, http.StatusNotFound, "vaccine_not_found", err.Error())
	case errors.Is(err, appointment.ErrUnknownParty):
		writeError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, appointment.ErrNoDosesAvailable):
		writeError(w, http.StatusConflict, "no_doses_available", err.Error())
	case errors.Is(err, appointment.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())
	case errors.Is(err, appointment.ErrCaregiverBooked):
		writeError(w, http.StatusConflict, "caregiver_booked", err.Error())
	case errors.Is(err, appointment.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "already_booked", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrNoCaregiverAvailable):
		writeError(w, http.StatusConflict, "no_caregiver_available", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", "please try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "please try again")
	}
}
