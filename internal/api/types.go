package api

import (
	"time"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AccountResponse struct {
	Role      string    `json:"role"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateSessionRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UploadAvailabilityRequest struct {
	Date string `json:"date"`
}

type UploadRecurringRequest struct {
	Start string `json:"start"`
	// Rule is an RFC 5545 RRULE, e.g. "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=8".
	Rule string `json:"rule"`
}

type SkippedDateResponse struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type RecurringAvailabilityResponse struct {
	Uploaded []string              `json:"uploaded"`
	Skipped  []SkippedDateResponse `json:"skipped"`
}

type AvailabilityResponse struct {
	Date       string              `json:"date"`
	Caregivers []string            `json:"caregivers"`
	Vaccines   []inventory.Vaccine `json:"vaccines"`
}

type CreateAppointmentRequest struct {
	// Caregiver is optional; without it the first available caregiver is booked.
	Caregiver string `json:"caregiver,omitempty"`
	Vaccine   string `json:"vaccine"`
	Date      string `json:"date"`
}

type AppointmentResponse struct {
	ID        string `json:"id"`
	Caregiver string `json:"caregiver"`
	Patient   string `json:"patient"`
	Vaccine   string `json:"vaccine"`
	Date      string `json:"date"`
}

type CancelAppointmentResponse struct {
	ID      string `json:"id"`
	Vaccine string `json:"vaccine"`
}

type AddDosesRequest struct {
	Doses int `json:"doses"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{Role: a.Role.String(), Username: a.Username, CreatedAt: a.CreatedAt}
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		Caregiver: a.CaregiverName,
		Patient:   a.PatientName,
		Vaccine:   a.VaccineName,
		Date:      a.Date.Format(appointment.DateLayout),
	}
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(appointment.DateLayout))
	}
	return out
}
