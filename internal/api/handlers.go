package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/auth"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
)

func registerHandler(svc *account.Service, role account.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct, err := svc.Register(r.Context(), role, req.Username, req.Password)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAccountResponse(acct))
	}
}

func createSessionHandler(svc *account.Service, secret string, expiry time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct, err := svc.Authenticate(r.Context(), account.Role(req.Role), req.Username, req.Password)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		token, err := auth.MakeToken(acct.Username, acct.Role, secret, expiry)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not issue token")
			return
		}

		writeJSON(w, http.StatusCreated, SessionResponse{
			Token:     token,
			Role:      acct.Role.String(),
			Username:  acct.Username,
			ExpiresAt: time.Now().Add(expiry).UTC(),
		})
	}
}

func uploadAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		var req UploadAvailabilityRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, ok := parseDate(w, req.Date)
		if !ok {
			return
		}

		if err := svc.UploadAvailability(r.Context(), p.Username, date); err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"caregiver": p.Username,
			"date":      date.Format(appointment.DateLayout),
		})
	}
}

func uploadRecurringHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		var req UploadRecurringRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		start, ok := parseDate(w, req.Start)
		if !ok {
			return
		}

		result, err := svc.UploadRecurringAvailability(r.Context(), p.Username, start, req.Rule)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := RecurringAvailabilityResponse{
			Uploaded: formatDates(result.Uploaded),
			Skipped:  make([]SkippedDateResponse, 0, len(result.Skipped)),
		}
		for _, s := range result.Skipped {
			resp.Skipped = append(resp.Skipped, SkippedDateResponse{
				Date:   s.Date.Format(appointment.DateLayout),
				Reason: s.Reason.Error(),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func searchAvailabilityHandler(svc *appointment.Service, stock *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDate(w, r.URL.Query().Get("date"))
		if !ok {
			return
		}

		caregivers, err := svc.SearchAvailability(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		vaccines, err := stock.ListAvailable(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:       date.Format(appointment.DateLayout),
			Caregivers: caregivers,
			Vaccines:   vaccines,
		})
	}
}

func reserveAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, ok := parseDate(w, req.Date)
		if !ok {
			return
		}

		var appt *appointment.Appointment
		if req.Caregiver == "" {
			var err error
			appt, err = svc.ReserveFirstAvailable(r.Context(), p.Username, req.Vaccine, date)
			if err != nil {
				handleServiceError(w, err)
				return
			}
		} else {
			id, err := svc.ReserveAppointment(r.Context(), appointment.ReserveRequest{
				Patient:   p.Username,
				Caregiver: req.Caregiver,
				Vaccine:   req.Vaccine,
				Date:      date,
			})
			if err != nil {
				handleServiceError(w, err)
				return
			}
			appt = &appointment.Appointment{
				ID:            id,
				CaregiverName: req.Caregiver,
				PatientName:   p.Username,
				VaccineName:   req.Vaccine,
				Date:          appointment.NormalizeDate(date),
			}
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		appts, err := svc.ListAppointments(r.Context(), p)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		appt, err := svc.GetAppointment(r.Context(), p, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		id := chi.URLParam(r, "id")

		vaccine, err := svc.CancelAppointment(r.Context(), p, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelAppointmentResponse{ID: id, Vaccine: vaccine})
	}
}

func listVaccinesHandler(stock *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vaccines, err := stock.ListAvailable(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, vaccines)
	}
}

func addDosesHandler(stock *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddDosesRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		v, err := stock.AddDoses(r.Context(), chi.URLParam(r, "name"), req.Doses)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, v)
	}
}

func parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	date, err := appointment.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return time.Time{}, false
	}
	return date, true
}
