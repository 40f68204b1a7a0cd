package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
)

// ledger works on the transaction's private copy of the state.
type ledger struct {
	st *state
}

func keyFor(caregiver string, date time.Time) slotID {
	return slotID{caregiver: caregiver, date: appointment.NormalizeDate(date).Format(appointment.DateLayout)}
}

func (l *ledger) SlotExists(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	_, ok := l.st.slots[keyFor(caregiver, date)]
	return ok, ctx.Err()
}

func (l *ledger) InsertSlot(ctx context.Context, slot appointment.AvailabilitySlot) error {
	key := keyFor(slot.Caregiver, slot.Time)
	if _, ok := l.st.slots[key]; ok {
		return appointment.ErrSlotExists
	}
	if _, ok := l.st.accounts[account.RoleCaregiver][slot.Caregiver]; !ok {
		return appointment.ErrUnknownParty
	}
	l.st.slots[key] = struct{}{}
	return ctx.Err()
}

func (l *ledger) DeleteSlot(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	key := keyFor(caregiver, date)
	if _, ok := l.st.slots[key]; !ok {
		return false, ctx.Err()
	}
	delete(l.st.slots, key)
	return true, ctx.Err()
}

func (l *ledger) ListSlots(ctx context.Context, date time.Time) ([]string, error) {
	day := appointment.NormalizeDate(date).Format(appointment.DateLayout)

	var caregivers []string
	for key := range l.st.slots {
		if key.date == day {
			caregivers = append(caregivers, key.caregiver)
		}
	}
	sort.Strings(caregivers)
	return caregivers, ctx.Err()
}

func (l *ledger) DeleteSlotsBefore(ctx context.Context, date time.Time) (int64, error) {
	cutoff := appointment.NormalizeDate(date).Format(appointment.DateLayout)

	var removed int64
	for key := range l.st.slots {
		// YYYY-MM-DD sorts chronologically
		if key.date < cutoff {
			delete(l.st.slots, key)
			removed++
		}
	}
	return removed, ctx.Err()
}

func (l *ledger) GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, ok := l.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (l *ledger) CaregiverBooked(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	day := appointment.NormalizeDate(date)
	for _, a := range l.st.appointments {
		if a.CaregiverName == caregiver && a.Date.Equal(day) {
			return true, ctx.Err()
		}
	}
	return false, ctx.Err()
}

func (l *ledger) InsertAppointment(ctx context.Context, a appointment.Appointment) error {
	if _, ok := l.st.appointments[a.ID]; ok {
		return appointment.ErrAlreadyBooked
	}
	a.Date = appointment.NormalizeDate(a.Date)
	for _, existing := range l.st.appointments {
		if existing.CaregiverName == a.CaregiverName && existing.Date.Equal(a.Date) {
			return appointment.ErrSlotUnavailable
		}
	}

	// foreign keys are checked after the unique constraints, as in Postgres
	if _, ok := l.st.accounts[account.RoleCaregiver][a.CaregiverName]; !ok {
		return appointment.ErrUnknownParty
	}
	if _, ok := l.st.accounts[account.RolePatient][a.PatientName]; !ok {
		return appointment.ErrUnknownParty
	}
	if _, ok := l.st.vaccines[a.VaccineName]; !ok {
		return appointment.ErrVaccineNotFound
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	l.st.appointments[a.ID] = a
	return ctx.Err()
}

func (l *ledger) DeleteAppointment(ctx context.Context, id string) error {
	if _, ok := l.st.appointments[id]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	delete(l.st.appointments, id)
	return ctx.Err()
}

func (l *ledger) ListAppointments(ctx context.Context, role account.Role, username string) ([]appointment.Appointment, error) {
	var result []appointment.Appointment
	for _, a := range l.st.appointments {
		owner := a.PatientName
		if role == account.RoleCaregiver {
			owner = a.CaregiverName
		}
		if owner == username {
			result = append(result, a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, ctx.Err()
}

func (l *ledger) TakeDose(ctx context.Context, vaccine string) error {
	doses, ok := l.st.vaccines[vaccine]
	if !ok {
		return appointment.ErrVaccineNotFound
	}
	if doses <= 0 {
		return appointment.ErrNoDosesAvailable
	}
	l.st.vaccines[vaccine] = doses - 1
	return ctx.Err()
}

func (l *ledger) ReturnDose(ctx context.Context, vaccine string) error {
	if _, ok := l.st.vaccines[vaccine]; !ok {
		return appointment.ErrVaccineNotFound
	}
	l.st.vaccines[vaccine]++
	return ctx.Err()
}
