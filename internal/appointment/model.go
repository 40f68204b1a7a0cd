package appointment

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

// DateLayout is the wire and ID format of a calendar date.
const DateLayout = "2006-01-02"

const (
	EventAvailabilityUploaded = "AVAILABILITY_UPLOADED"
	EventAppointmentReserved  = "APPOINTMENT_RESERVED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAvailabilityPruned   = "AVAILABILITY_PRUNED"
)

// AvailabilitySlot is a caregiver's open bookable day.
type AvailabilitySlot struct {
	Time      time.Time
	Caregiver string
}

type Appointment struct {
	ID            string
	CaregiverName string
	PatientName   string
	VaccineName   string
	Date          time.Time
	CreatedAt     time.Time
}

// Principal is an authenticated caller.
type Principal struct {
	Role     account.Role
	Username string
}

// Owns reports whether p is the party the appointment is bound to in p's role.
func (p Principal) Owns(a *Appointment) bool {
	switch p.Role {
	case account.RolePatient:
		return a.PatientName == p.Username
	case account.RoleCaregiver:
		return a.CaregiverName == p.Username
	default:
		return false
	}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *string
	Payload       []byte
	CreatedAt     time.Time
}

// DeriveID builds the appointment identifier: the first character of the caregiver,
// patient and vaccine names followed by the date. Distinct triples sharing all three
// initials collide on the same date; callers depend on this exact format.
func DeriveID(caregiver, patient, vaccine string, date time.Time) string {
	return firstRune(caregiver) + firstRune(patient) + firstRune(vaccine) + NormalizeDate(date).Format(DateLayout)
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s[:size]
	}
	return string(r)
}

// NormalizeDate drops the time of day, keeping the calendar date as seen in t's location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must look like %s", s, DateLayout)
	}
	return t, nil
}

// slotKey names the lock that serializes mutations of one (caregiver, date) pair.
func slotKey(caregiver string, date time.Time) string {
	return caregiver + "|" + NormalizeDate(date).Format(DateLayout)
}
