package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

func TestDeriveID(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "ABP2024-01-10", DeriveID("Alice", "Bob", "Pfizer", date))
	assert.Equal(t, "ÉñM2024-01-10", DeriveID("Élodie", "ñandú", "Moderna", date))
}

func TestDeriveIDIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, DeriveID("a", "b", "c", morning), DeriveID("a", "b", "c", evening))
}

func TestNormalizeDateKeepsLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	late := time.Date(2024, 6, 1, 1, 0, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), NormalizeDate(late))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())

	_, err = ParseDate("02/29/2024")
	assert.Error(t, err)
}

func TestPrincipalOwns(t *testing.T) {
	appt := &Appointment{CaregiverName: "alice", PatientName: "bob"}

	assert.True(t, Principal{Role: account.RolePatient, Username: "bob"}.Owns(appt))
	assert.True(t, Principal{Role: account.RoleCaregiver, Username: "alice"}.Owns(appt))
	assert.False(t, Principal{Role: account.RolePatient, Username: "alice"}.Owns(appt))
	assert.False(t, Principal{Role: account.RoleCaregiver, Username: "bob"}.Owns(appt))
}

func TestSlotKey(t *testing.T) {
	date := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "alice|2024-01-10", slotKey("alice", date))
}

func TestExpandRule(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	dates, err := expandRule("RRULE:FREQ=DAILY;INTERVAL=2;COUNT=3", start)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		start,
		start.AddDate(0, 0, 2),
		start.AddDate(0, 0, 4),
	}, dates)

	dates, err = expandRule("FREQ=DAILY", start)
	require.NoError(t, err)
	assert.Len(t, dates, maxRecurringDates)

	_, err = expandRule("FREQ=SOMETIMES", start)
	assert.Error(t, err)
}
