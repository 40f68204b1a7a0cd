package appointment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/memstore"
	redisclient "github.com/hackgods/vaccine-appointment-scheduling/internal/redis"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/validation"
)

var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *appointment.Service
	store *memstore.Store
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	cfg := config.Config{QueryTimeout: 2 * time.Second}
	svc := appointment.NewService(store, redisclient.NewLocalSlotLocker(5*time.Second), cfg, zap.NewNop())

	return &fixture{svc: svc, store: store, ctx: context.Background()}
}

func (f *fixture) caregiver(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, f.store.CreateAccount(f.ctx, account.Account{Role: account.RoleCaregiver, Username: name}))
	}
}

func (f *fixture) patient(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, f.store.CreateAccount(f.ctx, account.Account{Role: account.RolePatient, Username: name}))
	}
}

func (f *fixture) doses(t *testing.T, vaccine string, n int) {
	t.Helper()
	_, err := f.store.AddDoses(f.ctx, vaccine, n)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, vaccine string) int {
	t.Helper()
	v, err := f.store.GetVaccine(f.ctx, vaccine)
	require.NoError(t, err)
	return v.Doses
}

func (f *fixture) search(t *testing.T, date time.Time) []string {
	t.Helper()
	caregivers, err := f.svc.SearchAvailability(f.ctx, date)
	require.NoError(t, err)
	return caregivers
}

// booked sets up Alice's slot on day and reserves it for Bob with Pfizer.
func (f *fixture) booked(t *testing.T) string {
	t.Helper()
	f.caregiver(t, "Alice")
	f.patient(t, "Bob")
	f.doses(t, "Pfizer", 2)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "Alice", day))

	id, err := f.svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
		Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
	})
	require.NoError(t, err)
	return id
}

func TestUploadThenSearch(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "zoe", "alice")

	require.NoError(t, f.svc.UploadAvailability(f.ctx, "zoe", day))
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "alice", day.Add(13*time.Hour)))

	assert.Equal(t, []string{"alice", "zoe"}, f.search(t, day))
	assert.Empty(t, f.search(t, day.AddDate(0, 0, 1)))
}

func TestUploadAvailabilityRejects(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "alice")
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "alice", day))

	err := f.svc.UploadAvailability(f.ctx, "alice", day)
	assert.ErrorIs(t, err, appointment.ErrSlotExists)

	err = f.svc.UploadAvailability(f.ctx, "nobody", day)
	assert.ErrorIs(t, err, appointment.ErrUnknownParty)

	err = f.svc.UploadAvailability(f.ctx, "", day)
	assert.True(t, validation.IsError(err))

	err = f.svc.UploadAvailability(f.ctx, "alice", time.Time{})
	assert.True(t, validation.IsError(err))
}

func TestUploadAvailabilityWhileBooked(t *testing.T) {
	f := newFixture(t)
	f.booked(t)

	err := f.svc.UploadAvailability(f.ctx, "Alice", day)
	assert.ErrorIs(t, err, appointment.ErrCaregiverBooked)
	assert.True(t, appointment.IsOutcome(err))
}

func TestReserveConsumesSlotAndDose(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t)

	assert.Equal(t, "ABP2024-01-10", id)
	assert.Empty(t, f.search(t, day))
	assert.Equal(t, 1, f.stock(t, "Pfizer"))

	appts, err := f.svc.ListAppointments(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Bob"})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "Alice", appts[0].CaregiverName)
	assert.Equal(t, "Pfizer", appts[0].VaccineName)
	assert.Equal(t, day, appts[0].Date)

	events := f.store.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, appointment.EventAppointmentReserved, last.EventType)
	require.NotNil(t, last.AppointmentID)
	assert.Equal(t, id, *last.AppointmentID)
}

func TestReserveTwiceIsAlreadyBooked(t *testing.T) {
	f := newFixture(t)
	f.booked(t)

	_, err := f.svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
		Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
	})
	assert.ErrorIs(t, err, appointment.ErrAlreadyBooked)
	assert.Equal(t, 1, f.stock(t, "Pfizer"))
}

func TestReserveWithoutSlot(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "Alice")
	f.patient(t, "Bob")
	f.doses(t, "Pfizer", 1)

	_, err := f.svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
		Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
	})
	assert.ErrorIs(t, err, appointment.ErrSlotUnavailable)
	assert.Equal(t, 1, f.stock(t, "Pfizer"))

	appts, err := f.svc.ListAppointments(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Bob"})
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestReserveRollsBackOnDoseFailure(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "Alice")
	f.patient(t, "Bob")
	f.doses(t, "Pfizer", 0)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "Alice", day))

	_, err := f.svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
		Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
	})
	assert.ErrorIs(t, err, appointment.ErrNoDosesAvailable)

	_, err = f.svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
		Patient: "Bob", Caregiver: "Alice", Vaccine: "Sputnik", Date: day,
	})
	assert.ErrorIs(t, err, appointment.ErrVaccineNotFound)

	assert.Equal(t, []string{"Alice"}, f.search(t, day))
}

func TestReserveStorageFaultLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "Alice")
	f.patient(t, "Bob")
	f.doses(t, "Pfizer", 1)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "Alice", day))

	f.store.FailNextCommit(errors.New("connection reset"))
	_, err := f.svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
		Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
	})
	require.Error(t, err)
	assert.False(t, appointment.IsOutcome(err))

	assert.Equal(t, []string{"Alice"}, f.search(t, day))
	assert.Equal(t, 1, f.stock(t, "Pfizer"))
}

func TestCancelRestoresSlotAndDose(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t)

	vaccine, err := f.svc.CancelAppointment(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Bob"}, id)
	require.NoError(t, err)
	assert.Equal(t, "Pfizer", vaccine)

	assert.Equal(t, []string{"Alice"}, f.search(t, day))
	assert.Equal(t, 2, f.stock(t, "Pfizer"))

	_, err = f.svc.GetAppointment(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Bob"}, id)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestCancelByCaregiver(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t)

	vaccine, err := f.svc.CancelAppointment(f.ctx, appointment.Principal{Role: account.RoleCaregiver, Username: "Alice"}, id)
	require.NoError(t, err)
	assert.Equal(t, "Pfizer", vaccine)
}

func TestCancelRejects(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t)
	f.patient(t, "Mallory")

	_, err := f.svc.CancelAppointment(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Mallory"}, id)
	assert.ErrorIs(t, err, appointment.ErrNotAppointmentOwner)

	_, err = f.svc.CancelAppointment(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Bob"}, "XYZ2024-01-10")
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	_, err = f.svc.CancelAppointment(f.ctx, appointment.Principal{Role: account.RolePatient, Username: "Bob"}, "")
	assert.True(t, validation.IsError(err))

	assert.Empty(t, f.search(t, day))
}

func TestGetAppointmentHidesOthers(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t)

	appt, err := f.svc.GetAppointment(f.ctx, appointment.Principal{Role: account.RoleCaregiver, Username: "Alice"}, id)
	require.NoError(t, err)
	assert.Equal(t, "Bob", appt.PatientName)

	_, err = f.svc.GetAppointment(f.ctx, appointment.Principal{Role: account.RoleCaregiver, Username: "Bob"}, id)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

// slowStore stretches every transaction so concurrent callers overlap on the slot lock.
type slowStore struct {
	*memstore.Store
	delay time.Duration
}

func (s slowStore) InTx(ctx context.Context, fn func(ctx context.Context, l appointment.Ledger) error) error {
	time.Sleep(s.delay)
	return s.Store.InTx(ctx, fn)
}

func (f *fixture) slowService(delay time.Duration) *appointment.Service {
	cfg := config.Config{QueryTimeout: 5 * time.Second}
	return appointment.NewService(slowStore{Store: f.store, delay: delay}, redisclient.NewLocalSlotLocker(5*time.Second), cfg, zap.NewNop())
}

func TestConcurrentReservationsForOneSlot(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "Alice")
	f.doses(t, "Pfizer", 100)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "Alice", day))
	svc := f.slowService(5 * time.Millisecond)

	const patients = 25
	names := make([]string, patients)
	for i := range names {
		names[i] = fmt.Sprintf("patient-%02d", i)
	}
	f.patient(t, names...)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for _, name := range names {
		wg.Add(1)
		go func(patient string) {
			defer wg.Done()
			<-start
			_, err := svc.ReserveAppointment(f.ctx, appointment.ReserveRequest{
				Patient: patient, Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
			})
			if err != nil {
				assert.ErrorIs(t, err, appointment.ErrSlotUnavailable)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(name)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 99, f.stock(t, "Pfizer"))
	assert.Empty(t, f.search(t, day))

	booked, err := f.svc.ListAppointments(f.ctx, appointment.Principal{Role: account.RoleCaregiver, Username: "Alice"})
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}

func TestOverlappingIdenticalReservations(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "Alice")
	f.patient(t, "Bob")
	f.doses(t, "Pfizer", 2)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "Alice", day))
	svc := f.slowService(20 * time.Millisecond)

	req := appointment.ReserveRequest{Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ReserveAppointment(f.ctx, req)
		}()
	}
	wg.Wait()

	var ok, booked int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, appointment.ErrAlreadyBooked):
			booked++
		default:
			t.Errorf("unexpected result: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, booked)
	assert.Equal(t, 1, f.stock(t, "Pfizer"))
}

func TestUploadRecurringAvailability(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "alice")

	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "alice", monday.AddDate(0, 0, 7)))

	result, err := f.svc.UploadRecurringAvailability(f.ctx, "alice", monday, "FREQ=WEEKLY;COUNT=4")
	require.NoError(t, err)

	assert.Len(t, result.Uploaded, 3)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, monday.AddDate(0, 0, 7), result.Skipped[0].Date)
	assert.ErrorIs(t, result.Skipped[0].Reason, appointment.ErrSlotExists)

	for i := 0; i < 4; i++ {
		assert.Equal(t, []string{"alice"}, f.search(t, monday.AddDate(0, 0, 7*i)))
	}

	_, err = f.svc.UploadRecurringAvailability(f.ctx, "alice", monday, "FREQ=NEVER")
	assert.True(t, validation.IsError(err))
}

func TestReserveFirstAvailable(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "zed", "amy")
	f.patient(t, "p1", "p2", "p3")
	f.doses(t, "Moderna", 5)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "zed", day))
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "amy", day))

	first, err := f.svc.ReserveFirstAvailable(f.ctx, "p1", "Moderna", day)
	require.NoError(t, err)
	assert.Equal(t, "amy", first.CaregiverName)
	assert.Equal(t, "apM2024-01-10", first.ID)

	second, err := f.svc.ReserveFirstAvailable(f.ctx, "p2", "Moderna", day)
	require.NoError(t, err)
	assert.Equal(t, "zed", second.CaregiverName)

	_, err = f.svc.ReserveFirstAvailable(f.ctx, "p3", "Moderna", day)
	assert.ErrorIs(t, err, appointment.ErrNoCaregiverAvailable)
}

func TestPrunePastAvailability(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "alice")
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "alice", day.AddDate(0, 0, -1)))
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "alice", day))

	removed, err := f.svc.PrunePastAvailability(f.ctx, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	assert.Empty(t, f.search(t, day.AddDate(0, 0, -1)))
	assert.Equal(t, []string{"alice"}, f.search(t, day))

	removed, err = f.svc.PrunePastAvailability(f.ctx, day)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSearchRequiresDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SearchAvailability(f.ctx, time.Time{})
	assert.True(t, validation.IsError(err))
}

func TestLockWaitGivesUpAtDeadline(t *testing.T) {
	f := newFixture(t)
	f.caregiver(t, "Alice")
	f.patient(t, "Bob")
	f.doses(t, "Pfizer", 1)
	require.NoError(t, f.svc.UploadAvailability(f.ctx, "Alice", day))

	locker := redisclient.NewLocalSlotLocker(5 * time.Second)
	svc := appointment.NewService(f.store, locker, config.Config{QueryTimeout: 100 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	err := locker.WithSlotLock(f.ctx, "Alice|2024-01-10", func(ctx context.Context) error {
		_, err := svc.ReserveAppointment(ctx, appointment.ReserveRequest{
			Patient: "Bob", Caregiver: "Alice", Vaccine: "Pfizer", Date: day,
		})
		return err
	})
	assert.ErrorIs(t, err, appointment.ErrSlotBeingBooked)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, []string{"Alice"}, f.search(t, day))
}
