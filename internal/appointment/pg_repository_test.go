package appointment_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
	redisclient "github.com/hackgods/vaccine-appointment-scheduling/internal/redis"
)

func connectTestPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.MigrateUp(pool))
	return pool
}

func TestPostgresReserveAndCancel(t *testing.T) {
	pool := connectTestPostgres(t)
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	accounts := account.NewPgRepository(pool)
	stock := inventory.NewPgRepository(pool)
	svc := appointment.NewService(appointment.NewPgRepository(pool), redisclient.NewLocalSlotLocker(5*time.Second),
		config.Config{QueryTimeout: 5 * time.Second}, log)

	// unique names keep reruns against the same database independent
	run := uuid.NewString()[:8]
	caregiver, patient, vaccine := "cg-"+run, "pt-"+run, "vx-"+run
	date := time.Date(2090, 1, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, accounts.CreateAccount(ctx, account.Account{Role: account.RoleCaregiver, Username: caregiver, Salt: []byte{1}, Hash: []byte{1}}))
	require.NoError(t, accounts.CreateAccount(ctx, account.Account{Role: account.RolePatient, Username: patient, Salt: []byte{1}, Hash: []byte{1}}))
	_, err := stock.AddDoses(ctx, vaccine, 1)
	require.NoError(t, err)

	require.NoError(t, svc.UploadAvailability(ctx, caregiver, date))
	assert.ErrorIs(t, svc.UploadAvailability(ctx, caregiver, date), appointment.ErrSlotExists)

	id, err := svc.ReserveAppointment(ctx, appointment.ReserveRequest{Patient: patient, Caregiver: caregiver, Vaccine: vaccine, Date: date})
	require.NoError(t, err)
	assert.Equal(t, appointment.DeriveID(caregiver, patient, vaccine, date), id)

	v, err := stock.GetVaccine(ctx, vaccine)
	require.NoError(t, err)
	assert.Zero(t, v.Doses)

	caregivers, err := svc.SearchAvailability(ctx, date)
	require.NoError(t, err)
	assert.NotContains(t, caregivers, caregiver)

	got, err := svc.CancelAppointment(ctx, appointment.Principal{Role: account.RolePatient, Username: patient}, id)
	require.NoError(t, err)
	assert.Equal(t, vaccine, got)

	caregivers, err = svc.SearchAvailability(ctx, date)
	require.NoError(t, err)
	assert.Contains(t, caregivers, caregiver)

	v, err = stock.GetVaccine(ctx, vaccine)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Doses)
}

func TestPostgresConcurrentReservations(t *testing.T) {
	pool := connectTestPostgres(t)
	ctx := context.Background()

	accounts := account.NewPgRepository(pool)
	stock := inventory.NewPgRepository(pool)
	svc := appointment.NewService(appointment.NewPgRepository(pool), redisclient.NewLocalSlotLocker(5*time.Second),
		config.Config{QueryTimeout: 5 * time.Second}, zaptest.NewLogger(t))

	run := uuid.NewString()[:8]
	caregiver, vaccine := "cg-"+run, "vx-"+run
	date := time.Date(2090, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, accounts.CreateAccount(ctx, account.Account{Role: account.RoleCaregiver, Username: caregiver, Salt: []byte{1}, Hash: []byte{1}}))
	_, err := stock.AddDoses(ctx, vaccine, 10)
	require.NoError(t, err)
	require.NoError(t, svc.UploadAvailability(ctx, caregiver, date))

	patients := []string{"a-" + run, "b-" + run, "c-" + run, "d-" + run, "e-" + run}
	for _, p := range patients {
		require.NoError(t, accounts.CreateAccount(ctx, account.Account{Role: account.RolePatient, Username: p, Salt: []byte{1}, Hash: []byte{1}}))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, p := range patients {
		wg.Add(1)
		go func(patient string) {
			defer wg.Done()
			_, err := svc.ReserveAppointment(ctx, appointment.ReserveRequest{Patient: patient, Caregiver: caregiver, Vaccine: vaccine, Date: date})
			if err != nil {
				assert.ErrorIs(t, err, appointment.ErrSlotUnavailable)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	booked, err := svc.ListAppointments(ctx, appointment.Principal{Role: account.RoleCaregiver, Username: caregiver})
	require.NoError(t, err)
	assert.Len(t, booked, 1)

	v, err := stock.GetVaccine(ctx, vaccine)
	require.NoError(t, err)
	assert.Equal(t, 9, v.Doses)
}
