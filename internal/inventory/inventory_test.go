package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/memstore"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/validation"
)

func TestAddDosesCreatesAndAccumulates(t *testing.T) {
	svc := inventory.NewService(memstore.New(), time.Second, zap.NewNop())
	ctx := context.Background()

	v, err := svc.AddDoses(ctx, "Pfizer", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Doses)

	v, err = svc.AddDoses(ctx, "Pfizer", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Doses)

	got, err := svc.Get(ctx, "Pfizer")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Doses)
}

func TestAddDosesRejectsNonPositive(t *testing.T) {
	svc := inventory.NewService(memstore.New(), time.Second, zap.NewNop())

	_, err := svc.AddDoses(context.Background(), "Pfizer", 0)
	assert.True(t, validation.IsError(err))

	_, err = svc.AddDoses(context.Background(), "", 1)
	assert.True(t, validation.IsError(err))
}

func TestListAvailableSkipsEmptyStock(t *testing.T) {
	store := memstore.New()
	svc := inventory.NewService(store, time.Second, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddDoses(ctx, "Moderna", 1)
	require.NoError(t, err)
	_, err = svc.AddDoses(ctx, "Pfizer", 4)
	require.NoError(t, err)

	_, err = store.AddDoses(ctx, "Janssen", 0)
	require.NoError(t, err)

	available, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Vaccine{{Name: "Moderna", Doses: 1}, {Name: "Pfizer", Doses: 4}}, available)
}

func TestGetUnknownVaccine(t *testing.T) {
	svc := inventory.NewService(memstore.New(), time.Second, zap.NewNop())

	_, err := svc.Get(context.Background(), "Sputnik")
	assert.ErrorIs(t, err, inventory.ErrVaccineNotFound)
}

func TestZeroTimeoutMeansNoLimit(t *testing.T) {
	svc := inventory.NewService(memstore.New(), 0, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddDoses(ctx, "Moderna", 4)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "Moderna")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Doses)

	available, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)
}
