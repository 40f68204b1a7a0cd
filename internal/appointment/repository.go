package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotExists          = errors.New("caregiver is already available on this date")
	ErrVaccineNotFound     = inventory.ErrVaccineNotFound
	ErrNoDosesAvailable    = inventory.ErrNoDosesAvailable
	ErrUnknownParty        = errors.New("caregiver or patient is not registered")
)

// Ledger is the set of availability, appointment and dose operations visible inside
// one transaction. Implementations must not be used after the transaction ends.
type Ledger interface {
	SlotExists(ctx context.Context, caregiver string, date time.Time) (bool, error)
	// InsertSlot returns ErrSlotExists when the slot is already open.
	InsertSlot(ctx context.Context, slot AvailabilitySlot) error
	// DeleteSlot reports whether a slot was removed.
	DeleteSlot(ctx context.Context, caregiver string, date time.Time) (bool, error)
	// ListSlots returns caregiver usernames with an open slot on date, ordered by username.
	ListSlots(ctx context.Context, date time.Time) ([]string, error)
	// DeleteSlotsBefore removes every slot dated strictly before date.
	DeleteSlotsBefore(ctx context.Context, date time.Time) (int64, error)

	// GetAppointment returns ErrAppointmentNotFound when absent.
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	CaregiverBooked(ctx context.Context, caregiver string, date time.Time) (bool, error)
	// InsertAppointment returns ErrAlreadyBooked on an ID clash and ErrSlotUnavailable
	// when the caregiver already has an appointment that date.
	InsertAppointment(ctx context.Context, a Appointment) error
	DeleteAppointment(ctx context.Context, id string) error
	ListAppointments(ctx context.Context, role account.Role, username string) ([]Appointment, error)

	// TakeDose returns ErrVaccineNotFound or ErrNoDosesAvailable.
	TakeDose(ctx context.Context, vaccine string) error
	// ReturnDose returns ErrVaccineNotFound when the vaccine is gone from stock.
	ReturnDose(ctx context.Context, vaccine string) error
}

// Repository hands out transaction-scoped Ledgers.
type Repository interface {
	// InTx runs fn in one read-write transaction, committed only when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error
	// ReadTx runs fn against one consistent read-only snapshot.
	ReadTx(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
