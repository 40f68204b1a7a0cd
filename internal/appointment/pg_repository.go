package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
)

const (
	constraintAppointmentPK       = "appointments_pkey"
	constraintCaregiverDateUnique = "appointments_caregiver_date_key"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error {
	return db.RunInTx(ctx, r.pool, db.ReadWrite, func(tx pgx.Tx) error {
		return fn(ctx, &pgLedger{tx: tx})
	})
}

func (r *PgRepository) ReadTx(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error {
	return db.RunInTx(ctx, r.pool, db.Snapshot, func(tx pgx.Tx) error {
		return fn(ctx, &pgLedger{tx: tx})
	})
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// pgLedger runs every statement on one transaction.
type pgLedger struct {
	tx pgx.Tx
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.CaregiverName,
		&a.PatientName,
		&a.VaccineName,
		&a.Date,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = NormalizeDate(a.Date)
	return &a, nil
}

// Availability ledger

func (l *pgLedger) SlotExists(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM availabilities WHERE time = $1 AND username = $2)
	`, NormalizeDate(date), caregiver).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return exists, nil
}

func (l *pgLedger) InsertSlot(ctx context.Context, slot AvailabilitySlot) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO availabilities (time, username)
		VALUES ($1, $2)
	`, NormalizeDate(slot.Time), slot.Caregiver)
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return ErrSlotExists
		}
		if _, ok := db.IsForeignKeyViolation(err); ok {
			return ErrUnknownParty
		}
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}

func (l *pgLedger) DeleteSlot(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	tag, err := l.tx.Exec(ctx, `
		DELETE FROM availabilities
		WHERE username = $1 AND time = $2
	`, caregiver, NormalizeDate(date))
	if err != nil {
		return false, fmt.Errorf("delete availability: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (l *pgLedger) ListSlots(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := l.tx.Query(ctx, `
		SELECT username
		FROM availabilities
		WHERE time = $1
		ORDER BY username
	`, NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}

	caregivers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan availability: %w", err)
	}
	return caregivers, nil
}

func (l *pgLedger) DeleteSlotsBefore(ctx context.Context, date time.Time) (int64, error) {
	tag, err := l.tx.Exec(ctx, `DELETE FROM availabilities WHERE time < $1`, NormalizeDate(date))
	if err != nil {
		return 0, fmt.Errorf("prune availability: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Appointment ledger

func (l *pgLedger) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	row := l.tx.QueryRow(ctx, `
		SELECT appointment_id, caregiver_name, patient_name, vaccine_name, date, created_at
		FROM appointments
		WHERE appointment_id = $1
	`, id)
	return scanAppointment(row)
}

func (l *pgLedger) CaregiverBooked(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM appointments WHERE caregiver_name = $1 AND date = $2)
	`, caregiver, NormalizeDate(date)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check caregiver appointments: %w", err)
	}
	return exists, nil
}

func (l *pgLedger) InsertAppointment(ctx context.Context, a Appointment) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO appointments (appointment_id, caregiver_name, patient_name, vaccine_name, date, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, a.ID, a.CaregiverName, a.PatientName, a.VaccineName, NormalizeDate(a.Date))
	if err != nil {
		if constraint, ok := db.IsUniqueViolation(err); ok {
			if constraint == constraintCaregiverDateUnique {
				return ErrSlotUnavailable
			}
			return ErrAlreadyBooked
		}
		if constraint, ok := db.IsForeignKeyViolation(err); ok {
			if strings.Contains(constraint, "vaccine") {
				return ErrVaccineNotFound
			}
			return ErrUnknownParty
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (l *pgLedger) DeleteAppointment(ctx context.Context, id string) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM appointments WHERE appointment_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (l *pgLedger) ListAppointments(ctx context.Context, role account.Role, username string) ([]Appointment, error) {
	column := "patient_name"
	if role == account.RoleCaregiver {
		column = "caregiver_name"
	}

	rows, err := l.tx.Query(ctx, `
		SELECT appointment_id, caregiver_name, patient_name, vaccine_name, date, created_at
		FROM appointments
		WHERE `+column+` = $1
		ORDER BY date, appointment_id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Vaccine stock

func (l *pgLedger) TakeDose(ctx context.Context, vaccine string) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE vaccines SET doses = doses - 1
		WHERE name = $1 AND doses > 0
	`, vaccine)
	if err != nil {
		return fmt.Errorf("take dose: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := l.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vaccines WHERE name = $1)`, vaccine).Scan(&exists); err != nil {
		return fmt.Errorf("check vaccine: %w", err)
	}
	if !exists {
		return ErrVaccineNotFound
	}
	return ErrNoDosesAvailable
}

func (l *pgLedger) ReturnDose(ctx context.Context, vaccine string) error {
	tag, err := l.tx.Exec(ctx, `UPDATE vaccines SET doses = doses + 1 WHERE name = $1`, vaccine)
	if err != nil {
		return fmt.Errorf("return dose: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVaccineNotFound
	}
	return nil
}
