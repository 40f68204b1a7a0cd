package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	redisclient "github.com/hackgods/vaccine-appointment-scheduling/internal/redis"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/validation"
)

const (
	recurrenceHorizonDays = 366
	maxRecurringDates     = 366
)

var (
	ErrAlreadyBooked        = errors.New("already have an appointment at this time")
	ErrSlotUnavailable      = errors.New("caregiver is not available on this date")
	ErrCaregiverBooked      = errors.New("caregiver already has an appointment on this date")
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrNotAppointmentOwner  = errors.New("appointment belongs to someone else")
	ErrNoCaregiverAvailable = errors.New("no caregiver available on this date")
)

var outcomes = []error{
	ErrAppointmentNotFound,
	ErrSlotExists,
	ErrVaccineNotFound,
	ErrNoDosesAvailable,
	ErrUnknownParty,
	ErrAlreadyBooked,
	ErrSlotUnavailable,
	ErrCaregiverBooked,
	ErrSlotBeingBooked,
	ErrNotAppointmentOwner,
	ErrNoCaregiverAvailable,
}

// IsOutcome reports whether err is a named, side-effect free result the caller can
// act on. Any other error from the service is a storage fault.
func IsOutcome(err error) bool {
	if err == nil {
		return false
	}
	if validation.IsError(err) {
		return true
	}
	for _, target := range outcomes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type slotInput struct {
	Caregiver string    `validate:"required,max=255"`
	Date      time.Time `validate:"required"`
}

// ReserveRequest is the input of ReserveAppointment.
type ReserveRequest struct {
	Patient   string    `validate:"required,max=255"`
	Caregiver string    `validate:"required,max=255"`
	Vaccine   string    `validate:"required,max=255"`
	Date      time.Time `validate:"required"`
}

// RecurringResult lists what UploadRecurringAvailability did per date.
type RecurringResult struct {
	Uploaded []time.Time
	Skipped  []SkippedDate
}

type SkippedDate struct {
	Date   time.Time
	Reason error
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	timeout time.Duration
	log     *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		timeout: cfg.QueryTimeout,
		log:     log.Named("appointment"),
	}
}

// UploadAvailability opens a slot for caregiver on date.
func (s *Service) UploadAvailability(ctx context.Context, caregiver string, date time.Time) error {
	if err := validation.Struct(slotInput{Caregiver: caregiver, Date: date}); err != nil {
		return err
	}
	date = NormalizeDate(date)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.withSlotLock(ctx, caregiver, date, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, l Ledger) error {
			open, err := l.SlotExists(ctx, caregiver, date)
			if err != nil {
				return err
			}
			if open {
				return ErrSlotExists
			}

			booked, err := l.CaregiverBooked(ctx, caregiver, date)
			if err != nil {
				return err
			}
			if booked {
				return ErrCaregiverBooked
			}

			return l.InsertSlot(ctx, AvailabilitySlot{Time: date, Caregiver: caregiver})
		})
	})
	if err != nil {
		return s.classify("upload availability", err)
	}

	s.logEvent(ctx, nil, EventAvailabilityUploaded, map[string]any{
		"caregiver": caregiver,
		"date":      date.Format(DateLayout),
	})
	return nil
}

// UploadRecurringAvailability expands an RRULE (e.g. "FREQ=WEEKLY;BYDAY=MO;COUNT=4")
// from start and uploads every date it yields within a year. Dates that fail with an
// outcome error are skipped; a storage fault stops the batch.
func (s *Service) UploadRecurringAvailability(ctx context.Context, caregiver string, start time.Time, rule string) (*RecurringResult, error) {
	if err := validation.Struct(slotInput{Caregiver: caregiver, Date: start}); err != nil {
		return nil, err
	}
	start = NormalizeDate(start)

	dates, err := expandRule(rule, start)
	if err != nil {
		return nil, err
	}

	result := &RecurringResult{}
	for _, date := range dates {
		err := s.UploadAvailability(ctx, caregiver, date)
		switch {
		case err == nil:
			result.Uploaded = append(result.Uploaded, date)
		case IsOutcome(err):
			result.Skipped = append(result.Skipped, SkippedDate{Date: date, Reason: err})
		default:
			return result, err
		}
	}

	s.log.Info("recurring availability uploaded",
		zap.String("caregiver", caregiver),
		zap.Int("uploaded", len(result.Uploaded)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func expandRule(rule string, start time.Time) ([]time.Time, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, &validation.Error{Fields: map[string]string{"rule": fmt.Sprintf("The rule is invalid: %v.", err)}}
	}
	opt.Dtstart = start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &validation.Error{Fields: map[string]string{"rule": fmt.Sprintf("The rule is invalid: %v.", err)}}
	}

	occurrences := r.Between(start, start.AddDate(0, 0, recurrenceHorizonDays), true)
	if len(occurrences) == 0 {
		return nil, &validation.Error{Fields: map[string]string{"rule": "The rule yields no dates within a year."}}
	}
	if len(occurrences) > maxRecurringDates {
		occurrences = occurrences[:maxRecurringDates]
	}

	dates := make([]time.Time, 0, len(occurrences))
	seen := make(map[time.Time]bool, len(occurrences))
	for _, o := range occurrences {
		d := NormalizeDate(o)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// SearchAvailability lists caregivers with an open slot on date, read from one snapshot.
func (s *Service) SearchAvailability(ctx context.Context, date time.Time) ([]string, error) {
	if date.IsZero() {
		return nil, &validation.Error{Fields: map[string]string{"date": "The date field is required."}}
	}
	date = NormalizeDate(date)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var caregivers []string
	err := s.repo.ReadTx(ctx, func(ctx context.Context, l Ledger) error {
		var err error
		caregivers, err = l.ListSlots(ctx, date)
		return err
	})
	if err != nil {
		return nil, s.classify("search availability", err)
	}

	if caregivers == nil {
		caregivers = []string{}
	}
	return caregivers, nil
}

// ReserveAppointment books caregiver for the patient on date, consuming the slot and
// one dose in the same transaction. It returns the derived appointment ID.
func (s *Service) ReserveAppointment(ctx context.Context, req ReserveRequest) (string, error) {
	if err := validation.Struct(req); err != nil {
		return "", err
	}
	date := NormalizeDate(req.Date)
	id := DeriveID(req.Caregiver, req.Patient, req.Vaccine, date)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.withSlotLock(ctx, req.Caregiver, date, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, l Ledger) error {
			if _, err := l.GetAppointment(ctx, id); err == nil {
				return ErrAlreadyBooked
			} else if !errors.Is(err, ErrAppointmentNotFound) {
				return err
			}

			err := l.InsertAppointment(ctx, Appointment{
				ID:            id,
				CaregiverName: req.Caregiver,
				PatientName:   req.Patient,
				VaccineName:   req.Vaccine,
				Date:          date,
			})
			if err != nil {
				return err
			}

			removed, err := l.DeleteSlot(ctx, req.Caregiver, date)
			if err != nil {
				return err
			}
			if !removed {
				return ErrSlotUnavailable
			}

			return l.TakeDose(ctx, req.Vaccine)
		})
	})
	if err != nil {
		return "", s.classify("reserve appointment", err)
	}

	s.logEvent(ctx, &id, EventAppointmentReserved, map[string]any{
		"caregiver": req.Caregiver,
		"patient":   req.Patient,
		"vaccine":   req.Vaccine,
		"date":      date.Format(DateLayout),
	})
	return id, nil
}

// ReserveFirstAvailable books the first caregiver, in username order, whose slot on
// date can still be taken.
func (s *Service) ReserveFirstAvailable(ctx context.Context, patient, vaccine string, date time.Time) (*Appointment, error) {
	caregivers, err := s.SearchAvailability(ctx, date)
	if err != nil {
		return nil, err
	}

	for _, caregiver := range caregivers {
		req := ReserveRequest{Patient: patient, Caregiver: caregiver, Vaccine: vaccine, Date: date}
		id, err := s.ReserveAppointment(ctx, req)
		switch {
		case err == nil:
			return &Appointment{
				ID:            id,
				CaregiverName: caregiver,
				PatientName:   patient,
				VaccineName:   vaccine,
				Date:          NormalizeDate(date),
			}, nil
		case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotBeingBooked):
			continue
		default:
			return nil, err
		}
	}

	return nil, ErrNoCaregiverAvailable
}

// CancelAppointment deletes the requester's appointment and reopens the caregiver's
// slot. It returns the vaccine of the cancelled appointment.
func (s *Service) CancelAppointment(ctx context.Context, requester Principal, id string) (string, error) {
	if id == "" {
		return "", &validation.Error{Fields: map[string]string{"id": "The id field is required."}}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// the lock key needs the appointment's caregiver and date
	current, err := s.ownedAppointment(ctx, requester, id, ErrNotAppointmentOwner)
	if err != nil {
		return "", s.classify("cancel appointment", err)
	}

	var vaccine string
	err = s.withSlotLock(ctx, current.CaregiverName, current.Date, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, l Ledger) error {
			appt, err := l.GetAppointment(ctx, id)
			if err != nil {
				return err
			}
			if !requester.Owns(appt) {
				return ErrNotAppointmentOwner
			}

			if err := l.DeleteAppointment(ctx, id); err != nil {
				return err
			}

			err = l.InsertSlot(ctx, AvailabilitySlot{Time: appt.Date, Caregiver: appt.CaregiverName})
			if errors.Is(err, ErrSlotExists) {
				return fmt.Errorf("restore availability for %s on %s: slot open while booked", appt.CaregiverName, appt.Date.Format(DateLayout))
			}
			if err != nil {
				return err
			}

			if err := l.ReturnDose(ctx, appt.VaccineName); err != nil && !errors.Is(err, ErrVaccineNotFound) {
				return err
			}

			vaccine = appt.VaccineName
			return nil
		})
	})
	if err != nil {
		return "", s.classify("cancel appointment", err)
	}

	s.logEvent(ctx, &id, EventAppointmentCancelled, map[string]any{
		"requester": requester.Username,
		"role":      requester.Role.String(),
		"vaccine":   vaccine,
	})
	return vaccine, nil
}

// ListAppointments returns the requester's appointments ordered by date.
func (s *Service) ListAppointments(ctx context.Context, requester Principal) ([]Appointment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result []Appointment
	err := s.repo.ReadTx(ctx, func(ctx context.Context, l Ledger) error {
		var err error
		result, err = l.ListAppointments(ctx, requester.Role, requester.Username)
		return err
	})
	if err != nil {
		return nil, s.classify("list appointments", err)
	}

	if result == nil {
		result = []Appointment{}
	}
	return result, nil
}

// GetAppointment returns one of the requester's appointments. Appointments owned by
// someone else are reported as not found.
func (s *Service) GetAppointment(ctx context.Context, requester Principal, id string) (*Appointment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	appt, err := s.ownedAppointment(ctx, requester, id, ErrAppointmentNotFound)
	if err != nil {
		return nil, s.classify("get appointment", err)
	}
	return appt, nil
}

// PrunePastAvailability removes slots dated before now's calendar day. Past slots can
// never be booked.
func (s *Service) PrunePastAvailability(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	today := NormalizeDate(now)

	var removed int64
	err := s.repo.InTx(ctx, func(ctx context.Context, l Ledger) error {
		var err error
		removed, err = l.DeleteSlotsBefore(ctx, today)
		return err
	})
	if err != nil {
		return 0, s.classify("prune availability", err)
	}

	if removed > 0 {
		s.logEvent(ctx, nil, EventAvailabilityPruned, map[string]any{
			"before":  today.Format(DateLayout),
			"removed": removed,
		})
	}
	return removed, nil
}

func (s *Service) ownedAppointment(ctx context.Context, requester Principal, id string, notOwned error) (*Appointment, error) {
	var appt *Appointment
	err := s.repo.ReadTx(ctx, func(ctx context.Context, l Ledger) error {
		var err error
		appt, err = l.GetAppointment(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !requester.Owns(appt) {
		return nil, notOwned
	}
	return appt, nil
}

func (s *Service) withSlotLock(ctx context.Context, caregiver string, date time.Time, fn func(ctx context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, slotKey(caregiver, date), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return db.WithTimeout(ctx, s.timeout)
}

// classify passes outcomes through untouched and wraps storage faults.
func (s *Service) classify(op string, err error) error {
	if IsOutcome(err) {
		return err
	}
	s.log.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) logEvent(ctx context.Context, appointmentID *string, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	// the audit row outlives the operation's own deadline
	evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.repo.InsertEvent(evCtx, ev); err != nil {
		s.log.Warn("failed to insert event log", zap.String("event", eventType), zap.Error(err))
	}
}
