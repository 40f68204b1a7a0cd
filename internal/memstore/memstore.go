// Package memstore keeps accounts, ledgers and vaccine stock in process memory.
//
// Transactions run one at a time against a private copy of the state that replaces
// the shared state only on success, so a failed or cancelled transaction leaves
// nothing behind. Constraint checks mirror the Postgres schema.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
)

type slotID struct {
	caregiver string
	date      string
}

type state struct {
	accounts     map[account.Role]map[string]account.Account
	slots        map[slotID]struct{}
	appointments map[string]appointment.Appointment
	vaccines     map[string]int
}

func newState() *state {
	return &state{
		accounts: map[account.Role]map[string]account.Account{
			account.RoleCaregiver: {},
			account.RolePatient:   {},
		},
		slots:        map[slotID]struct{}{},
		appointments: map[string]appointment.Appointment{},
		vaccines:     map[string]int{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for role, byName := range s.accounts {
		for name, acct := range byName {
			c.accounts[role][name] = acct
		}
	}
	for k := range s.slots {
		c.slots[k] = struct{}{}
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.vaccines {
		c.vaccines[k] = v
	}
	return c
}

type Store struct {
	mu        sync.Mutex
	st        *state
	commitErr error

	eventsMu sync.Mutex
	events   []appointment.EventLog
}

func New() *Store {
	return &Store{st: newState()}
}

// FailNextCommit makes the next read-write transaction run to completion and then
// fail with err instead of committing.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// Events returns the audit rows written so far.
func (s *Store) Events() []appointment.EventLog {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	return append([]appointment.EventLog(nil), s.events...)
}

// Accounts

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byName := s.st.accounts[acct.Role]
	if _, taken := byName[acct.Username]; taken {
		return account.ErrDuplicateAccount
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	byName[acct.Username] = acct
	return nil
}

func (s *Store) GetAccount(ctx context.Context, role account.Role, username string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.st.accounts[role][username]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return &acct, nil
}

// Vaccines

func (s *Store) ListVaccines(ctx context.Context) ([]inventory.Vaccine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vaccines := make([]inventory.Vaccine, 0, len(s.st.vaccines))
	for name, doses := range s.st.vaccines {
		vaccines = append(vaccines, inventory.Vaccine{Name: name, Doses: doses})
	}
	sort.Slice(vaccines, func(i, j int) bool { return vaccines[i].Name < vaccines[j].Name })
	return vaccines, nil
}

func (s *Store) GetVaccine(ctx context.Context, name string) (*inventory.Vaccine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doses, ok := s.st.vaccines[name]
	if !ok {
		return nil, inventory.ErrVaccineNotFound
	}
	return &inventory.Vaccine{Name: name, Doses: doses}, nil
}

func (s *Store) AddDoses(ctx context.Context, name string, doses int) (*inventory.Vaccine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.vaccines[name] += doses
	return &inventory.Vaccine{Name: name, Doses: s.st.vaccines[name]}, nil
}

// Transactions

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, l appointment.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(ctx, &ledger{st: work}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		return err
	}

	s.st = work
	return nil
}

func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, l appointment.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// writes made by fn land in a copy that is dropped
	return fn(ctx, &ledger{st: s.st.clone()})
}

func (s *Store) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, ev)
	return nil
}
