// Package inventory keeps vaccine dose counts.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/validation"
)

var (
	ErrVaccineNotFound  = errors.New("vaccine not found")
	ErrNoDosesAvailable = errors.New("no doses left for this vaccine")
)

type Vaccine struct {
	Name  string `json:"name" yaml:"name"`
	Doses int    `json:"doses" yaml:"doses"`
}

type Repository interface {
	// ListVaccines returns every vaccine ordered by name.
	ListVaccines(ctx context.Context) ([]Vaccine, error)
	GetVaccine(ctx context.Context, name string) (*Vaccine, error)
	// AddDoses creates the vaccine when missing and returns the new stock.
	AddDoses(ctx context.Context, name string, doses int) (*Vaccine, error)
}

type addDosesInput struct {
	Name  string `validate:"required,max=255"`
	Doses int    `validate:"gt=0"`
}

type Service struct {
	repo    Repository
	timeout time.Duration
	log     *zap.Logger
}

func NewService(repo Repository, timeout time.Duration, log *zap.Logger) *Service {
	return &Service{repo: repo, timeout: timeout, log: log.Named("inventory")}
}

// ListAvailable returns vaccines that still have doses.
func (s *Service) ListAvailable(ctx context.Context) ([]Vaccine, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	all, err := s.repo.ListVaccines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}

	available := make([]Vaccine, 0, len(all))
	for _, v := range all {
		if v.Doses > 0 {
			available = append(available, v)
		}
	}
	return available, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Vaccine, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.repo.GetVaccine(ctx, name)
	if err != nil {
		if errors.Is(err, ErrVaccineNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get vaccine: %w", err)
	}
	return v, nil
}

// AddDoses adds stock, registering the vaccine on first use.
func (s *Service) AddDoses(ctx context.Context, name string, doses int) (*Vaccine, error) {
	if err := validation.Struct(addDosesInput{Name: name, Doses: doses}); err != nil {
		return nil, err
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.repo.AddDoses(ctx, name, doses)
	if err != nil {
		return nil, fmt.Errorf("add doses: %w", err)
	}

	s.log.Info("doses added", zap.String("vaccine", name), zap.Int("added", doses), zap.Int("doses", v.Doses))
	return v, nil
}
