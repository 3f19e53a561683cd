package medications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"child-health-history/internal/dosing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// defaultScheduleDays es el horizonte de producto cuando el cuidador no
// define ni fecha de fin ni cuántos días materializar.
const defaultScheduleDays = 14

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Name         string
	Dose         float64
	DoseUnit     string
	Rule         dosing.Rule
	StartDate    dosing.Date
	EndDate      *dosing.Date
	ScheduleDays int
	Notes        string
}

func (in CreateInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Dose, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&in.DoseUnit, validation.Required, validation.Length(1, 20)),
		validation.Field(&in.ScheduleDays, validation.Min(1), validation.Max(60)),
	)
}

func (s *Service) Create(ctx context.Context, childID string, in CreateInput) (Medication, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return Medication{}, ErrInvalidInput
	}

	in.Name = strings.TrimSpace(in.Name)
	in.DoseUnit = strings.TrimSpace(in.DoseUnit)
	if in.ScheduleDays == 0 {
		in.ScheduleDays = defaultScheduleDays
	}

	if err := in.validate(); err != nil {
		return Medication{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if in.StartDate.IsZero() {
		return Medication{}, fmt.Errorf("%w: start_date required", ErrInvalidInput)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return Medication{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
	}

	// Compilar valida la regla de una: una regla rota no se persiste nunca.
	if _, err := dosing.Compile(in.Rule); err != nil {
		return Medication{}, err
	}

	now := s.now()
	m := Medication{
		ID:           uuid.NewString(),
		ChildID:      childID,
		Name:         in.Name,
		Dose:         in.Dose,
		DoseUnit:     in.DoseUnit,
		Rule:         in.Rule,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		ScheduleDays: in.ScheduleDays,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByChild(ctx context.Context, childID string) ([]Medication, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByChild(ctx, childID)
}

// PatchEndDate distingue "no enviado" de "null = tratamiento abierto".
type PatchEndDate struct {
	Present bool
	Value   *dosing.Date
}

type UpdateInput struct {
	// Punteros para PATCH real: nil = no tocar. Rule nil = conservar la actual.
	Name         *string
	Dose         *float64
	DoseUnit     *string
	Rule         dosing.Rule
	StartDate    *dosing.Date
	EndDate      PatchEndDate
	ScheduleDays *int
	Notes        *string
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Medication{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		current.Name = name
	}
	if in.Dose != nil {
		if *in.Dose <= 0 {
			return Medication{}, fmt.Errorf("%w: dose must be > 0", ErrInvalidInput)
		}
		current.Dose = *in.Dose
	}
	if in.DoseUnit != nil {
		unit := strings.TrimSpace(*in.DoseUnit)
		if unit == "" {
			return Medication{}, fmt.Errorf("%w: dose_unit cannot be empty", ErrInvalidInput)
		}
		current.DoseUnit = unit
	}
	if in.Rule != nil {
		current.Rule = in.Rule
	}
	if in.StartDate != nil {
		current.StartDate = *in.StartDate
	}
	if in.EndDate.Present {
		current.EndDate = in.EndDate.Value
	}
	if in.ScheduleDays != nil {
		if *in.ScheduleDays < 1 || *in.ScheduleDays > 60 {
			return Medication{}, fmt.Errorf("%w: schedule_days must be in [1,60]", ErrInvalidInput)
		}
		current.ScheduleDays = *in.ScheduleDays
	}
	if in.Notes != nil {
		current.Notes = strings.TrimSpace(*in.Notes)
	}

	// Validar el estado final, no los parches sueltos.
	if current.StartDate.IsZero() {
		return Medication{}, fmt.Errorf("%w: start_date required", ErrInvalidInput)
	}
	if current.EndDate != nil && current.EndDate.Before(current.StartDate) {
		return Medication{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
	}
	if _, err := dosing.Compile(current.Rule); err != nil {
		return Medication{}, err
	}

	current.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, current); err != nil {
		return Medication{}, err
	}
	return current, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return ErrNotFound
	}
	return nil
}

// ProjectSchedule proyecta las ocurrencias del medicamento sobre [from, to].
// El recorte al rango efectivo y los errores de rango/techo vienen del motor.
func (s *Service) ProjectSchedule(ctx context.Context, id string, from, to dosing.Date) (Medication, []dosing.Occurrence, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return Medication{}, nil, err
	}

	occ, err := dosing.Project(m.Schedule(), from, to)
	if err != nil {
		return Medication{}, nil, err
	}
	return m, occ, nil
}

// DayStatus es la vista "¿cómo venimos hoy?" de un medicamento.
type DayStatus struct {
	Date   dosing.Date
	At     dosing.ClockTime
	Active bool
	Slots  dosing.Slots
	Status dosing.Status
}

// StatusAt compila la regla y clasifica el día date a la hora at. date y at
// vienen del caller ya localizados; el service no lee el reloj para esto.
func (s *Service) StatusAt(ctx context.Context, id string, date dosing.Date, at dosing.ClockTime) (Medication, DayStatus, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return Medication{}, DayStatus{}, err
	}

	slots, err := dosing.Compile(m.Rule)
	if err != nil {
		return Medication{}, DayStatus{}, err
	}

	return m, DayStatus{
		Date:   date,
		At:     at,
		Active: m.ActiveOn(date),
		Slots:  slots,
		Status: dosing.Classify(slots, at),
	}, nil
}
