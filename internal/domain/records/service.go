package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

const defaultListLimit = 100

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
	Type  RecordType
	Title string
	Notes string
	DueAt *time.Time
	Value string
	Unit  string
}

func (in CreateInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Type, validation.Required, validation.In(typeValues()...)),
		validation.Field(&in.Title, validation.Required, validation.Length(1, 160)),
		validation.Field(&in.Notes, validation.Length(0, 2000)),
	)
}

func (s *Service) Create(ctx context.Context, childID, createdBy string, in CreateInput) (Record, error) {
	childID = strings.TrimSpace(childID)
	createdBy = strings.TrimSpace(createdBy)
	if childID == "" || createdBy == "" {
		return Record{}, ErrInvalidInput
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Value = strings.TrimSpace(in.Value)
	in.Unit = strings.TrimSpace(in.Unit)

	if err := in.validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	// Una medición sin valor no dice nada.
	if in.Type == TypeMeasurement && in.Value == "" {
		return Record{}, fmt.Errorf("%w: measurement requires value", ErrInvalidInput)
	}

	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		ChildID:   childID,
		Type:      in.Type,
		Title:     in.Title,
		Notes:     strings.TrimSpace(in.Notes),
		DueAt:     in.DueAt,
		Value:     in.Value,
		Unit:      in.Unit,
		Status:    StatusPending,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidInput
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *Service) ListByChild(ctx context.Context, childID string, f ListFilter) ([]Record, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, ErrInvalidInput
	}
	if f.Type != "" && !validType(f.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, f.Type)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: to before from", ErrInvalidInput)
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	return s.repo.ListByChild(ctx, childID, f)
}

// SetStatus mueve el flag manual. Cualquier estado válido es alcanzable desde
// cualquier otro: volver a pending deshace un applied/skipped equivocado.
func (s *Service) SetStatus(ctx context.Context, id string, status RecordStatus, appliedAt *time.Time) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidInput
	}
	if !validStatus(status) {
		return Record{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, ErrNotFound
	}

	now := s.now()
	rec.Status = status
	switch status {
	case StatusApplied:
		if appliedAt != nil {
			rec.AppliedAt = appliedAt
		} else {
			rec.AppliedAt = &now
		}
	default:
		// pending/skipped limpian la fecha de aplicación
		rec.AppliedAt = nil
	}
	rec.UpdatedAt = now

	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func typeValues() []any {
	return []any{TypeVaccine, TypeAppointment, TypeMeasurement, TypeNote}
}

func validType(t RecordType) bool {
	switch t {
	case TypeVaccine, TypeAppointment, TypeMeasurement, TypeNote:
		return true
	}
	return false
}

func validStatus(st RecordStatus) bool {
	switch st {
	case StatusPending, StatusApplied, StatusSkipped:
		return true
	}
	return false
}
