package children

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
	Name      string
	Sex       string
	BirthDate *time.Time
	BloodType string
	Allergies string
	Notes     string
}

func (in CreateInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Sex, validation.In(sexValues()...)),
		validation.Field(&in.BloodType, validation.In(bloodTypeValues()...)),
	)
}

func (s *Service) Create(ctx context.Context, caregiverUserID string, in CreateInput) (Child, error) {
	if strings.TrimSpace(caregiverUserID) == "" {
		return Child{}, ErrInvalidInput
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Sex = strings.TrimSpace(in.Sex)
	in.BloodType = strings.TrimSpace(in.BloodType)

	if err := in.validate(); err != nil {
		return Child{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	sex := Sex(in.Sex)
	if sex == "" {
		sex = SexUnspecified
	}

	now := s.now()
	c := Child{
		ID:              uuid.NewString(),
		CaregiverUserID: caregiverUserID,
		Name:            in.Name,
		Sex:             sex,
		BirthDate:       in.BirthDate,
		BloodType:       BloodType(in.BloodType),
		Allergies:       strings.TrimSpace(in.Allergies),
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return Child{}, err
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Child, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Child{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]Child, error) {
	return s.repo.ListByCaregiver(ctx, caregiverUserID)
}

// PatchDate distingue "no enviado" (Present=false) de "enviado null"
// (Present=true, Value=nil) para poder limpiar birth_date vía PATCH.
type PatchDate struct {
	Present bool
	Value   *time.Time
}

type UpdateProfileInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name      *string
	Sex       *string
	BirthDate PatchDate
	BloodType *string
	Allergies *string
	Notes     *string
}

func (s *Service) UpdateProfile(ctx context.Context, childID string, in UpdateProfileInput) (Child, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return Child{}, ErrInvalidInput
	}

	current, err := s.repo.GetByID(ctx, childID)
	if err != nil {
		return Child{}, ErrNotFound
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Child{}, ErrInvalidInput
		}
		current.Name = name
	}
	if in.Sex != nil {
		sex := Sex(strings.TrimSpace(*in.Sex))
		switch sex {
		case SexMale, SexFemale, SexUnspecified:
			current.Sex = sex
		default:
			return Child{}, fmt.Errorf("%w: unknown sex %q", ErrInvalidInput, sex)
		}
	}
	if in.BirthDate.Present {
		current.BirthDate = in.BirthDate.Value
	}
	if in.BloodType != nil {
		bt := strings.TrimSpace(*in.BloodType)
		if bt != "" && !validBloodType(BloodType(bt)) {
			return Child{}, fmt.Errorf("%w: unknown blood type %q", ErrInvalidInput, bt)
		}
		current.BloodType = BloodType(bt)
	}
	if in.Allergies != nil {
		current.Allergies = strings.TrimSpace(*in.Allergies)
	}
	if in.Notes != nil {
		current.Notes = strings.TrimSpace(*in.Notes)
	}

	current.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, current); err != nil {
		return Child{}, err
	}
	return current, nil
}

func sexValues() []any {
	return []any{"", string(SexMale), string(SexFemale), string(SexUnspecified)}
}

func bloodTypeValues() []any {
	return []any{
		"",
		string(BloodAPos), string(BloodANeg),
		string(BloodBPos), string(BloodBNeg),
		string(BloodABPos), string(BloodABNeg),
		string(BloodOPos), string(BloodONeg),
	}
}

func validBloodType(bt BloodType) bool {
	switch bt {
	case BloodAPos, BloodANeg, BloodBPos, BloodBNeg, BloodABPos, BloodABNeg, BloodOPos, BloodONeg:
		return true
	default:
		return false
	}
}
