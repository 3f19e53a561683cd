package children

import "time"

// Sex según lo carga el cuidador.
// @Enum male, female, unspecified
type Sex string

const (
	SexMale        Sex = "male"
	SexFemale      Sex = "female"
	SexUnspecified Sex = "unspecified"
)

// BloodType define los grupos sanguíneos soportados.
type BloodType string

const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// Child representa el perfil de un niño/a registrado por su cuidador principal.
type Child struct {
	ID              string
	CaregiverUserID string

	Name string
	Sex  Sex

	BirthDate *time.Time
	BloodType BloodType
	Allergies string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
