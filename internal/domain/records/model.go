package records

import "time"

// RecordType clasifica la entrada de la historia clínica.
type RecordType string

const (
	TypeVaccine     RecordType = "VACCINE"
	TypeAppointment RecordType = "APPOINTMENT"
	TypeMeasurement RecordType = "MEASUREMENT"
	TypeNote        RecordType = "NOTE"
)

// RecordStatus es un flag manual que mueve el cuidador; no hay máquina de
// estados ni transiciones automáticas.
type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusApplied RecordStatus = "applied"
	StatusSkipped RecordStatus = "skipped"
)

// Record es una entrada de la historia de salud de un perfil: vacuna, turno,
// medición o nota libre.
type Record struct {
	ID      string
	ChildID string

	Type  RecordType
	Title string
	Notes string

	// DueAt: cuándo correspondía (vacuna planificada, turno agendado).
	DueAt *time.Time
	// AppliedAt: cuándo pasó efectivamente. La setea el cuidador al marcar applied.
	AppliedAt *time.Time

	// Value/Unit solo para MEASUREMENT ("9.8" "kg", "74" "cm").
	Value string
	Unit  string

	Status RecordStatus

	// CreatedBy es el usuario que cargó la entrada (dueño o delegado).
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}
