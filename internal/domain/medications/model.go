package medications

import (
	"time"

	"child-health-history/internal/dosing"
)

// Medication es un tratamiento registrado por un cuidador para un perfil.
// El estado activo/terminado no se guarda: es derivado de las fechas y se
// recalcula en cada lectura.
type Medication struct {
	ID      string
	ChildID string

	Name     string
	Dose     float64
	DoseUnit string // "ml", "mg", "gotas", etc.

	// Rule es la regla de dosificación tipada (lista explícita o intervalo),
	// reemplaza al viejo "frequency" de texto libre.
	Rule dosing.Rule

	StartDate dosing.Date
	EndDate   *dosing.Date // inclusive; nil = tratamiento abierto

	// ScheduleDays (1..60) acota la materialización cuando EndDate es nil.
	ScheduleDays int

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Schedule arma la vista que consume el motor de horarios.
func (m Medication) Schedule() dosing.Schedule {
	return dosing.Schedule{
		Rule:         m.Rule,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		ScheduleDays: m.ScheduleDays,
	}
}

// ActiveOn indica si el tratamiento está vigente en la fecha dada.
func (m Medication) ActiveOn(today dosing.Date) bool {
	return m.Schedule().ActiveOn(today)
}
