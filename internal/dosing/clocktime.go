// Package dosing implementa el motor de horarios de medicación: compila una
// regla de dosificación en los horarios del día, los proyecta sobre rangos de
// fechas y clasifica dosis pasadas/próximas respecto a un "now" que siempre
// provee el caller (el motor nunca lee el reloj ni guarda estado).
//
// Es deliberadamente un módulo standalone sin dependencias: toda la validación
// de entrada a nivel API vive en los services, no acá.
package dosing

import (
	"errors"
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// ClockTime es una hora del día con resolución de minutos, expresada como
// minutos desde la medianoche local (0..1439). La localización de timezone es
// responsabilidad del caller; el motor compara enteros y nada más.
type ClockTime int

// ParseClockTime parsea "HH:MM" en formato 24h. Estricto: cinco caracteres
// exactos y ambos campos numéricos ("12:3a" no es 12:03).
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("clock time must be HH:MM, got %q", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("clock time must be HH:MM, got %q", s)
	}
	return ClockTimeOf(t), nil
}

// ClockTimeOf extrae la hora del día de un time.Time ya localizado.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// Valid indica si el valor cae en [0, 1439].
func (t ClockTime) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Date es una fecha calendario pura (sin hora ni timezone).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate arma una fecha normalizada (ej: 32 de enero => 1 de febrero).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parsea "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, errors.New("date must be YYYY-MM-DD")
	}
	return DateOf(t), nil
}

// DateOf toma la parte de fecha de un time.Time ya localizado.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time ancla la fecha a medianoche UTC; solo para aritmética interna.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays suma n días calendario (n puede ser negativo).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil devuelve cuántos días hay de d hasta o (negativo si o es anterior).
func (d Date) DaysUntil(o Date) int {
	return int(o.Time().Sub(d.Time()) / (24 * time.Hour))
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
