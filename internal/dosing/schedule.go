package dosing

import "fmt"

// OccurrenceCeiling es el techo de ocurrencias que puede producir una
// proyección: 60 días por 1440 slots. Se chequea antes de materializar nada
// para que una combinación patológica de fechas/intervalo no aloque memoria
// sin límite.
const OccurrenceCeiling = 60 * minutesPerDay

// Schedule describe el calendario de un medicamento: la regla, el rango de
// vigencia y cuántos días materializar cuando no hay fecha de fin.
type Schedule struct {
	Rule      Rule
	StartDate Date

	// EndDate es inclusive. nil = tratamiento abierto, acotado por ScheduleDays.
	EndDate *Date

	// ScheduleDays (1..60) solo aplica con EndDate nil. El service que arma el
	// Schedule es quien valida el rango; un valor no positivo acá simplemente
	// produce un rango efectivo vacío.
	ScheduleDays int
}

// ActiveOn indica si el medicamento está vigente en la fecha dada.
// Es una propiedad derivada: se recalcula siempre, nunca se persiste.
func (s Schedule) ActiveOn(today Date) bool {
	if today.Before(s.StartDate) {
		return false
	}
	if s.EndDate != nil && today.After(*s.EndDate) {
		return false
	}
	return true
}

// EffectiveEnd es el último día materializable: EndDate si existe,
// si no StartDate + ScheduleDays - 1.
func (s Schedule) EffectiveEnd() Date {
	if s.EndDate != nil {
		return *s.EndDate
	}
	return s.StartDate.AddDays(s.ScheduleDays - 1)
}

// Occurrence es un par concreto (fecha, horario). No lleva estado propio:
// tomada/pendiente se calcula siempre contra "now" con Classify, nunca se
// guarda en la ocurrencia.
type Occurrence struct {
	Date Date
	Slot ClockTime
}

// Project expande los horarios diarios del schedule sobre el rango pedido,
// en orden fecha-mayor / slot-menor. El rango se recorta en silencio al rango
// efectivo [StartDate, EffectiveEnd]; si no intersecta, devuelve vacío sin
// error. Es computación pura: mismas entradas, misma salida.
func Project(s Schedule, rangeStart, rangeEnd Date) ([]Occurrence, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, fmt.Errorf("%w: %s before %s", ErrInvalidRange, rangeEnd, rangeStart)
	}

	slots, err := Compile(s.Rule)
	if err != nil {
		return nil, err
	}

	from, to := rangeStart, rangeEnd
	if from.Before(s.StartDate) {
		from = s.StartDate
	}
	if end := s.EffectiveEnd(); to.After(end) {
		to = end
	}
	if to.Before(from) {
		return []Occurrence{}, nil
	}

	days := from.DaysUntil(to) + 1
	if days*len(slots) > OccurrenceCeiling {
		return nil, fmt.Errorf("%w: %d days x %d slots", ErrOccurrenceCeiling, days, len(slots))
	}

	out := make([]Occurrence, 0, days*len(slots))
	d := from
	for i := 0; i < days; i++ {
		for _, t := range slots {
			out = append(out, Occurrence{Date: d, Slot: t})
		}
		d = d.AddDays(1)
	}
	return out, nil
}
