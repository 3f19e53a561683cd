package dosing

// Status resume el día de un medicamento respecto a un "now":
// la última dosis que ya tocaba y la próxima. nil = no existe
// (todavía no arrancó el día / ya no quedan dosis hoy).
type Status struct {
	LastTaken *ClockTime
	NextDue   *ClockTime
}

// Classify asume slots compilados (ascendentes, sin duplicados) y no los
// re-valida: no le pases datos crudos de una regla.
//
// Un slot exactamente igual a now cuenta como tomado, nunca como próximo,
// así una dosis no parpadea entre ambos estados dentro del mismo minuto.
// No cruza medianoche: agotado el día, NextDue queda nil y el rollover
// ("mañana a las HH:MM") es problema de la UI.
//
// Scan lineal: los slots son pocos (<=50 incluso en intervalos degenerados).
func Classify(slots Slots, now ClockTime) Status {
	var st Status
	for _, t := range slots {
		if t <= now {
			v := t
			st.LastTaken = &v
			continue
		}
		v := t
		st.NextDue = &v
		break
	}
	return st
}
