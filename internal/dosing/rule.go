package dosing

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidRule indica una regla malformada (lista vacía, hora fuera de
	// rango, intervalo no positivo o ventana invertida). No hay recovery:
	// una regla rota no tiene default razonable.
	ErrInvalidRule = errors.New("invalid dosing rule")

	// ErrInvalidRange indica rangeEnd < rangeStart en una proyección.
	// No invertimos los límites en silencio.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrOccurrenceCeiling indica que la proyección superaría el techo de
	// seguridad. Se propaga en vez de truncar, para que el caller nunca
	// confunda un schedule incompleto con uno completo.
	ErrOccurrenceCeiling = errors.New("occurrence ceiling exceeded")
)

// Rule es la unión etiquetada de reglas de dosificación. Interface sellada:
// solo Explicit e Interval la implementan (método no exportado).
type Rule interface {
	// validate devuelve ErrInvalidRule (envuelto) si la regla está malformada.
	validate() error
	// daySlots materializa los horarios de un día. Asume regla ya validada.
	daySlots() []ClockTime
}

// Explicit es una lista de horarios diarios provista por el caller.
// Compile la deduplica y ordena; no recorta valores fuera de [0,1439],
// eso es error del caller y se rechaza.
type Explicit struct {
	Times []ClockTime
}

// Interval repite una dosis cada EveryMinutes dentro de la ventana diaria
// [WindowStart, WindowEnd], ambos inclusive. La primera dosis es siempre
// WindowStart; la última es el mayor horario <= WindowEnd.
type Interval struct {
	EveryMinutes int
	WindowStart  ClockTime
	WindowEnd    ClockTime
}

func (r Explicit) validate() error {
	if len(r.Times) == 0 {
		return fmt.Errorf("%w: explicit rule needs at least one time", ErrInvalidRule)
	}
	for _, t := range r.Times {
		if !t.Valid() {
			return fmt.Errorf("%w: time %d out of range [0,1439]", ErrInvalidRule, int(t))
		}
	}
	return nil
}

func (r Explicit) daySlots() []ClockTime {
	seen := make(map[ClockTime]struct{}, len(r.Times))
	out := make([]ClockTime, 0, len(r.Times))
	for _, t := range r.Times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Interval) validate() error {
	if r.EveryMinutes <= 0 {
		return fmt.Errorf("%w: every_minutes must be > 0, got %d", ErrInvalidRule, r.EveryMinutes)
	}
	if !r.WindowStart.Valid() || !r.WindowEnd.Valid() {
		return fmt.Errorf("%w: window out of range [0,1439]", ErrInvalidRule)
	}
	if r.WindowEnd < r.WindowStart {
		return fmt.Errorf("%w: window end %s before start %s", ErrInvalidRule, r.WindowEnd, r.WindowStart)
	}
	return nil
}

func (r Interval) daySlots() []ClockTime {
	// El corte se decide ANTES de sumar el paso: con EveryMinutes enorme,
	// t += paso desbordaría y rompería el orden ascendente de los slots.
	// WindowStart == WindowEnd produce exactamente un slot.
	step := ClockTime(r.EveryMinutes)
	out := make([]ClockTime, 0, int(r.WindowEnd-r.WindowStart)/r.EveryMinutes+1)
	for t := r.WindowStart; ; t += step {
		out = append(out, t)
		if r.WindowEnd-t < step {
			break
		}
	}
	return out
}

// Slots es la salida compilada de una regla: los horarios de un día,
// ascendentes y sin duplicados. Siempre tiene al menos una entrada
// para una regla válida.
type Slots []ClockTime

// Compile valida la regla y materializa los horarios del día. Es determinista
// e idempotente: misma regla, misma salida. Todos los consumidores aguas
// abajo pueden asumir orden ascendente sin duplicados.
func Compile(r Rule) (Slots, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil rule", ErrInvalidRule)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return Slots(r.daySlots()), nil
}
