package model

import (
	"errors"
	"fmt"
)

// ErrCommitted is returned when a write targets a step the engine has
// already closed. Committed draws are history and cannot be rewritten.
var ErrCommitted = errors.New("step already committed")

// Schedule holds one device's draw per step over the whole horizon. Future
// steps may be set and overwritten freely while planning; once the engine
// commits a step the recorded draw is final.
type Schedule struct {
	draws     []Amps
	committed int
}

// NewSchedule returns an empty schedule covering horizon steps.
func NewSchedule(horizon int) *Schedule {
	return &Schedule{draws: make([]Amps, horizon)}
}

// Horizon is the number of steps the schedule covers.
func (s *Schedule) Horizon() int { return len(s.draws) }

// Committed is the number of steps already closed.
func (s *Schedule) Committed() int { return s.committed }

// At returns the draw recorded for the given step, zero when out of range.
func (s *Schedule) At(step int) Amps {
	if step < 0 || step >= len(s.draws) {
		return 0
	}
	return s.draws[step]
}

// Set records a draw for a step that has not been committed yet.
func (s *Schedule) Set(step int, a Amps) error {
	if step < 0 || step >= len(s.draws) {
		return fmt.Errorf("schedule: step %d outside horizon %d", step, len(s.draws))
	}
	if step < s.committed {
		return fmt.Errorf("schedule: set step %d: %w", step, ErrCommitted)
	}
	if a < 0 {
		return fmt.Errorf("schedule: negative draw %v at step %d", a, step)
	}
	s.draws[step] = a
	return nil
}

// Commit closes the given step. Steps close in order, each exactly once.
func (s *Schedule) Commit(step int) error {
	if step != s.committed {
		return fmt.Errorf("schedule: commit step %d, expected %d: %w", step, s.committed, ErrCommitted)
	}
	if step >= len(s.draws) {
		return fmt.Errorf("schedule: commit step %d outside horizon %d", step, len(s.draws))
	}
	s.committed++
	return nil
}

// EnergyKWh is the total energy the schedule delivers across all steps.
func (s *Schedule) EnergyKWh() KWh {
	var total KWh
	for _, a := range s.draws {
		total += a.StepEnergy()
	}
	return total
}

// Cost prices the schedule against a per-step price series. Steps beyond
// the series cost nothing.
func (s *Schedule) Cost(prices []EurPerKWh) Eur {
	var total Eur
	for step, a := range s.draws {
		if step < len(prices) {
			total += a.StepEnergy().Cost(prices[step])
		}
	}
	return total
}

// Draws returns a copy of the per-step draws.
func (s *Schedule) Draws() []Amps {
	out := make([]Amps, len(s.draws))
	copy(out, s.draws)
	return out
}
