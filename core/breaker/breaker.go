// Package breaker enforces the shared feed limit. Every step the engine
// sums the decided draws and asks the breaker what stands: in detect mode
// an overload is recorded and the draws flow anyway, in cutoff mode the
// contributing draws are curtailed pro rata down to the limit.
package breaker

import (
	"fmt"
	"sort"

	"github.com/jakewins/price-signals/core/model"
)

// Aggregate comparisons tolerate the micro-amp rounding of individual
// draws; a tenth of a milliamp is far below anything a scenario can mean.
const epsAmps model.Amps = 1e-4

// Mode selects what the feed does when the aggregate draw exceeds capacity.
type Mode int

const (
	// ModeDetect records the trip and lets the draws stand.
	ModeDetect Mode = iota
	// ModeCutoff curtails all draws pro rata so the aggregate meets the limit.
	ModeCutoff
)

func (m Mode) String() string {
	switch m {
	case ModeDetect:
		return "detect"
	case ModeCutoff:
		return "cutoff"
	default:
		return "unknown"
	}
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "detect":
		return ModeDetect, nil
	case "cutoff":
		return ModeCutoff, nil
	default:
		return ModeDetect, fmt.Errorf("breaker: unknown mode %q", s)
	}
}

// TripEvent records one step where the aggregate draw exceeded the limit.
type TripEvent struct {
	Step         int                   `json:"step"`
	Limit        model.Amps            `json:"limit_a"`
	Aggregate    model.Amps            `json:"aggregate_a"`
	Overload     model.Amps            `json:"overload_a"`
	Contributors map[string]model.Amps `json:"contributors"`
}

func (e TripEvent) String() string {
	ids := make([]string, 0, len(e.Contributors))
	for id := range e.Contributors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("step %d: %v over %v limit, drawn by %v", e.Step, e.Aggregate, e.Limit, ids)
}

// Result is the outcome of one capacity check.
type Result struct {
	Aggregate model.Amps
	// Draws is what actually flows this step. In cutoff mode on a trip it
	// is a fresh curtailed map, otherwise the input draws.
	Draws     map[string]model.Amps
	Trip      *TripEvent
	Curtailed bool
}

// Breaker guards one shared feed.
type Breaker struct {
	mode Mode
}

// New returns a breaker operating in the given mode.
func New(mode Mode) Breaker {
	return Breaker{mode: mode}
}

func (b Breaker) Mode() Mode { return b.mode }

// Check sums the draws against the step's limit and applies the mode.
func (b Breaker) Check(step int, limit model.Amps, draws map[string]model.Amps) Result {
	var aggregate model.Amps
	for _, a := range draws {
		aggregate += a
	}
	res := Result{Aggregate: aggregate, Draws: draws}
	if aggregate <= limit+epsAmps {
		return res
	}

	contributors := make(map[string]model.Amps, len(draws))
	for id, a := range draws {
		if a > 0 {
			contributors[id] = a
		}
	}
	res.Trip = &TripEvent{
		Step:         step,
		Limit:        limit,
		Aggregate:    aggregate,
		Overload:     aggregate - limit,
		Contributors: contributors,
	}
	if b.mode != ModeCutoff {
		return res
	}

	factor := float64(limit) / float64(aggregate)
	curtailed := make(map[string]model.Amps, len(draws))
	for id, a := range draws {
		curtailed[id] = model.FloorAmps(model.Amps(float64(a) * factor))
	}
	res.Draws = curtailed
	res.Curtailed = true
	return res
}
