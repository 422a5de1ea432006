// Package events defines the run lifecycle events emitted on the event bus.
//
// Per step, in order: StepSignals, StepRequests and StepGrants (negotiated
// runs only), StepDraws, then StepClosed. Trip and Infeasible fire as their
// conditions are detected. RunStarted and RunDone bracket the whole run.
package events

import (
	"github.com/jakewins/price-signals/core/breaker"
	"github.com/jakewins/price-signals/core/coord"
	"github.com/jakewins/price-signals/core/device"
	"github.com/jakewins/price-signals/core/model"
)

// RunStarted is published once before the first step.
type RunStarted struct {
	RunID    string
	Scenario string
	Strategy string
	Horizon  int
	Devices  []string
}

// StepSignals carries the signal each active device saw for the step.
type StepSignals struct {
	Step   int
	Points map[string]model.SignalPoint
}

// StepRequests carries the draws devices asked for during negotiation.
type StepRequests struct {
	Step     int
	Requests []coord.Request
}

// StepGrants carries the ceilings the negotiator handed back.
type StepGrants struct {
	Step   int
	Grants []coord.Grant
}

// StepDraws carries the draws that actually flowed, after enforcement.
type StepDraws struct {
	Step      int
	Draws     map[string]model.Amps
	Aggregate model.Amps
	Curtailed bool
}

// Trip is published when the aggregate draw exceeded the feed limit.
type Trip struct {
	RunID string
	Event breaker.TripEvent
}

// Infeasible is published when a device first concludes its session cannot
// be met anymore.
type Infeasible struct {
	RunID  string
	Device string
	Detail device.Infeasibility
}

// StepClosed is published after every draw of the step is committed.
type StepClosed struct {
	Step      int
	Aggregate model.Amps
	CostEur   model.Eur
}

// RunDone is published once after the last step.
type RunDone struct {
	RunID    string
	Scenario string
	Strategy string
	Verdict  string
	Trips    int
	CostEur  model.Eur
}
