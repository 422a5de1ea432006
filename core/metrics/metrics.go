// Package metrics defines the records a run emits and the sinks that
// consume them. Every sink takes the final RunRecord; sinks that can use
// finer granularity implement the optional recorder interfaces, which the
// engine discovers by type assertion. Multiple configured sinks are
// combined with NewMultiSink.
package metrics

import (
	"time"

	"github.com/jakewins/price-signals/core/model"
)

// RunRecord is the final outcome of one run.
type RunRecord struct {
	RunID              string
	Scenario           string
	Strategy           string
	Verdict            string
	Horizon            int
	Trips              int
	InfeasibleSessions int
	EnergyKWh          model.KWh
	CostEur            model.Eur
	Elapsed            time.Duration
}

// Sink records run outcomes for observability purposes.
type Sink interface {
	RecordRun(rec RunRecord) error
}

// StepRecord is one closed step.
type StepRecord struct {
	RunID      string
	Scenario   string
	Strategy   string
	Step       int
	CapacityA  model.Amps
	AggregateA model.Amps
	CostEur    model.Eur
	Tripped    bool
	Curtailed  bool
}

// StepRecorder is implemented by sinks that want per-step resolution.
type StepRecorder interface {
	RecordStep(rec StepRecord) error
}

// DeviceRecord is one device's final outcome.
type DeviceRecord struct {
	RunID        string
	Scenario     string
	Strategy     string
	Device       string
	Policy       string
	EnergyKWh    model.KWh
	CostEur      model.Eur
	Infeasible   bool
	ShortfallKWh model.KWh
}

// DeviceRecorder is implemented by sinks that record per-device outcomes.
type DeviceRecorder interface {
	RecordDeviceRuns(recs []DeviceRecord) error
}

// TripRecord is one feed overload.
type TripRecord struct {
	RunID      string
	Scenario   string
	Strategy   string
	Step       int
	LimitA     model.Amps
	AggregateA model.Amps
	OverloadA  model.Amps
	Curtailed  bool
}

// TripRecorder is implemented by sinks that record overloads as they
// happen.
type TripRecorder interface {
	RecordTrip(rec TripRecord) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordRun(RunRecord) error             { return nil }
func (NopSink) RecordStep(StepRecord) error           { return nil }
func (NopSink) RecordDeviceRuns([]DeviceRecord) error { return nil }
func (NopSink) RecordTrip(TripRecord) error           { return nil }
