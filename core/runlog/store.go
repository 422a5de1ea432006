// Package runlog persists finished runs so verdicts and costs can be
// compared across scenarios and strategies after the fact.
package runlog

import (
	"context"
	"time"

	"github.com/jakewins/price-signals/core/model"
)

// Record captures one finished run.
type Record struct {
	RunID      string          `json:"run_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Scenario   string          `json:"scenario,omitempty"`
	Strategy   string          `json:"strategy"`
	Breaker    string          `json:"breaker"`
	Verdict    string          `json:"verdict"`
	Horizon    int             `json:"horizon"`
	Trips      int             `json:"trips"`
	Infeasible int             `json:"infeasible_sessions"`
	EnergyKWh  model.KWh       `json:"energy_kwh"`
	CostEur    model.Eur       `json:"cost_eur"`
	Devices    []DeviceOutcome `json:"devices"`
}

// DeviceOutcome mirrors one device's report for persistence purposes.
type DeviceOutcome struct {
	Device       string       `json:"device"`
	Policy       string       `json:"policy"`
	DeliveredKWh model.KWh    `json:"delivered_kwh"`
	CostEur      model.Eur    `json:"cost_eur"`
	Draws        []model.Amps `json:"draws_a"`
	Infeasible   bool         `json:"infeasible"`
}

// Query defines filters for retrieving records. Zero values match
// everything.
type Query struct {
	Start    time.Time
	End      time.Time
	Scenario string
	Strategy string
	Verdict  string
	Device   string
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Scenario != "" && r.Scenario != q.Scenario {
		return false
	}
	if q.Strategy != "" && r.Strategy != q.Strategy {
		return false
	}
	if q.Verdict != "" && r.Verdict != q.Verdict {
		return false
	}
	if q.Device != "" {
		for _, d := range r.Devices {
			if d.Device == q.Device {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
