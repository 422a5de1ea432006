package sim

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jakewins/price-signals/core/breaker"
	"github.com/jakewins/price-signals/core/device"
	"github.com/jakewins/price-signals/core/model"
)

// Verdict summarizes how a run ended.
type Verdict string

const (
	// VerdictCompleted means every session met its demand and the feed
	// limit held (or was enforced) at every step.
	VerdictCompleted Verdict = "completed"
	// VerdictTripped means the breaker opened at least once while in
	// detect mode.
	VerdictTripped Verdict = "tripped"
	// VerdictInfeasible means at least one session cannot (or did not)
	// meet its demand by its deadline.
	VerdictInfeasible Verdict = "infeasible"
)

// DeviceReport is the per-device outcome of a run.
type DeviceReport struct {
	Device       string                `json:"device"`
	Policy       string                `json:"policy"`
	RequestedKWh model.KWh             `json:"requested_kwh"`
	DeliveredKWh model.KWh             `json:"delivered_kwh"`
	CostEur      model.Eur             `json:"cost_eur"`
	Draws        []model.Amps          `json:"draws_a"`
	Infeasible   *device.Infeasibility `json:"infeasible,omitempty"`
}

// Report is the full outcome of a run.
type Report struct {
	RunID          string              `json:"run_id"`
	Scenario       string              `json:"scenario,omitempty"`
	Strategy       string              `json:"strategy"`
	Breaker        string              `json:"breaker"`
	Horizon        int                 `json:"horizon"`
	Verdict        Verdict             `json:"verdict"`
	Devices        []DeviceReport      `json:"devices"`
	Trips          []breaker.TripEvent `json:"trips,omitempty"`
	CurtailedSteps []int               `json:"curtailed_steps,omitempty"`
	EnergyKWh      model.KWh           `json:"energy_kwh"`
	CostEur        model.Eur           `json:"cost_eur"`
	StartedAt      time.Time           `json:"started_at"`
	Elapsed        time.Duration       `json:"elapsed"`
}

// Infeasible lists the devices that ended the run short of their demand,
// ordered by device id.
func (r *Report) Infeasible() []DeviceReport {
	var out []DeviceReport
	for _, d := range r.Devices {
		if d.Infeasible != nil {
			out = append(out, d)
		}
	}
	return out
}

func verdict(mode breaker.Mode, trips int, infeasible int) Verdict {
	switch {
	case infeasible > 0:
		return VerdictInfeasible
	case trips > 0 && mode == breaker.ModeDetect:
		return VerdictTripped
	default:
		return VerdictCompleted
	}
}

// String renders the report for humans, one device per line.
func (r *Report) String() string {
	var b strings.Builder
	name := r.Scenario
	if name == "" {
		name = r.RunID
	}
	fmt.Fprintf(&b, "run %s strategy=%s breaker=%s verdict=%s\n",
		name, r.Strategy, r.Breaker, r.Verdict)
	fmt.Fprintf(&b, "  %d steps, %s delivered for %s\n",
		r.Horizon, r.EnergyKWh, r.CostEur)
	for _, trip := range r.Trips {
		fmt.Fprintf(&b, "  %s\n", trip.String())
	}
	if len(r.CurtailedSteps) > 0 {
		steps := make([]string, len(r.CurtailedSteps))
		for i, s := range r.CurtailedSteps {
			steps[i] = strconv.Itoa(s)
		}
		fmt.Fprintf(&b, "  curtailed at steps %s\n", strings.Join(steps, ", "))
	}
	for _, d := range r.Devices {
		fmt.Fprintf(&b, "  %s [%s]: %s of %s for %s",
			d.Device, d.Policy, d.DeliveredKWh, d.RequestedKWh, d.CostEur)
		if d.Infeasible != nil {
			fmt.Fprintf(&b, " (infeasible from step %d, short %s)",
				d.Infeasible.Step, d.Infeasible.ShortfallKWh)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
