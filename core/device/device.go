// Package device models a charging point working through one session. The
// device re-plans every step from the signal it sees, so price or capacity
// changes and curtailed draws are absorbed without special cases.
package device

import (
	"fmt"

	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/core/signal"
)

// Sessions within a watt-hour of their target count as met. Unit
// conversions, micro-amp draw rounding and planner solve tolerances all
// leave crumbs well below this.
const epsKWh model.KWh = 1e-3

// Infeasibility records the first step at which a device knew its session
// could no longer be met, and by how much.
type Infeasibility struct {
	Step         int       `json:"step"`
	ShortfallKWh model.KWh `json:"shortfall_kwh"`
}

// Device binds a session to a policy and tracks what has been delivered.
type Device struct {
	session    model.Session
	maxCurrent model.Amps
	policy     Policy

	sched      *model.Schedule
	delivered  model.KWh
	plan       []model.Amps
	infeasible *Infeasibility
}

// New builds a device for the session. maxCurrent is the hardware limit of
// the charging point; zero means the session's own limit applies. A nil
// policy defaults to CheapestSteps. Sessions that cannot be met even alone
// are marked infeasible at their arrival step rather than rejected.
func New(sess model.Session, maxCurrent model.Amps, p Policy, horizon int) (*Device, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if maxCurrent < 0 {
		return nil, fmt.Errorf("device %s: negative max current %v", sess.Device, maxCurrent)
	}
	if sess.Deadline >= horizon {
		return nil, fmt.Errorf("device %s: deadline %d outside horizon %d", sess.Device, sess.Deadline, horizon)
	}
	if p == nil {
		p = CheapestSteps{}
	}
	d := &Device{
		session:    sess,
		maxCurrent: maxCurrent,
		policy:     p,
		sched:      model.NewSchedule(horizon),
	}
	if ceiling := d.Limit().StepEnergy(); model.KWh(float64(ceiling)*float64(sess.Steps()))+epsKWh < sess.EnergyKWh {
		short := sess.EnergyKWh - model.KWh(float64(ceiling)*float64(sess.Steps()))
		d.infeasible = &Infeasibility{Step: sess.Arrival, ShortfallKWh: short}
	}
	return d, nil
}

func (d *Device) ID() string             { return d.session.Device }
func (d *Device) Session() model.Session { return d.session }
func (d *Device) Policy() Policy         { return d.policy }

// Limit is the per-step draw ceiling: the lower of the hardware limit and
// the session's own maximum.
func (d *Device) Limit() model.Amps {
	if d.maxCurrent > 0 && d.maxCurrent < d.session.MaxCurrent {
		return d.maxCurrent
	}
	return d.session.MaxCurrent
}

// Delivered is the energy committed so far.
func (d *Device) Delivered() model.KWh { return d.delivered }

// Remaining is the energy still owed to the session.
func (d *Device) Remaining() model.KWh {
	left := d.session.EnergyKWh - d.delivered
	if left < epsKWh {
		return 0
	}
	return left
}

// Done reports whether the session's demand has been met.
func (d *Device) Done() bool { return d.Remaining() == 0 }

// Wanting reports whether the device would draw at the step: the session is
// open and energy is still owed.
func (d *Device) Wanting(step int) bool {
	return d.session.Active(step) && !d.Done()
}

// options materialises the remaining window as the policy sees it. The
// grant, when present, additionally caps the current step.
func (d *Device) options(step int, src signal.Source, grant *model.Amps) ([]Option, error) {
	opts := make([]Option, 0, d.session.Deadline-step+1)
	for t := step; t <= d.session.Deadline; t++ {
		pt, err := src.At(t, d.ID())
		if err != nil {
			return nil, err
		}
		limit := min(d.Limit(), pt.Capacity)
		if t == step && grant != nil {
			limit = min(limit, *grant)
		}
		opts = append(opts, Option{Step: t, Price: pt.Price, Limit: limit})
	}
	return opts, nil
}

// Desired is the draw the device asks for at the step, before any
// coordination narrows it.
func (d *Device) Desired(step int, src signal.Source) (model.Amps, error) {
	if !d.Wanting(step) {
		return 0, nil
	}
	opts, err := d.options(step, src, nil)
	if err != nil {
		return 0, err
	}
	return d.policy.Pick(opts, d.Remaining()), nil
}

// Decide is the draw the device takes at the step. A non-nil grant caps the
// current step; an adopted plan overrides the policy entirely.
func (d *Device) Decide(step int, src signal.Source, grant *model.Amps) (model.Amps, error) {
	if !d.Wanting(step) {
		return 0, nil
	}
	if d.plan != nil {
		draw := min(d.plan[step], d.Limit())
		return model.RoundAmps(min(draw, d.Remaining().Amps())), nil
	}
	opts, err := d.options(step, src, grant)
	if err != nil {
		return 0, err
	}
	return d.policy.Pick(opts, d.Remaining()), nil
}

// Commit records the draw that actually happened at the step. Curtailment
// shows up here as an actual below the decided draw; the next step's
// planning starts from the updated remaining need.
func (d *Device) Commit(step int, actual model.Amps) error {
	if err := d.sched.Set(step, actual); err != nil {
		return err
	}
	if err := d.sched.Commit(step); err != nil {
		return err
	}
	d.delivered += actual.StepEnergy()
	return nil
}

// ReviewFeasibility checks, after the given step closed, whether the rest
// of the window can still absorb the remaining need. The first failed check
// is recorded and kept; later checks never overwrite it.
func (d *Device) ReviewFeasibility(step int, src signal.Source) error {
	if d.infeasible != nil || d.Done() || step < d.session.Arrival {
		return nil
	}
	if step >= d.session.Deadline {
		d.infeasible = &Infeasibility{Step: step, ShortfallKWh: d.Remaining()}
		return nil
	}
	var deliverable model.KWh
	for t := step + 1; t <= d.session.Deadline; t++ {
		pt, err := src.At(t, d.ID())
		if err != nil {
			return err
		}
		deliverable += min(d.Limit(), pt.Capacity).StepEnergy()
	}
	if deliverable+epsKWh < d.Remaining() {
		d.infeasible = &Infeasibility{Step: step, ShortfallKWh: d.Remaining() - deliverable}
	}
	return nil
}

// Infeasibility returns the recorded shortfall, nil while the session can
// still be met.
func (d *Device) Infeasibility() *Infeasibility { return d.infeasible }

// AdoptPlan replaces the device's own planning with a centrally computed
// schedule covering the whole horizon.
func (d *Device) AdoptPlan(draws []model.Amps) error {
	if len(draws) != d.sched.Horizon() {
		return fmt.Errorf("device %s: plan covers %d steps, horizon is %d", d.ID(), len(draws), d.sched.Horizon())
	}
	plan := make([]model.Amps, len(draws))
	copy(plan, draws)
	d.plan = plan
	return nil
}

// Schedule is the committed draw history.
func (d *Device) Schedule() *model.Schedule { return d.sched }

// Standalone simulates the device alone under the given price and capacity
// series and returns the draws it would take. Device state is untouched, so
// planners may probe responses freely.
func (d *Device) Standalone(prices []model.EurPerKWh, caps []model.Amps) []model.Amps {
	horizon := len(prices)
	draws := make([]model.Amps, horizon)
	remaining := d.session.EnergyKWh
	for step := 0; step < horizon; step++ {
		if remaining <= epsKWh || !d.session.Active(step) {
			continue
		}
		opts := make([]Option, 0, d.session.Deadline-step+1)
		for t := step; t <= d.session.Deadline && t < horizon; t++ {
			opts = append(opts, Option{Step: t, Price: prices[t], Limit: min(d.Limit(), caps[t])})
		}
		draw := model.RoundAmps(min(d.policy.Pick(opts, remaining), remaining.Amps()))
		draws[step] = draw
		remaining -= draw.StepEnergy()
	}
	return draws
}
