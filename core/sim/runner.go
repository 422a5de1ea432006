// Package sim drives a run: it walks the clock, lets every device decide
// its draw, enforces the feed limit and accounts energy and cost. Each
// step goes through the same phases in order: signals, negotiation (when
// the strategy negotiates), draw decisions, breaker check, commit, then
// feasibility review.
package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jakewins/price-signals/core/breaker"
	"github.com/jakewins/price-signals/core/coord"
	"github.com/jakewins/price-signals/core/device"
	"github.com/jakewins/price-signals/core/events"
	"github.com/jakewins/price-signals/core/logger"
	"github.com/jakewins/price-signals/core/metrics"
	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/core/signal"
	"github.com/jakewins/price-signals/internal/eventbus"
)

// Runner drives one run. Devices carry committed state, so a Runner is
// single use; build a new one for every run.
type Runner struct {
	runID    string
	scenario string
	clock    Clock
	src      signal.Source
	devices  []*device.Device
	strategy coord.Strategy
	brk      breaker.Breaker
	log      logger.Logger
	sink     metrics.Sink
	bus      eventbus.EventBus

	ran       bool
	trips     []breaker.TripEvent
	curtailed []int
	costs     map[string]model.Eur
}

// Option configures a Runner.
type Option func(*Runner)

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithScenario names the scenario the run replays.
func WithScenario(name string) Option {
	return func(r *Runner) { r.scenario = name }
}

// WithLogger sets the run logger. It is also injected into the strategy
// when the strategy accepts one.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithSink sets the metrics sink.
func WithSink(sink metrics.Sink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithBus publishes run events on the bus.
func WithBus(bus eventbus.EventBus) Option {
	return func(r *Runner) { r.bus = bus }
}

// NewRunner assembles a run. The source fixes the horizon; every device
// must have been built against the same horizon. A nil strategy means no
// coordination.
func NewRunner(src signal.Source, devices []*device.Device, strategy coord.Strategy, brk breaker.Breaker, opts ...Option) (*Runner, error) {
	if src == nil {
		return nil, fmt.Errorf("nil signal source")
	}
	if strategy == nil {
		strategy = coord.NoCoordination{}
	}
	horizon := src.Horizon()
	seen := make(map[string]bool, len(devices))
	sorted := make([]*device.Device, len(devices))
	copy(sorted, devices)
	for _, d := range sorted {
		if seen[d.ID()] {
			return nil, fmt.Errorf("duplicate device id %q", d.ID())
		}
		seen[d.ID()] = true
		if d.Schedule().Horizon() != horizon {
			return nil, fmt.Errorf("device %s: schedule horizon %d, source horizon %d", d.ID(), d.Schedule().Horizon(), horizon)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	r := &Runner{
		runID:    uuid.NewString(),
		clock:    NewClock(horizon),
		src:      src,
		devices:  sorted,
		strategy: strategy,
		brk:      brk,
		log:      logger.NopLogger{},
		sink:     metrics.NopSink{},
		costs:    make(map[string]model.Eur, len(sorted)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if ls, ok := strategy.(coord.LogSettable); ok {
		ls.SetLogger(r.log)
	}
	return r, nil
}

// Run replays the whole horizon and returns the report. Planner errors are
// fatal before the first step; allocation conflicts and signal errors are
// fatal at the step that hits them.
func (r *Runner) Run() (*Report, error) {
	if r.ran {
		return nil, fmt.Errorf("run %s already executed", r.runID)
	}
	r.ran = true
	started := time.Now()

	ids := make([]string, len(r.devices))
	for i, d := range r.devices {
		ids[i] = d.ID()
	}
	r.publish(events.RunStarted{
		RunID:    r.runID,
		Scenario: r.scenario,
		Strategy: r.strategy.Name(),
		Horizon:  r.clock.Horizon(),
		Devices:  ids,
	})

	// Sessions too large for their own window are known lost before the
	// first step.
	for _, d := range r.devices {
		if inf := d.Infeasibility(); inf != nil {
			r.announceInfeasible(d.ID(), *inf)
		}
	}

	if planner, ok := r.strategy.(coord.Planner); ok {
		if err := r.plan(planner); err != nil {
			return nil, fmt.Errorf("plan %s: %w", r.strategy.Name(), err)
		}
	}

	for step := range r.clock.Steps() {
		if err := r.step(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
	}

	rep := r.report(started)
	r.record(rep)
	r.publish(events.RunDone{
		RunID:    r.runID,
		Scenario: r.scenario,
		Strategy: r.strategy.Name(),
		Verdict:  string(rep.Verdict),
		Trips:    len(rep.Trips),
		CostEur:  rep.CostEur,
	})
	return rep, nil
}

func (r *Runner) plan(planner coord.Planner) error {
	prices, caps, err := signal.Series(r.src, signal.Feed)
	if err != nil {
		return err
	}
	ctx := coord.PlanContext{
		Horizon:    r.clock.Horizon(),
		Prices:     prices,
		Capacity:   caps,
		Devices:    make([]coord.DeviceInfo, 0, len(r.devices)),
		Responders: make([]coord.Responder, 0, len(r.devices)),
	}
	for _, d := range r.devices {
		info := coord.DeviceInfo{ID: d.ID(), Session: d.Session(), Limit: d.Limit()}
		ctx.Devices = append(ctx.Devices, info)
		ctx.Responders = append(ctx.Responders, coord.Responder{Info: info, Respond: d.Standalone})
	}
	plans, err := planner.Plan(ctx)
	if err != nil {
		return err
	}
	for _, d := range r.devices {
		draws, ok := plans[d.ID()]
		if !ok {
			continue
		}
		if err := d.AdoptPlan(draws); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) step(step int) error {
	feed, err := r.src.At(step, signal.Feed)
	if err != nil {
		return err
	}
	limit := feed.Capacity

	points := make(map[string]model.SignalPoint, len(r.devices))
	for _, d := range r.devices {
		if !d.Session().Active(step) {
			continue
		}
		pt, err := r.src.At(step, d.ID())
		if err != nil {
			return err
		}
		points[d.ID()] = pt
	}
	r.publish(events.StepSignals{Step: step, Points: points})

	grants, err := r.negotiate(step, limit)
	if err != nil {
		return err
	}

	draws := make(map[string]model.Amps, len(r.devices))
	for _, d := range r.devices {
		var grant *model.Amps
		if grants != nil {
			if g, ok := grants[d.ID()]; ok {
				grant = &g
			}
		}
		a, err := d.Decide(step, r.src, grant)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.ID(), err)
		}
		if a > 0 {
			draws[d.ID()] = a
		}
	}

	res := r.brk.Check(step, limit, draws)
	if res.Trip != nil {
		r.trips = append(r.trips, *res.Trip)
		r.log.Warnf("%s", res.Trip)
		r.publish(events.Trip{RunID: r.runID, Event: *res.Trip})
		if tr, ok := r.sink.(metrics.TripRecorder); ok {
			rec := metrics.TripRecord{
				RunID:      r.runID,
				Scenario:   r.scenario,
				Strategy:   r.strategy.Name(),
				Step:       step,
				LimitA:     res.Trip.Limit,
				AggregateA: res.Trip.Aggregate,
				OverloadA:  res.Trip.Overload,
				Curtailed:  res.Curtailed,
			}
			if err := tr.RecordTrip(rec); err != nil {
				r.log.Warnf("record trip: %v", err)
			}
		}
	}
	if res.Curtailed {
		r.curtailed = append(r.curtailed, step)
	}

	var aggregate model.Amps
	var stepCost model.Eur
	for _, d := range r.devices {
		actual := res.Draws[d.ID()]
		if err := d.Commit(step, actual); err != nil {
			return fmt.Errorf("device %s: %w", d.ID(), err)
		}
		if actual <= 0 {
			continue
		}
		aggregate += actual
		cost := actual.StepEnergy().Cost(points[d.ID()].Price)
		r.costs[d.ID()] += cost
		stepCost += cost
	}

	for _, d := range r.devices {
		if !d.Session().Active(step) {
			continue
		}
		before := d.Infeasibility()
		if err := d.ReviewFeasibility(step, r.src); err != nil {
			return fmt.Errorf("device %s: %w", d.ID(), err)
		}
		if before == nil {
			if inf := d.Infeasibility(); inf != nil {
				r.announceInfeasible(d.ID(), *inf)
			}
		}
	}

	r.publish(events.StepDraws{Step: step, Draws: res.Draws, Aggregate: aggregate, Curtailed: res.Curtailed})
	if sr, ok := r.sink.(metrics.StepRecorder); ok {
		rec := metrics.StepRecord{
			RunID:      r.runID,
			Scenario:   r.scenario,
			Strategy:   r.strategy.Name(),
			Step:       step,
			CapacityA:  limit,
			AggregateA: aggregate,
			CostEur:    stepCost,
			Tripped:    res.Trip != nil,
			Curtailed:  res.Curtailed,
		}
		if err := sr.RecordStep(rec); err != nil {
			r.log.Warnf("record step: %v", err)
		}
	}
	r.publish(events.StepClosed{Step: step, Aggregate: aggregate, CostEur: stepCost})
	return nil
}

// negotiate collects requests and hands out grants. It returns nil when
// the strategy does not negotiate, never when it does: devices without a
// grant entry decided not to ask and are free to follow their policy.
func (r *Runner) negotiate(step int, limit model.Amps) (map[string]model.Amps, error) {
	neg, ok := r.strategy.(coord.Negotiator)
	if !ok {
		return nil, nil
	}
	var reqs []coord.Request
	for _, d := range r.devices {
		if !d.Wanting(step) {
			continue
		}
		want, err := d.Desired(step, r.src)
		if err != nil {
			return nil, err
		}
		if want <= 0 {
			continue
		}
		reqs = append(reqs, coord.Request{
			Device:       d.ID(),
			Amps:         want,
			RemainingKWh: d.Remaining(),
			StepsLeft:    d.Session().Deadline - step + 1,
		})
	}
	r.publish(events.StepRequests{Step: step, Requests: reqs})
	granted, err := neg.Negotiate(step, reqs, limit)
	if err != nil {
		return nil, err
	}
	r.publish(events.StepGrants{Step: step, Grants: granted})
	grants := make(map[string]model.Amps, len(granted))
	for _, g := range granted {
		grants[g.Device] = g.Amps
	}
	return grants, nil
}

func (r *Runner) announceInfeasible(id string, inf device.Infeasibility) {
	r.log.Warnf("session %s infeasible from step %d, short %s", id, inf.Step, inf.ShortfallKWh)
	r.publish(events.Infeasible{RunID: r.runID, Device: id, Detail: inf})
}

func (r *Runner) report(started time.Time) *Report {
	devs := make([]DeviceReport, 0, len(r.devices))
	var energy model.KWh
	var cost model.Eur
	infeasible := 0
	for _, d := range r.devices {
		inf := d.Infeasibility()
		if inf != nil {
			infeasible++
		}
		dr := DeviceReport{
			Device:       d.ID(),
			Policy:       d.Policy().Name(),
			RequestedKWh: d.Session().EnergyKWh,
			DeliveredKWh: d.Delivered(),
			CostEur:      r.costs[d.ID()],
			Draws:        d.Schedule().Draws(),
			Infeasible:   inf,
		}
		energy += dr.DeliveredKWh
		cost += dr.CostEur
		devs = append(devs, dr)
	}
	return &Report{
		RunID:          r.runID,
		Scenario:       r.scenario,
		Strategy:       r.strategy.Name(),
		Breaker:        r.brk.Mode().String(),
		Horizon:        r.clock.Horizon(),
		Verdict:        verdict(r.brk.Mode(), len(r.trips), infeasible),
		Devices:        devs,
		Trips:          r.trips,
		CurtailedSteps: r.curtailed,
		EnergyKWh:      energy,
		CostEur:        cost,
		StartedAt:      started,
		Elapsed:        time.Since(started),
	}
}

func (r *Runner) record(rep *Report) {
	rec := metrics.RunRecord{
		RunID:              rep.RunID,
		Scenario:           rep.Scenario,
		Strategy:           rep.Strategy,
		Verdict:            string(rep.Verdict),
		Horizon:            rep.Horizon,
		Trips:              len(rep.Trips),
		InfeasibleSessions: len(rep.Infeasible()),
		EnergyKWh:          rep.EnergyKWh,
		CostEur:            rep.CostEur,
		Elapsed:            rep.Elapsed,
	}
	if err := r.sink.RecordRun(rec); err != nil {
		r.log.Warnf("record run: %v", err)
	}
	dr, ok := r.sink.(metrics.DeviceRecorder)
	if !ok {
		return
	}
	recs := make([]metrics.DeviceRecord, 0, len(rep.Devices))
	for _, d := range rep.Devices {
		mr := metrics.DeviceRecord{
			RunID:     rep.RunID,
			Scenario:  rep.Scenario,
			Strategy:  rep.Strategy,
			Device:    d.Device,
			Policy:    d.Policy,
			EnergyKWh: d.DeliveredKWh,
			CostEur:   d.CostEur,
		}
		if d.Infeasible != nil {
			mr.Infeasible = true
			mr.ShortfallKWh = d.Infeasible.ShortfallKWh
		}
		recs = append(recs, mr)
	}
	if err := dr.RecordDeviceRuns(recs); err != nil {
		r.log.Warnf("record devices: %v", err)
	}
}

func (r *Runner) publish(e eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
