package sim

import (
	"errors"
	"testing"

	"github.com/jakewins/price-signals/core/breaker"
	"github.com/jakewins/price-signals/core/coord"
	"github.com/jakewins/price-signals/core/device"
	"github.com/jakewins/price-signals/core/events"
	"github.com/jakewins/price-signals/core/metrics"
	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/core/signal"
	"github.com/jakewins/price-signals/internal/eventbus"
)

// evening is the canonical collision setup: prices climb 1..4, the feed
// carries 30A, and two 20A sessions both need 7.2kWh by step 2.
func evening(t *testing.T) signal.Source {
	t.Helper()
	src, err := signal.NewShared(
		[]model.EurPerKWh{1, 2, 3, 4},
		[]model.Amps{30, 30, 30, 30},
	)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	return src
}

func twoSessions(t *testing.T, horizon int) []*device.Device {
	t.Helper()
	devs := make([]*device.Device, 0, 2)
	for _, id := range []string{"evse-a", "evse-b"} {
		sess := model.Session{Device: id, Arrival: 0, Deadline: 2, EnergyKWh: 7.2, MaxCurrent: 20}
		d, err := device.New(sess, 0, nil, horizon)
		if err != nil {
			t.Fatalf("device %s: %v", id, err)
		}
		devs = append(devs, d)
	}
	return devs
}

func mustRun(t *testing.T, src signal.Source, devs []*device.Device, strat coord.Strategy, mode breaker.Mode, opts ...Option) *Report {
	t.Helper()
	r, err := NewRunner(src, devs, strat, breaker.New(mode), opts...)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	rep, err := r.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return rep
}

func almost(t *testing.T, what string, got, want, tol float64) {
	t.Helper()
	if diff := got - want; diff < -tol || diff > tol {
		t.Fatalf("%s: expected %v, got %v", what, want, got)
	}
}

func TestUncoordinatedCollisionTrips(t *testing.T) {
	rep := mustRun(t, evening(t), twoSessions(t, 4), nil, breaker.ModeDetect)

	if rep.Verdict != VerdictTripped {
		t.Fatalf("expected verdict %q, got %q", VerdictTripped, rep.Verdict)
	}
	if len(rep.Trips) != 1 {
		t.Fatalf("expected 1 trip, got %d", len(rep.Trips))
	}
	trip := rep.Trips[0]
	if trip.Step != 0 {
		t.Fatalf("expected trip at step 0, got %d", trip.Step)
	}
	if trip.Aggregate != 40 || trip.Overload != 10 {
		t.Fatalf("expected 40A aggregate 10A over, got %v over %v", trip.Aggregate, trip.Overload)
	}
	if len(trip.Contributors) != 2 {
		t.Fatalf("expected 2 contributors, got %v", trip.Contributors)
	}
	if len(rep.CurtailedSteps) != 0 {
		t.Fatalf("detect mode must not curtail, got steps %v", rep.CurtailedSteps)
	}

	if len(rep.Devices) != 2 {
		t.Fatalf("expected 2 device reports, got %d", len(rep.Devices))
	}
	for _, d := range rep.Devices {
		want := []model.Amps{20, 10, 0, 0}
		for i, a := range want {
			if d.Draws[i] != a {
				t.Fatalf("%s step %d: expected %v, got %v", d.Device, i, a, d.Draws[i])
			}
		}
		if d.Infeasible != nil {
			t.Fatalf("%s: unexpected infeasibility %+v", d.Device, d.Infeasible)
		}
		almost(t, d.Device+" delivered", float64(d.DeliveredKWh), 7.2, 1e-9)
		almost(t, d.Device+" cost", float64(d.CostEur), 9.6, 1e-9)
	}
	almost(t, "total energy", float64(rep.EnergyKWh), 14.4, 1e-9)
	almost(t, "total cost", float64(rep.CostEur), 19.2, 1e-9)
}

func TestNegotiationAvoidsTrip(t *testing.T) {
	strat, err := coord.NewNegotiated("fair_share")
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	rep := mustRun(t, evening(t), twoSessions(t, 4), strat, breaker.ModeDetect)

	if rep.Verdict != VerdictCompleted {
		t.Fatalf("expected verdict %q, got %q", VerdictCompleted, rep.Verdict)
	}
	if len(rep.Trips) != 0 {
		t.Fatalf("expected no trips, got %v", rep.Trips)
	}
	for _, d := range rep.Devices {
		want := []model.Amps{15, 15, 0, 0}
		for i, a := range want {
			if d.Draws[i] != a {
				t.Fatalf("%s step %d: expected %v, got %v", d.Device, i, a, d.Draws[i])
			}
		}
		almost(t, d.Device+" delivered", float64(d.DeliveredKWh), 7.2, 1e-9)
		almost(t, d.Device+" cost", float64(d.CostEur), 10.8, 1e-9)
	}
	almost(t, "total cost", float64(rep.CostEur), 21.6, 1e-9)
}

// A 1A feed cannot carry two sessions that each need a full amp at their
// only step. Fair shares keep the feed whole and both sessions end short.
func TestNegotiationCannotSaveOversubscribedStep(t *testing.T) {
	src, err := signal.NewShared([]model.EurPerKWh{1}, []model.Amps{1})
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	devs := make([]*device.Device, 0, 2)
	for _, id := range []string{"evse-a", "evse-b"} {
		sess := model.Session{Device: id, Arrival: 0, Deadline: 0, EnergyKWh: 0.24, MaxCurrent: 5}
		d, err := device.New(sess, 0, nil, 1)
		if err != nil {
			t.Fatalf("device %s: %v", id, err)
		}
		devs = append(devs, d)
	}
	strat, err := coord.NewNegotiated("fair_share")
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	rep := mustRun(t, src, devs, strat, breaker.ModeDetect)

	if rep.Verdict != VerdictInfeasible {
		t.Fatalf("expected verdict %q, got %q", VerdictInfeasible, rep.Verdict)
	}
	if len(rep.Trips) != 0 {
		t.Fatalf("expected no trips, got %v", rep.Trips)
	}
	for _, d := range rep.Devices {
		if d.Draws[0] != 0.5 {
			t.Fatalf("%s: expected 0.5A fair share, got %v", d.Device, d.Draws[0])
		}
		if d.Infeasible == nil {
			t.Fatalf("%s: expected infeasibility", d.Device)
		}
		if d.Infeasible.Step != 0 {
			t.Fatalf("%s: expected infeasibility at step 0, got %d", d.Device, d.Infeasible.Step)
		}
		almost(t, d.Device+" shortfall", float64(d.Infeasible.ShortfallKWh), 0.12, 1e-9)
	}
}

func TestCutoffCurtailsAndCompletes(t *testing.T) {
	rep := mustRun(t, evening(t), twoSessions(t, 4), nil, breaker.ModeCutoff)

	if rep.Verdict != VerdictCompleted {
		t.Fatalf("expected verdict %q, got %q", VerdictCompleted, rep.Verdict)
	}
	if len(rep.Trips) != 1 || rep.Trips[0].Step != 0 {
		t.Fatalf("expected the overload recorded at step 0, got %v", rep.Trips)
	}
	if len(rep.CurtailedSteps) != 1 || rep.CurtailedSteps[0] != 0 {
		t.Fatalf("expected curtailment at step 0, got %v", rep.CurtailedSteps)
	}
	for _, d := range rep.Devices {
		want := []model.Amps{15, 15, 0, 0}
		for i, a := range want {
			if d.Draws[i] != a {
				t.Fatalf("%s step %d: expected %v, got %v", d.Device, i, a, d.Draws[i])
			}
		}
		almost(t, d.Device+" delivered", float64(d.DeliveredKWh), 7.2, 1e-9)
	}
	almost(t, "total cost", float64(rep.CostEur), 21.6, 1e-9)
}

func TestPlannerKeepsFeedWholeAtOptimalCost(t *testing.T) {
	rep := mustRun(t, evening(t), twoSessions(t, 4), coord.NewLP(), breaker.ModeDetect)

	if rep.Verdict != VerdictCompleted {
		t.Fatalf("expected verdict %q, got %q", VerdictCompleted, rep.Verdict)
	}
	if len(rep.Trips) != 0 {
		t.Fatalf("expected no trips, got %v", rep.Trips)
	}
	for step := 0; step < rep.Horizon; step++ {
		var agg model.Amps
		for _, d := range rep.Devices {
			agg += d.Draws[step]
		}
		if agg > 30+1e-3 {
			t.Fatalf("step %d: aggregate %v exceeds the 30A feed", step, agg)
		}
	}
	for _, d := range rep.Devices {
		almost(t, d.Device+" delivered", float64(d.DeliveredKWh), 7.2, 2e-3)
	}
	almost(t, "total cost", float64(rep.CostEur), 21.6, 1e-2)
}

// With a feed far above what the fleet can draw, central planning cannot
// beat devices planning alone; both land on the same cheapest steps.
func TestPlannerMatchesStandaloneWhenUnconstrained(t *testing.T) {
	wide := func() signal.Source {
		src, err := signal.NewShared(
			[]model.EurPerKWh{1, 2, 3, 4},
			[]model.Amps{100, 100, 100, 100},
		)
		if err != nil {
			t.Fatalf("source: %v", err)
		}
		return src
	}
	naive := mustRun(t, wide(), twoSessions(t, 4), nil, breaker.ModeDetect)
	if naive.Verdict != VerdictCompleted {
		t.Fatalf("expected naive run to complete, got %q", naive.Verdict)
	}
	planned := mustRun(t, wide(), twoSessions(t, 4), coord.NewLP(), breaker.ModeDetect)
	if planned.Verdict != VerdictCompleted {
		t.Fatalf("expected planned run to complete, got %q", planned.Verdict)
	}
	if float64(planned.CostEur) > float64(naive.CostEur)+1e-3 {
		t.Fatalf("expected planned cost at or below naive %v, got %v", naive.CostEur, planned.CostEur)
	}
}

func TestPriceResponseConverges(t *testing.T) {
	strat, err := coord.NewPriceResponse(8)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	rep := mustRun(t, evening(t), twoSessions(t, 4), strat, breaker.ModeDetect)

	if rep.Verdict != VerdictCompleted {
		t.Fatalf("expected verdict %q, got %q", VerdictCompleted, rep.Verdict)
	}
	if len(rep.Trips) != 0 {
		t.Fatalf("expected no trips, got %v", rep.Trips)
	}
	for _, d := range rep.Devices {
		want := []model.Amps{15, 15, 0, 0}
		for i, a := range want {
			if d.Draws[i] != a {
				t.Fatalf("%s step %d: expected %v, got %v", d.Device, i, a, d.Draws[i])
			}
		}
	}
	almost(t, "total cost", float64(rep.CostEur), 21.6, 1e-9)
}

func TestRunsAreDeterministic(t *testing.T) {
	run := func() *Report {
		strat, err := coord.NewNegotiated("fair_share")
		if err != nil {
			t.Fatalf("strategy: %v", err)
		}
		return mustRun(t, evening(t), twoSessions(t, 4), strat, breaker.ModeDetect)
	}
	first := run()
	second := run()

	if first.Verdict != second.Verdict {
		t.Fatalf("verdicts differ: %q vs %q", first.Verdict, second.Verdict)
	}
	if first.CostEur != second.CostEur {
		t.Fatalf("costs differ: %v vs %v", first.CostEur, second.CostEur)
	}
	if first.EnergyKWh != second.EnergyKWh {
		t.Fatalf("energy differs: %v vs %v", first.EnergyKWh, second.EnergyKWh)
	}
	for i := range first.Devices {
		a, b := first.Devices[i], second.Devices[i]
		if a.Device != b.Device {
			t.Fatalf("device order differs: %s vs %s", a.Device, b.Device)
		}
		for step := range a.Draws {
			if a.Draws[step] != b.Draws[step] {
				t.Fatalf("%s step %d: draws differ, %v vs %v", a.Device, step, a.Draws[step], b.Draws[step])
			}
		}
	}
}

func TestLateArrivalDrawsOnlyInsideWindow(t *testing.T) {
	sess := model.Session{Device: "evse-late", Arrival: 2, Deadline: 3, EnergyKWh: 4.8, MaxCurrent: 20}
	d, err := device.New(sess, 0, nil, 4)
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	rep := mustRun(t, evening(t), []*device.Device{d}, nil, breaker.ModeDetect)

	if rep.Verdict != VerdictCompleted {
		t.Fatalf("expected verdict %q, got %q", VerdictCompleted, rep.Verdict)
	}
	want := []model.Amps{0, 0, 20, 0}
	for i, a := range want {
		if rep.Devices[0].Draws[i] != a {
			t.Fatalf("step %d: expected %v, got %v", i, a, rep.Devices[0].Draws[i])
		}
	}
	almost(t, "cost", float64(rep.CostEur), 14.4, 1e-9)
}

func TestSessionTooLargeForWindowAnnouncedUpFront(t *testing.T) {
	src, err := signal.NewShared([]model.EurPerKWh{1}, []model.Amps{30})
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	sess := model.Session{Device: "evse-a", Arrival: 0, Deadline: 0, EnergyKWh: 10, MaxCurrent: 20}
	d, err := device.New(sess, 0, nil, 1)
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	bus := eventbus.New(256)
	ch := bus.Subscribe()
	rep := mustRun(t, src, []*device.Device{d}, nil, breaker.ModeDetect, WithBus(bus))
	bus.Close()

	if rep.Verdict != VerdictInfeasible {
		t.Fatalf("expected verdict %q, got %q", VerdictInfeasible, rep.Verdict)
	}
	inf := rep.Devices[0].Infeasible
	if inf == nil || inf.Step != 0 {
		t.Fatalf("expected infeasibility at step 0, got %+v", inf)
	}
	almost(t, "shortfall", float64(inf.ShortfallKWh), 5.2, 1e-9)
	if rep.Devices[0].Draws[0] != 20 {
		t.Fatalf("expected the device to draw its 20A limit anyway, got %v", rep.Devices[0].Draws[0])
	}

	var all []eventbus.Event
	for e := range ch {
		all = append(all, e)
	}
	if len(all) < 2 {
		t.Fatalf("expected events, got %d", len(all))
	}
	if _, ok := all[1].(events.Infeasible); !ok {
		t.Fatalf("expected infeasibility announced right after start, got %T", all[1])
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	bus := eventbus.New(256)
	ch := bus.Subscribe()
	rep := mustRun(t, evening(t), twoSessions(t, 4), nil, breaker.ModeDetect,
		WithBus(bus), WithRunID("run-1"), WithScenario("collision"))
	bus.Close()

	var all []eventbus.Event
	for e := range ch {
		all = append(all, e)
	}
	start, ok := all[0].(events.RunStarted)
	if !ok {
		t.Fatalf("expected RunStarted first, got %T", all[0])
	}
	if start.RunID != "run-1" || start.Scenario != "collision" || start.Horizon != 4 {
		t.Fatalf("unexpected start event %+v", start)
	}
	if len(start.Devices) != 2 || start.Devices[0] != "evse-a" || start.Devices[1] != "evse-b" {
		t.Fatalf("expected sorted device ids, got %v", start.Devices)
	}
	done, ok := all[len(all)-1].(events.RunDone)
	if !ok {
		t.Fatalf("expected RunDone last, got %T", all[len(all)-1])
	}
	if done.Verdict != string(VerdictTripped) || done.Trips != 1 {
		t.Fatalf("unexpected done event %+v", done)
	}

	trips, closed, signals, requests := 0, 0, 0, 0
	for _, e := range all {
		switch ev := e.(type) {
		case events.Trip:
			trips++
			if ev.Event.Step != 0 {
				t.Fatalf("expected trip at step 0, got %d", ev.Event.Step)
			}
		case events.StepClosed:
			closed++
		case events.StepSignals:
			signals++
		case events.StepRequests:
			requests++
		}
	}
	if trips != 1 {
		t.Fatalf("expected 1 trip event, got %d", trips)
	}
	if closed != rep.Horizon || signals != rep.Horizon {
		t.Fatalf("expected %d closed and signal events, got %d and %d", rep.Horizon, closed, signals)
	}
	if requests != 0 {
		t.Fatalf("uncoordinated runs must not negotiate, got %d request events", requests)
	}
}

type captureSink struct {
	runs    []metrics.RunRecord
	steps   []metrics.StepRecord
	devices []metrics.DeviceRecord
	trips   []metrics.TripRecord
}

func (s *captureSink) RecordRun(rec metrics.RunRecord) error   { s.runs = append(s.runs, rec); return nil }
func (s *captureSink) RecordStep(rec metrics.StepRecord) error { s.steps = append(s.steps, rec); return nil }
func (s *captureSink) RecordDeviceRuns(recs []metrics.DeviceRecord) error {
	s.devices = append(s.devices, recs...)
	return nil
}
func (s *captureSink) RecordTrip(rec metrics.TripRecord) error { s.trips = append(s.trips, rec); return nil }

func TestRunFeedsEverySinkCapability(t *testing.T) {
	sink := &captureSink{}
	rep := mustRun(t, evening(t), twoSessions(t, 4), nil, breaker.ModeDetect, WithSink(sink))

	if len(sink.runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(sink.runs))
	}
	run := sink.runs[0]
	if run.Verdict != string(VerdictTripped) || run.Trips != 1 || run.InfeasibleSessions != 0 {
		t.Fatalf("unexpected run record %+v", run)
	}
	if len(sink.steps) != rep.Horizon {
		t.Fatalf("expected %d step records, got %d", rep.Horizon, len(sink.steps))
	}
	if !sink.steps[0].Tripped || sink.steps[1].Tripped {
		t.Fatalf("expected only step 0 marked tripped, got %+v", sink.steps)
	}
	if len(sink.trips) != 1 || sink.trips[0].OverloadA != 10 {
		t.Fatalf("expected one 10A overload record, got %+v", sink.trips)
	}
	if len(sink.devices) != 2 {
		t.Fatalf("expected 2 device records, got %d", len(sink.devices))
	}
	for _, d := range sink.devices {
		almost(t, d.Device+" energy", float64(d.EnergyKWh), 7.2, 1e-9)
		if d.Infeasible {
			t.Fatalf("%s: unexpected infeasible mark", d.Device)
		}
	}
}

type failingNegotiator struct{}

func (failingNegotiator) Name() string { return "failing" }
func (failingNegotiator) Negotiate(int, []coord.Request, model.Amps) ([]coord.Grant, error) {
	return nil, coord.ErrAllocationConflict
}

type failingPlanner struct{}

func (failingPlanner) Name() string { return "failing" }
func (failingPlanner) Plan(coord.PlanContext) (map[string][]model.Amps, error) {
	return nil, coord.ErrPlanInfeasible
}

func TestNegotiationErrorAbortsRun(t *testing.T) {
	r, err := NewRunner(evening(t), twoSessions(t, 4), failingNegotiator{}, breaker.New(breaker.ModeDetect))
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	if _, err := r.Run(); !errors.Is(err, coord.ErrAllocationConflict) {
		t.Fatalf("expected allocation conflict, got %v", err)
	}
}

func TestPlanErrorAbortsRun(t *testing.T) {
	r, err := NewRunner(evening(t), twoSessions(t, 4), failingPlanner{}, breaker.New(breaker.ModeDetect))
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	if _, err := r.Run(); !errors.Is(err, coord.ErrPlanInfeasible) {
		t.Fatalf("expected plan infeasible, got %v", err)
	}
}

func TestRunnerRejectsBrokenSetups(t *testing.T) {
	src := evening(t)

	if _, err := NewRunner(nil, nil, nil, breaker.New(breaker.ModeDetect)); err == nil {
		t.Fatal("expected error for nil source")
	}

	dup := twoSessions(t, 4)
	dup = append(dup, dup[0])
	if _, err := NewRunner(src, dup, nil, breaker.New(breaker.ModeDetect)); err == nil {
		t.Fatal("expected error for duplicate device ids")
	}

	sess := model.Session{Device: "evse-short", Arrival: 0, Deadline: 1, EnergyKWh: 2.4, MaxCurrent: 20}
	short, err := device.New(sess, 0, nil, 2)
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	if _, err := NewRunner(src, []*device.Device{short}, nil, breaker.New(breaker.ModeDetect)); err == nil {
		t.Fatal("expected error for horizon mismatch")
	}
}

func TestRunnerIsSingleUse(t *testing.T) {
	r, err := NewRunner(evening(t), twoSessions(t, 4), nil, breaker.New(breaker.ModeDetect))
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	if _, err := r.Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := r.Run(); err == nil {
		t.Fatal("expected error on second run")
	}
}

func TestZeroHorizonRunCompletes(t *testing.T) {
	src, err := signal.NewShared(nil, nil)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	rep := mustRun(t, src, nil, nil, breaker.ModeDetect)
	if rep.Verdict != VerdictCompleted {
		t.Fatalf("expected verdict %q, got %q", VerdictCompleted, rep.Verdict)
	}
	if rep.Horizon != 0 || len(rep.Devices) != 0 || rep.EnergyKWh != 0 {
		t.Fatalf("expected an empty report, got %+v", rep)
	}
}
