package coord

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/jakewins/price-signals/core/logger"
	"github.com/jakewins/price-signals/core/model"
)

// LP plans the whole fleet at once by solving a linear program: minimise
// total energy cost subject to per-step feed capacity, per-device draw
// limits and each session's energy demand. When the program has no
// solution the planner falls back to price response, which always
// produces schedules and lets infeasibility surface during the run.
type LP struct {
	log      logger.Logger
	fallback Planner
	solve    func(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) ([]float64, error)
}

// NewLP returns an LP planner with the price-response fallback.
func NewLP() *LP {
	fallback, err := NewPriceResponse(8)
	if err != nil {
		panic(err)
	}
	return &LP{log: logger.NopLogger{}, fallback: fallback, solve: solveSimplex}
}

func (l *LP) Name() string { return "lp" }

func (l *LP) SetLogger(log logger.Logger) {
	l.log = log
	if ls, ok := l.fallback.(LogSettable); ok {
		ls.SetLogger(log)
	}
}

// Plan solves for cost-optimal schedules, falling back when the demand
// cannot fit the capacity.
func (l *LP) Plan(ctx PlanContext) (map[string][]model.Amps, error) {
	plans, err := l.solveAll(ctx)
	if err != nil {
		l.log.Warnf("lp plan failed, falling back to %s: %v", l.fallback.Name(), err)
		return l.fallback.Plan(ctx)
	}
	return plans, nil
}

type lpVar struct {
	dev  int
	step int
}

func (l *LP) solveAll(ctx PlanContext) (map[string][]model.Amps, error) {
	plans := make(map[string][]model.Amps, len(ctx.Devices))
	for _, d := range ctx.Devices {
		plans[d.ID] = make([]model.Amps, ctx.Horizon)
	}

	// One variable per device per usable step, in device order.
	perAmp := float64(model.Amps(1).StepEnergy())
	var vars []lpVar
	capSteps := make(map[int]bool)
	for di, d := range ctx.Devices {
		if d.Session.EnergyKWh <= 0 {
			continue
		}
		for t := d.Session.Arrival; t <= d.Session.Deadline && t < ctx.Horizon; t++ {
			vars = append(vars, lpVar{dev: di, step: t})
			capSteps[t] = true
		}
	}
	if len(vars) == 0 {
		return plans, nil
	}

	steps := make([]int, 0, len(capSteps))
	for t := range capSteps {
		steps = append(steps, t)
	}
	sort.Ints(steps)

	c := make([]float64, len(vars))
	for i, v := range vars {
		c[i] = float64(ctx.Prices[v.step]) * perAmp
	}

	// Inequalities: each variable below its device limit, each step's sum
	// below the advertised capacity.
	nIneq := len(vars) + len(steps)
	g := mat.NewDense(nIneq, len(vars), nil)
	h := make([]float64, nIneq)
	for i, v := range vars {
		g.Set(i, i, 1)
		h[i] = float64(ctx.Devices[v.dev].Limit)
	}
	stepRow := make(map[int]int, len(steps))
	for si, t := range steps {
		row := len(vars) + si
		stepRow[t] = row
		h[row] = float64(ctx.Capacity[t])
	}
	for i, v := range vars {
		g.Set(stepRow[v.step], i, 1)
	}

	// Equalities: each device's draws deliver exactly its session energy.
	eqDevs := make([]int, 0, len(ctx.Devices))
	devRow := make(map[int]int, len(ctx.Devices))
	for di, d := range ctx.Devices {
		if d.Session.EnergyKWh <= 0 {
			continue
		}
		devRow[di] = len(eqDevs)
		eqDevs = append(eqDevs, di)
	}
	a := mat.NewDense(len(eqDevs), len(vars), nil)
	b := make([]float64, len(eqDevs))
	for i, v := range vars {
		a.Set(devRow[v.dev], i, perAmp)
	}
	for di, row := range devRow {
		b[row] = float64(ctx.Devices[di].Session.EnergyKWh)
	}

	sol, err := l.solve(c, g, h, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanInfeasible, err)
	}

	// lp.Convert splits each free variable into a positive and a negative
	// part; the original value is their difference.
	for i, v := range vars {
		x := sol[i] - sol[len(vars)+i]
		x = math.Max(x, 0)
		x = math.Min(x, float64(ctx.Devices[v.dev].Limit))
		plans[ctx.Devices[v.dev].ID][v.step] = model.RoundAmps(model.Amps(x))
	}

	if err := checkPlans(ctx, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// checkPlans verifies a solution actually meets the demands and the
// capacity before it is handed to devices.
func checkPlans(ctx PlanContext, plans map[string][]model.Amps) error {
	for _, d := range ctx.Devices {
		var got model.KWh
		for _, a := range plans[d.ID] {
			got += a.StepEnergy()
		}
		diff := float64(got - d.Session.EnergyKWh)
		if math.Abs(diff) > 1e-3 {
			return fmt.Errorf("%w: device %s planned %v of %v", ErrPlanInfeasible, d.ID, got, d.Session.EnergyKWh)
		}
	}
	for t := 0; t < ctx.Horizon; t++ {
		var agg model.Amps
		for _, d := range ctx.Devices {
			agg += plans[d.ID][t]
		}
		if agg > ctx.Capacity[t]+1e-4 {
			return fmt.Errorf("%w: step %d planned %v over capacity %v", ErrPlanInfeasible, t, agg, ctx.Capacity[t])
		}
	}
	return nil
}

func solveSimplex(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) ([]float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	return sol, err
}
