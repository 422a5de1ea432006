package device

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jakewins/price-signals/core/factory"
	"github.com/jakewins/price-signals/core/forecast"
	"github.com/jakewins/price-signals/core/model"
)

// Option is one usable step as a device sees it while planning: the price
// offered there and the most the device could draw.
type Option struct {
	Step  int
	Price model.EurPerKWh
	Limit model.Amps
}

// Policy picks the draw to take at the first option, which is always the
// current step. Policies are pure: same options and remaining need give the
// same answer.
type Policy interface {
	Name() string
	Pick(opts []Option, remaining model.KWh) model.Amps
}

var policies = factory.NewRegistry[Policy]()

func init() {
	policies.MustRegister("cheapest", func(map[string]any) (Policy, error) {
		return CheapestSteps{}, nil
	})
	policies.MustRegister("threshold", func(conf map[string]any) (Policy, error) {
		var c struct {
			Limit float64 `json:"limit_eur_per_kwh"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Limit <= 0 {
			return nil, fmt.Errorf("threshold policy: limit_eur_per_kwh must be positive, got %v", c.Limit)
		}
		return Threshold{Limit: model.EurPerKWh(c.Limit)}, nil
	})
	policies.MustRegister("quantile", func(conf map[string]any) (Policy, error) {
		c := struct {
			Q float64 `json:"quantile"`
		}{Q: 0.5}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Q <= 0 || c.Q > 1 {
			return nil, fmt.Errorf("quantile policy: quantile must be in (0,1], got %v", c.Q)
		}
		return Quantile{Q: c.Q}, nil
	})
	policies.MustRegister("auto_threshold", func(conf map[string]any) (Policy, error) {
		c := struct {
			Window     int     `json:"window"`
			Quantile   float64 `json:"quantile"`
			MinSamples int     `json:"min_samples"`
		}{Window: 24, Quantile: 0.5, MinSamples: 1}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Quantile <= 0 || c.Quantile > 1 {
			return nil, fmt.Errorf("auto_threshold policy: quantile must be in (0,1], got %v", c.Quantile)
		}
		if c.Window <= 0 {
			return nil, fmt.Errorf("auto_threshold policy: window must be positive, got %d", c.Window)
		}
		fc := forecast.NewTrailingQuantile(c.Window, c.Quantile)
		if c.MinSamples > 1 {
			fc.MinSamples = c.MinSamples
		}
		return AutoThreshold{Forecast: fc}, nil
	})
}

// NewPolicy instantiates a policy from configuration.
func NewPolicy(cfg factory.ModuleConfig) (Policy, error) {
	return policies.Create(cfg)
}

// PolicyTypes lists the registered policy names.
func PolicyTypes() []string { return policies.Types() }

// CheapestSteps fills the remaining need into the cheapest steps of the
// window, earliest step first on price ties. The device draws now only if
// the current step is part of that plan, and then only the share the
// cheaper steps leave over.
type CheapestSteps struct{}

func (CheapestSteps) Name() string { return "cheapest" }

func (CheapestSteps) Pick(opts []Option, remaining model.KWh) model.Amps {
	if len(opts) == 0 || remaining <= 0 {
		return 0
	}
	sorted := make([]Option, len(opts))
	copy(sorted, opts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Step < sorted[j].Step
	})
	now := opts[0].Step
	need := remaining
	for _, opt := range sorted {
		if need <= 0 {
			return 0
		}
		if opt.Step == now {
			return model.RoundAmps(min(opt.Limit, need.Amps()))
		}
		need -= opt.Limit.StepEnergy()
	}
	return 0
}

// Threshold draws whenever the current price is at or below a fixed limit.
// When the rest of the window cannot absorb the remaining need, it draws
// the shortfall regardless of price rather than miss the deadline.
type Threshold struct {
	Limit model.EurPerKWh
}

func (Threshold) Name() string { return "threshold" }

func (p Threshold) Pick(opts []Option, remaining model.KWh) model.Amps {
	if len(opts) == 0 || remaining <= 0 {
		return 0
	}
	now := opts[0]
	if now.Price <= p.Limit {
		return model.RoundAmps(min(now.Limit, remaining.Amps()))
	}
	var future model.KWh
	for _, opt := range opts[1:] {
		future += opt.Limit.StepEnergy()
	}
	if future >= remaining {
		return 0
	}
	shortfall := remaining - future
	return model.RoundAmps(min(now.Limit, shortfall.Amps()))
}

// Quantile behaves like Threshold with the limit recomputed every step as
// the given quantile of the remaining window's prices. Q=0.5 draws whenever
// the current price sits in the cheaper half of what is still to come.
type Quantile struct {
	Q float64
}

func (Quantile) Name() string { return "quantile" }

func (p Quantile) Pick(opts []Option, remaining model.KWh) model.Amps {
	if len(opts) == 0 || remaining <= 0 {
		return 0
	}
	prices := make([]float64, len(opts))
	for i, opt := range opts {
		prices[i] = float64(opt.Price)
	}
	sort.Float64s(prices)
	limit := stat.Quantile(p.Q, stat.Empirical, prices, nil)
	return Threshold{Limit: model.EurPerKWh(limit)}.Pick(opts, remaining)
}

// AutoThreshold is Threshold with the limit supplied by a fitted price
// forecaster. Until the forecaster has enough samples it plans like
// CheapestSteps.
type AutoThreshold struct {
	Forecast forecast.Forecaster
}

func (AutoThreshold) Name() string { return "auto_threshold" }

// Fit hands the run's price series to the forecaster.
func (p AutoThreshold) Fit(prices []model.EurPerKWh) {
	p.Forecast.Fit(prices)
}

func (p AutoThreshold) Pick(opts []Option, remaining model.KWh) model.Amps {
	if len(opts) == 0 || remaining <= 0 {
		return 0
	}
	limit, ok := p.Forecast.Threshold(opts[0].Step)
	if !ok {
		return CheapestSteps{}.Pick(opts, remaining)
	}
	return Threshold{Limit: limit}.Pick(opts, remaining)
}
