package scenarios

import (
	"context"
	"fmt"

	"github.com/jakewins/price-signals/core/breaker"
	"github.com/jakewins/price-signals/core/coord"
	"github.com/jakewins/price-signals/core/device"
	"github.com/jakewins/price-signals/core/forecast"
	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/core/signal"
	"github.com/jakewins/price-signals/core/sim"
	"github.com/jakewins/price-signals/tariff"
)

// Build assembles a single-use runner for the scenario. Feed-backed price
// series are fetched here, so the context bounds any network access. Extra
// options are applied after the scenario's own.
func (d *Def) Build(ctx context.Context, opts ...sim.Option) (*sim.Runner, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	prices, err := d.resolvePrices(ctx)
	if err != nil {
		return nil, err
	}
	horizon := len(prices)

	base, err := signal.NewShared(prices, broadcastAmps(d.CapacityA, horizon))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
	}
	var src signal.Source = base
	if len(d.Overrides) > 0 {
		src, err = d.overlay(base, horizon)
		if err != nil {
			return nil, err
		}
	}

	devices := make([]*device.Device, 0, len(d.Devices))
	for _, dd := range d.Devices {
		var pol device.Policy
		if dd.Policy.Type != "" {
			pol, err = device.NewPolicy(dd.Policy)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: device %s: %w", d.Name, dd.ID, err)
			}
		}
		dev, err := device.New(dd.Session(), 0, pol, horizon)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
		}
		// Forecast-backed policies see the series the device itself will
		// replay, overrides included.
		if f, ok := dev.Policy().(forecast.Fitter); ok {
			series, _, err := signal.Series(src, dev.ID())
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
			}
			f.Fit(series)
		}
		devices = append(devices, dev)
	}

	var strat coord.Strategy
	if d.Strategy.Type != "" {
		strat, err = coord.NewStrategy(d.Strategy)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: strategy: %w", d.Name, err)
		}
	}
	mode, err := breaker.ParseMode(d.Breaker)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
	}

	opts = append([]sim.Option{sim.WithScenario(d.Name)}, opts...)
	runner, err := sim.NewRunner(src, devices, strat, breaker.New(mode), opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
	}
	return runner, nil
}

func (d *Def) resolvePrices(ctx context.Context) ([]model.EurPerKWh, error) {
	if len(d.PricesEurKWh) > 0 {
		prices := make([]model.EurPerKWh, len(d.PricesEurKWh))
		for i, p := range d.PricesEurKWh {
			prices[i] = model.EurPerKWh(p)
		}
		return prices, nil
	}
	feed, err := tariff.NewFeed(*d.Tariff)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: tariff: %w", d.Name, err)
	}
	prices, err := feed.Prices(ctx, d.Horizon)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: tariff: %w", d.Name, err)
	}
	return prices, nil
}

func (d *Def) overlay(base signal.Source, horizon int) (signal.Source, error) {
	over := make(map[string][]model.SignalPoint, len(d.Overrides))
	for id, o := range d.Overrides {
		var prices []model.EurPerKWh
		var caps []model.Amps
		if len(o.PricesEurKWh) > 0 {
			prices = broadcastPrices(o.PricesEurKWh, horizon)
		}
		if len(o.CapacityA) > 0 {
			caps = broadcastAmps(o.CapacityA, horizon)
		}
		pts := make([]model.SignalPoint, horizon)
		for step := range pts {
			pt, err := base.At(step, id)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
			}
			if prices != nil {
				pt.Price = prices[step]
			}
			if caps != nil {
				pt.Capacity = caps[step]
			}
			pts[step] = pt
		}
		over[id] = pts
	}
	src, err := signal.NewPerDevice(base, over)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
	}
	return src, nil
}

func broadcastAmps(vals []float64, horizon int) []model.Amps {
	out := make([]model.Amps, horizon)
	for i := range out {
		v := vals[0]
		if len(vals) > 1 {
			v = vals[i]
		}
		out[i] = model.Amps(v)
	}
	return out
}

func broadcastPrices(vals []float64, horizon int) []model.EurPerKWh {
	out := make([]model.EurPerKWh, horizon)
	for i := range out {
		v := vals[0]
		if len(vals) > 1 {
			v = vals[i]
		}
		out[i] = model.EurPerKWh(v)
	}
	return out
}
