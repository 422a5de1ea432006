// Package scenarios loads runnable setups from YAML and assembles the
// engine for them: sessions, signal series, coordination strategy, breaker
// mode and optional expectations to check the outcome against.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jakewins/price-signals/core/factory"
	"github.com/jakewins/price-signals/core/model"
)

// DeviceDef describes one charging point and the session it works through.
type DeviceDef struct {
	ID          string               `yaml:"id"`
	Arrival     int                  `yaml:"arrival"`
	Deadline    int                  `yaml:"deadline"`
	EnergyKWh   float64              `yaml:"energy_kwh"`
	MaxCurrentA float64              `yaml:"max_current_a"`
	Policy      factory.ModuleConfig `yaml:"policy,omitempty"`
}

// Session converts the definition to the model session.
func (d DeviceDef) Session() model.Session {
	return model.Session{
		Device:     d.ID,
		Arrival:    d.Arrival,
		Deadline:   d.Deadline,
		EnergyKWh:  model.KWh(d.EnergyKWh),
		MaxCurrent: model.Amps(d.MaxCurrentA),
	}
}

// OverrideDef replaces parts of the shared series for one device. Series
// left out fall back to the shared values.
type OverrideDef struct {
	PricesEurKWh []float64 `yaml:"prices_eur_kwh,omitempty"`
	CapacityA    []float64 `yaml:"capacity_a,omitempty"`
}

// Expected states the outcome a scenario is supposed to produce.
type Expected struct {
	Tripped    bool     `yaml:"tripped"`
	Infeasible []string `yaml:"infeasible,omitempty"`
	MaxCostEur float64  `yaml:"max_cost_eur,omitempty"`
}

// Def is one scenario: the series to replay, the devices drawing from the
// shared feed and the coordination put between them. Prices come either
// inline or from a tariff feed; capacity and override series of length one
// broadcast to the whole horizon.
type Def struct {
	Name         string                 `yaml:"name"`
	Description  string                 `yaml:"description,omitempty"`
	Horizon      int                    `yaml:"horizon,omitempty"`
	PricesEurKWh []float64              `yaml:"prices_eur_kwh,omitempty"`
	Tariff       *factory.ModuleConfig  `yaml:"tariff,omitempty"`
	CapacityA    []float64              `yaml:"capacity_a"`
	Overrides    map[string]OverrideDef `yaml:"overrides,omitempty"`
	Devices      []DeviceDef            `yaml:"devices"`
	Strategy     factory.ModuleConfig   `yaml:"strategy,omitempty"`
	Breaker      string                 `yaml:"breaker,omitempty"`
	Expected     *Expected              `yaml:"expected,omitempty"`
}

// Load reads a scenario definition from a YAML file.
func Load(path string) (*Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scenario definition.
func Parse(data []byte) (*Def, error) {
	var d Def
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the definition is coherent before anything is built from
// it. Session-level problems surface later, when devices are constructed.
func (d *Def) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("scenario: name is empty")
	}
	if len(d.PricesEurKWh) > 0 && d.Tariff != nil {
		return fmt.Errorf("scenario %s: both inline prices and a tariff feed given", d.Name)
	}
	if len(d.PricesEurKWh) == 0 && d.Tariff == nil {
		return fmt.Errorf("scenario %s: no prices: set prices_eur_kwh or tariff", d.Name)
	}
	if len(d.PricesEurKWh) > 0 && d.Horizon != 0 && d.Horizon != len(d.PricesEurKWh) {
		return fmt.Errorf("scenario %s: horizon %d does not match %d inline prices", d.Name, d.Horizon, len(d.PricesEurKWh))
	}
	horizon := d.horizon()
	if horizon <= 0 {
		return fmt.Errorf("scenario %s: a tariff feed needs a positive horizon, got %d", d.Name, d.Horizon)
	}
	if err := seriesLength("capacity_a", d.CapacityA, horizon); err != nil {
		return fmt.Errorf("scenario %s: %w", d.Name, err)
	}
	if len(d.Devices) == 0 {
		return fmt.Errorf("scenario %s: no devices", d.Name)
	}
	for id, o := range d.Overrides {
		if len(o.PricesEurKWh) == 0 && len(o.CapacityA) == 0 {
			return fmt.Errorf("scenario %s: override for %s is empty", d.Name, id)
		}
		if len(o.PricesEurKWh) > 0 {
			if err := seriesLength("prices_eur_kwh", o.PricesEurKWh, horizon); err != nil {
				return fmt.Errorf("scenario %s: override for %s: %w", d.Name, id, err)
			}
		}
		if len(o.CapacityA) > 0 {
			if err := seriesLength("capacity_a", o.CapacityA, horizon); err != nil {
				return fmt.Errorf("scenario %s: override for %s: %w", d.Name, id, err)
			}
		}
	}
	return nil
}

// horizon is the number of steps the scenario replays: the length of the
// inline price series, or the declared horizon when prices come from a feed.
func (d *Def) horizon() int {
	if len(d.PricesEurKWh) > 0 {
		return len(d.PricesEurKWh)
	}
	return d.Horizon
}

func seriesLength(field string, vals []float64, horizon int) error {
	if len(vals) == 0 {
		return fmt.Errorf("%s is empty", field)
	}
	if len(vals) != 1 && len(vals) != horizon {
		return fmt.Errorf("%s has %d points, want 1 or %d", field, len(vals), horizon)
	}
	return nil
}
