// Package signal exposes the price and capacity series a run replays.
// Sources are immutable once built: reads carry no side effects and the
// same query always returns the same point, so devices may re-read their
// window every step.
package signal

import (
	"errors"
	"fmt"

	"github.com/jakewins/price-signals/core/model"
)

// ErrOutOfRange is returned for queries outside the source horizon.
var ErrOutOfRange = errors.New("step outside signal horizon")

// Feed is the identity the engine itself queries with: always the base
// series, never a per-device override. The feed's capacity is what the
// breaker enforces.
const Feed = ""

// Source yields the signal one device sees for one step.
type Source interface {
	At(step int, device string) (model.SignalPoint, error)
	Horizon() int
}

// Shared is a source where every device sees the same series.
type Shared struct {
	points []model.SignalPoint
}

// NewShared builds a shared source from parallel price and capacity series.
func NewShared(prices []model.EurPerKWh, capacity []model.Amps) (*Shared, error) {
	if len(prices) != len(capacity) {
		return nil, fmt.Errorf("signal: %d prices but %d capacity points", len(prices), len(capacity))
	}
	points := make([]model.SignalPoint, len(prices))
	for i := range prices {
		if capacity[i] < 0 {
			return nil, fmt.Errorf("signal: negative capacity %v at step %d", capacity[i], i)
		}
		points[i] = model.SignalPoint{Price: prices[i], Capacity: capacity[i]}
	}
	return &Shared{points: points}, nil
}

func (s *Shared) Horizon() int { return len(s.points) }

func (s *Shared) At(step int, _ string) (model.SignalPoint, error) {
	if step < 0 || step >= len(s.points) {
		return model.SignalPoint{}, fmt.Errorf("signal: step %d: %w", step, ErrOutOfRange)
	}
	return s.points[step], nil
}

// PerDevice overlays device-specific series on a base source. Devices with
// no override see the base. Override series must cover the base horizon.
type PerDevice struct {
	base      Source
	overrides map[string][]model.SignalPoint
}

// NewPerDevice wraps base with per-device overrides.
func NewPerDevice(base Source, overrides map[string][]model.SignalPoint) (*PerDevice, error) {
	for id, series := range overrides {
		if len(series) != base.Horizon() {
			return nil, fmt.Errorf("signal: override for %s covers %d steps, horizon is %d", id, len(series), base.Horizon())
		}
	}
	return &PerDevice{base: base, overrides: overrides}, nil
}

func (p *PerDevice) Horizon() int { return p.base.Horizon() }

func (p *PerDevice) At(step int, device string) (model.SignalPoint, error) {
	series, ok := p.overrides[device]
	if !ok {
		return p.base.At(step, device)
	}
	if step < 0 || step >= len(series) {
		return model.SignalPoint{}, fmt.Errorf("signal: step %d: %w", step, ErrOutOfRange)
	}
	return series[step], nil
}

// Series materialises the full view one device has of a source. Central
// planners use it to look at the whole horizon at once.
func Series(src Source, device string) ([]model.EurPerKWh, []model.Amps, error) {
	prices := make([]model.EurPerKWh, src.Horizon())
	caps := make([]model.Amps, src.Horizon())
	for step := 0; step < src.Horizon(); step++ {
		pt, err := src.At(step, device)
		if err != nil {
			return nil, nil, err
		}
		prices[step] = pt.Price
		caps[step] = pt.Capacity
	}
	return prices, caps, nil
}
