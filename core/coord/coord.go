// Package coord holds the coordination strategies a run can put between
// devices and the shared feed. A strategy is either nothing at all, a
// per-step negotiator handing out grants, or a central planner computing
// whole-horizon schedules before the first step.
package coord

import (
	"errors"

	"github.com/jakewins/price-signals/core/factory"
	"github.com/jakewins/price-signals/core/logger"
	"github.com/jakewins/price-signals/core/model"
)

// ErrAllocationConflict is returned when granted draws would exceed the
// limit they were allocated from. It always indicates an allocator bug.
var ErrAllocationConflict = errors.New("grants exceed capacity limit")

// ErrPlanInfeasible is returned when a planner cannot produce schedules
// that satisfy every session.
var ErrPlanInfeasible = errors.New("plan infeasible")

// Strategy is the common surface of all coordination modes. The engine
// discovers what a strategy can do through type assertions on Negotiator
// and Planner.
type Strategy interface {
	Name() string
}

// Request is one device's ask for the current step.
type Request struct {
	Device       string
	Amps         model.Amps
	RemainingKWh model.KWh
	// StepsLeft counts the usable steps including the current one.
	StepsLeft int
}

// Grant is the draw ceiling a device receives for the current step.
type Grant struct {
	Device string
	Amps   model.Amps
}

// Negotiator hands out per-step grants. The sum of the grants must never
// exceed the limit.
type Negotiator interface {
	Strategy
	Negotiate(step int, reqs []Request, limit model.Amps) ([]Grant, error)
}

// DeviceInfo is what a planner may know about a device.
type DeviceInfo struct {
	ID      string
	Session model.Session
	Limit   model.Amps
}

// ResponseFunc asks a device what it would draw under the given price and
// capacity series. Probing has no effect on the device's real state.
type ResponseFunc func(prices []model.EurPerKWh, caps []model.Amps) []model.Amps

// Responder pairs a device's identity with its probe function.
type Responder struct {
	Info    DeviceInfo
	Respond ResponseFunc
}

// PlanContext is everything a planner sees: the full horizon as shared
// series plus the device population.
type PlanContext struct {
	Horizon    int
	Prices     []model.EurPerKWh
	Capacity   []model.Amps
	Devices    []DeviceInfo
	Responders []Responder
}

// Planner computes whole-horizon schedules, keyed by device, before the
// run's first step.
type Planner interface {
	Strategy
	Plan(ctx PlanContext) (map[string][]model.Amps, error)
}

var strategies = factory.NewRegistry[Strategy]()

func init() {
	strategies.MustRegister("none", func(map[string]any) (Strategy, error) {
		return NoCoordination{}, nil
	})
	strategies.MustRegister("negotiated", func(conf map[string]any) (Strategy, error) {
		c := struct {
			Allocator string `json:"allocator"`
		}{Allocator: "fair_share"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		alloc, err := NewAllocator(c.Allocator)
		if err != nil {
			return nil, err
		}
		return &Negotiated{allocator: alloc, allocatorName: c.Allocator}, nil
	})
	strategies.MustRegister("lp", func(map[string]any) (Strategy, error) {
		return NewLP(), nil
	})
	strategies.MustRegister("price_response", func(conf map[string]any) (Strategy, error) {
		c := struct {
			MaxRounds int `json:"max_rounds"`
		}{MaxRounds: 8}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPriceResponse(c.MaxRounds)
	})
}

// NewStrategy instantiates a strategy from configuration.
func NewStrategy(cfg factory.ModuleConfig) (Strategy, error) {
	return strategies.Create(cfg)
}

// StrategyTypes lists the registered strategy names.
func StrategyTypes() []string { return strategies.Types() }

// NoCoordination leaves every device to its own policy. The breaker is the
// only thing standing between the fleet and the feed limit.
type NoCoordination struct{}

func (NoCoordination) Name() string { return "none" }

// LogSettable is implemented by strategies that log; the engine injects its
// logger into any strategy exposing it.
type LogSettable interface {
	SetLogger(logger.Logger)
}
