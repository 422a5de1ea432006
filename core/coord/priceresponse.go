package coord

import (
	"fmt"

	"github.com/jakewins/price-signals/core/logger"
	"github.com/jakewins/price-signals/core/model"
)

// PriceResponse plans by probing. Every device is asked what it would draw
// under the advertised capacity; wherever the answers overload a step, the
// advertised capacity of the drawers is shrunk pro rata and the fleet is
// asked again. Rounds repeat until the answers fit or the round budget is
// spent, after which any leftover overload is curtailed outright.
type PriceResponse struct {
	maxRounds int
	log       logger.Logger
}

// NewPriceResponse builds the planner with the given round budget.
func NewPriceResponse(maxRounds int) (*PriceResponse, error) {
	if maxRounds <= 0 {
		return nil, fmt.Errorf("price response: max rounds must be positive, got %d", maxRounds)
	}
	return &PriceResponse{maxRounds: maxRounds, log: logger.NopLogger{}}, nil
}

func (p *PriceResponse) Name() string { return "price_response" }

func (p *PriceResponse) SetLogger(log logger.Logger) { p.log = log }

func (p *PriceResponse) Plan(ctx PlanContext) (map[string][]model.Amps, error) {
	if len(ctx.Responders) == 0 {
		if len(ctx.Devices) == 0 {
			return map[string][]model.Amps{}, nil
		}
		return nil, fmt.Errorf("price response: no responders for %d devices", len(ctx.Devices))
	}

	adv := make(map[string][]model.Amps, len(ctx.Responders))
	for _, r := range ctx.Responders {
		caps := make([]model.Amps, len(ctx.Capacity))
		copy(caps, ctx.Capacity)
		adv[r.Info.ID] = caps
	}

	var plans map[string][]model.Amps
	for round := 0; ; round++ {
		plans = p.probe(ctx, adv)
		violated := overloadedSteps(ctx, plans)
		if len(violated) == 0 {
			return plans, nil
		}
		if round >= p.maxRounds {
			p.log.Warnf("price response: %d steps still overloaded after %d rounds, curtailing", len(violated), p.maxRounds)
			break
		}
		p.log.Debugf("price response round %d: shrinking capacity at %d steps", round, len(violated))
		p.shrink(ctx, adv, plans, violated)
	}

	// Out of rounds: force the remaining overloads down. The energy lost
	// here shows up as infeasible sessions when the plan is executed.
	for _, t := range overloadedSteps(ctx, plans) {
		var agg model.Amps
		for _, r := range ctx.Responders {
			agg += plans[r.Info.ID][t]
		}
		factor := float64(ctx.Capacity[t]) / float64(agg)
		for _, r := range ctx.Responders {
			plans[r.Info.ID][t] = model.FloorAmps(model.Amps(float64(plans[r.Info.ID][t]) * factor))
		}
	}
	return plans, nil
}

// probe collects every responder's answer to its advertised capacity.
func (p *PriceResponse) probe(ctx PlanContext, adv map[string][]model.Amps) map[string][]model.Amps {
	plans := make(map[string][]model.Amps, len(ctx.Responders))
	for _, r := range ctx.Responders {
		plans[r.Info.ID] = r.Respond(ctx.Prices, adv[r.Info.ID])
	}
	return plans
}

// overloadedSteps lists the steps where the answers exceed the real
// capacity, in step order.
func overloadedSteps(ctx PlanContext, plans map[string][]model.Amps) []int {
	var out []int
	for t := 0; t < ctx.Horizon; t++ {
		var agg model.Amps
		for _, r := range ctx.Responders {
			agg += plans[r.Info.ID][t]
		}
		if agg > ctx.Capacity[t]+epsAmps {
			out = append(out, t)
		}
	}
	return out
}

// shrink advertises each drawer a pro-rata slice of the real capacity at
// every overloaded step. Devices not drawing there keep their view.
func (p *PriceResponse) shrink(ctx PlanContext, adv, plans map[string][]model.Amps, violated []int) {
	for _, t := range violated {
		var agg model.Amps
		for _, r := range ctx.Responders {
			agg += plans[r.Info.ID][t]
		}
		factor := float64(ctx.Capacity[t]) / float64(agg)
		for _, r := range ctx.Responders {
			draw := plans[r.Info.ID][t]
			if draw <= 0 {
				continue
			}
			adv[r.Info.ID][t] = model.FloorAmps(model.Amps(float64(draw) * factor))
		}
	}
}
