package tariff

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/infra/logger"
)

// Generator synthesizes a seeded price series with a daily shape, cheap
// overnight and expensive around midday. Identical seeds yield identical
// series.
type Generator struct {
	cfg  GeneratorConfig
	log  logger.Logger
	rand *rand.Rand
}

// NewGenerator creates a new Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	return &Generator{
		cfg:  cfg,
		log:  logger.New("tariff-generator"),
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Prices produces one price per step.
func (g *Generator) Prices(_ context.Context, horizon int) ([]model.EurPerKWh, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if g.cfg.MaxPriceEurKWh < g.cfg.MinPriceEurKWh {
		return nil, fmt.Errorf("max price %.4f below min price %.4f", g.cfg.MaxPriceEurKWh, g.cfg.MinPriceEurKWh)
	}
	out := make([]model.EurPerKWh, horizon)
	for h := range out {
		out[h] = model.EurPerKWh(g.price(h))
	}
	g.log.Debugf("generated %d prices with seed %d", horizon, g.cfg.Seed)
	return out, nil
}

// price follows a cosine day curve, valley at hour 0 and peak at hour 12,
// with seeded jitter clamped to the configured bounds.
func (g *Generator) price(hour int) float64 {
	min, max := g.cfg.MinPriceEurKWh, g.cfg.MaxPriceEurKWh
	if max <= min {
		return min
	}
	mid := (min + max) / 2
	amp := (max - min) / 2
	p := mid - amp*math.Cos(2*math.Pi*float64(hour%24)/24)
	j := 1 + (g.rand.Float64()*2-1)*g.cfg.JitterPct
	p *= j
	if p < min {
		p = min
	}
	if p > max {
		p = max
	}
	return p
}
