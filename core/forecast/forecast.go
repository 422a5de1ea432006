package forecast

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jakewins/price-signals/core/model"
)

// Forecaster suggests a buy-below price per step. Implementations digest the
// whole series up front so lookups stay pure during the run.
type Forecaster interface {
	// Fit digests the hourly series the run will replay.
	Fit(prices []model.EurPerKWh)

	// Threshold returns the suggested limit for the given step. The second
	// return is false while the model has too little to go on.
	Threshold(step int) (model.EurPerKWh, bool)
}

// Fitter is implemented by policies that digest the price series before the
// run starts.
type Fitter interface {
	Fit(prices []model.EurPerKWh)
}

// TrailingQuantile suggests the given quantile of the prices seen up to and
// including the current step, over at most Window steps.
type TrailingQuantile struct {
	Window     int
	Q          float64
	MinSamples int

	prices []float64
}

// NewTrailingQuantile builds a forecaster with the given lookback window and
// quantile. A window of a day and the median make reasonable defaults.
func NewTrailingQuantile(window int, q float64) *TrailingQuantile {
	if window <= 0 {
		window = 24
	}
	if q <= 0 || q > 1 {
		q = 0.5
	}
	return &TrailingQuantile{Window: window, Q: q, MinSamples: 1}
}

// Fit stores the series the thresholds are computed against.
func (tq *TrailingQuantile) Fit(prices []model.EurPerKWh) {
	tq.prices = make([]float64, len(prices))
	for i, p := range prices {
		tq.prices[i] = float64(p)
	}
}

// Threshold returns the trailing quantile at the given step.
func (tq *TrailingQuantile) Threshold(step int) (model.EurPerKWh, bool) {
	if step < 0 || step >= len(tq.prices) {
		return 0, false
	}
	lo := step + 1 - tq.Window
	if lo < 0 {
		lo = 0
	}
	window := tq.prices[lo : step+1]
	if len(window) < tq.MinSamples {
		return 0, false
	}
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)
	return model.EurPerKWh(stat.Quantile(tq.Q, stat.Empirical, sorted, nil)), true
}
