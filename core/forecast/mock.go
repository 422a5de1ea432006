package forecast

import "github.com/jakewins/price-signals/core/model"

// Mock returns a fixed threshold and records what it was fitted with.
type Mock struct {
	Limit  model.EurPerKWh
	OK     bool
	Fitted []model.EurPerKWh
}

// Fit records the series for assertions.
func (m *Mock) Fit(prices []model.EurPerKWh) {
	m.Fitted = append([]model.EurPerKWh(nil), prices...)
}

// Threshold returns the configured limit.
func (m *Mock) Threshold(int) (model.EurPerKWh, bool) {
	return m.Limit, m.OK
}
