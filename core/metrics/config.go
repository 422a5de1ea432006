package metrics

import "github.com/jakewins/price-signals/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`

	// PrometheusAddr exposes the default registry over HTTP when set,
	// e.g. ":2112". The sinks list must still name prometheus for run
	// metrics to land there.
	PrometheusAddr string `json:"prometheus_addr"`
}
