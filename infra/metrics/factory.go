package metrics

import (
	"github.com/jakewins/price-signals/core/factory"
	coremetrics "github.com/jakewins/price-signals/core/metrics"
)

// init registers the built-in metrics sinks.
func init() {
	mustRegister("nop", func(map[string]any) (coremetrics.Sink, error) {
		return coremetrics.NopSink{}, nil
	})

	mustRegister("prometheus", func(map[string]any) (coremetrics.Sink, error) {
		return NewPromSink()
	})

	mustRegister("influx", func(conf map[string]any) (coremetrics.Sink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}

func mustRegister(name string, f factory.Factory[coremetrics.Sink]) {
	if err := coremetrics.RegisterSink(name, f); err != nil {
		panic(err)
	}
}
