package tariff

import (
	"fmt"

	"github.com/jakewins/price-signals/core/factory"
	"github.com/jakewins/price-signals/tariff/auth"
)

// GeneratorConfig bounds the synthetic series.
type GeneratorConfig struct {
	MinPriceEurKWh float64 `json:"min_price_eur_kwh"`
	MaxPriceEurKWh float64 `json:"max_price_eur_kwh"`
	JitterPct      float64 `json:"jitter_pct"`
	Seed           int64   `json:"seed"`
}

// ClientConfig points the day-ahead client at a market API.
type ClientConfig struct {
	BaseURL string    `json:"base_url"`
	Auth    auth.Conf `json:"auth"`
}

// MockConfig seeds the local market mock.
type MockConfig struct {
	Address      string    `json:"address"`
	PricesEurMWh []float64 `json:"prices_eur_mwh"`
}

var feeds = factory.NewRegistry[Feed]()

func init() {
	feeds.MustRegister("generator", func(conf map[string]any) (Feed, error) {
		var cfg GeneratorConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		if cfg.MaxPriceEurKWh <= 0 {
			return nil, fmt.Errorf("max_price_eur_kwh must be positive")
		}
		return NewGenerator(cfg), nil
	})
	feeds.MustRegister("dayahead", func(conf map[string]any) (Feed, error) {
		var cfg ClientConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewClient(cfg), nil
	})
}

// NewFeed instantiates a price feed from module configuration.
func NewFeed(cfg factory.ModuleConfig) (Feed, error) {
	return feeds.Create(cfg)
}

// FeedTypes lists the registered feed backends.
func FeedTypes() []string {
	return feeds.Types()
}
