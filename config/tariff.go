package config

import (
	"fmt"

	"github.com/jakewins/price-signals/tariff"
)

// TariffConfig defines the local day-ahead market mock the service can
// host. Scenarios with a dayahead feed point their base_url at it.
type TariffConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	// PricesEurMWh seeds the mock's price window; more can be injected
	// over HTTP while the service runs.
	PricesEurMWh []float64 `json:"prices_eur_mwh"`
}

// SetDefaults applies sane defaults.
func (c *TariffConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":9190"
	}
}

// Validate checks the section is usable when enabled.
func (c TariffConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Address == "" {
		return fmt.Errorf("tariff mock: address is required")
	}
	if len(c.PricesEurMWh) == 0 {
		return fmt.Errorf("tariff mock: prices_eur_mwh is empty")
	}
	return nil
}

// MockConfig maps the section onto the tariff server mock.
func (c TariffConfig) MockConfig() tariff.MockConfig {
	return tariff.MockConfig{Address: c.Address, PricesEurMWh: c.PricesEurMWh}
}
