package runlog

import (
	"fmt"

	"github.com/jakewins/price-signals/core/factory"
)

var stores = factory.NewRegistry[Store]()

func init() {
	stores.MustRegister("jsonl", func(conf map[string]any) (Store, error) {
		var c struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("jsonl store: path is required")
		}
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	})
	stores.MustRegister("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite store: path is required")
		}
		return NewSQLiteStore(c.Path)
	})
}

// NewStore instantiates a store from configuration.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	return stores.Create(cfg)
}

// StoreTypes lists the registered store backends.
func StoreTypes() []string { return stores.Types() }
