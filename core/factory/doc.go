// Package factory provides a small generic registry used to instantiate
// modules from configuration. Modules are named by a type string and carry a
// map of raw settings. Factories decode the settings into typed structs and
// return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[Strategy]()
//	reg.MustRegister("threshold", func(conf map[string]any) (Strategy, error) {
//	    var c struct {
//	        Limit float64 `json:"limit_eur_per_kwh"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewThreshold(c.Limit), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "threshold", Conf: map[string]any{"limit_eur_per_kwh": 2.5}})
package factory
