package model

// SignalPoint is what a device sees for one step: the price it would pay
// for energy taken in that step and the capacity the feed advertises.
type SignalPoint struct {
	Price    EurPerKWh `json:"price_eur_per_kwh"`
	Capacity Amps      `json:"capacity_a"`
}
