package model

import (
	"fmt"
	"math"
)

// Electrical and market units used across the simulator. Quantities carry
// their unit in the type so conversions stay explicit at call sites.
type (
	// Amps is electrical current.
	Amps float64
	// Volts is electrical potential.
	Volts float64
	// KW is instantaneous power.
	KW float64
	// KWh is energy.
	KWh float64
	// EurPerKWh is an energy price.
	EurPerKWh float64
	// Eur is money.
	Eur float64
)

// Voltage is the supply voltage of every simulated circuit. Feeds are
// modelled as single phase at a fixed voltage for the whole run.
const Voltage Volts = 240

// StepHours is the wall-clock duration one simulation step stands for.
const StepHours = 1.0

// KW converts a current drawn at the circuit voltage into power.
func (a Amps) KW() KW {
	return KW(float64(a) * float64(Voltage) / 1000)
}

// StepEnergy is the energy delivered by holding this current for one step.
func (a Amps) StepEnergy() KWh {
	return KWh(float64(a.KW()) * StepHours)
}

// Amps converts an energy amount into the constant current that would
// deliver it within a single step.
func (e KWh) Amps() Amps {
	return Amps(float64(e) * 1000 / (float64(Voltage) * StepHours))
}

// Cost prices the energy at the given rate.
func (e KWh) Cost(p EurPerKWh) Eur {
	return Eur(float64(e) * float64(p))
}

// Draws and grants are kept at micro-amp resolution so repeated unit
// conversions cannot leak float crumbs into schedules.
const microAmp = 1e6

// RoundAmps snaps a current to micro-amp resolution.
func RoundAmps(a Amps) Amps {
	return Amps(math.Round(float64(a)*microAmp) / microAmp)
}

// FloorAmps rounds a current down to micro-amp resolution. Allocators use
// it so a set of grants never sums above the limit they were cut from.
func FloorAmps(a Amps) Amps {
	return Amps(math.Floor(float64(a)*microAmp) / microAmp)
}

func (a Amps) String() string      { return fmt.Sprintf("%.2fA", float64(a)) }
func (e KWh) String() string       { return fmt.Sprintf("%.3fkWh", float64(e)) }
func (p EurPerKWh) String() string { return fmt.Sprintf("%.4f€/kWh", float64(p)) }
func (m Eur) String() string       { return fmt.Sprintf("%.2f€", float64(m)) }
