package model

import "fmt"

// Session is one charging demand: an amount of energy a device must deliver
// between an arrival step and a deadline step, bounded per step by the
// session's maximum current. Deadline is inclusive: the session may still
// draw during its deadline step.
type Session struct {
	Device     string `json:"device"`
	Arrival    int    `json:"arrival"`
	Deadline   int    `json:"deadline"`
	EnergyKWh  KWh    `json:"energy_kwh"`
	MaxCurrent Amps   `json:"max_current_a"`
}

// Validate reports whether the session is internally coherent. It does not
// check the session against a horizon; the engine does that when devices
// are registered.
func (s Session) Validate() error {
	if s.Device == "" {
		return fmt.Errorf("session: device id is empty")
	}
	if s.Arrival < 0 {
		return fmt.Errorf("session %s: arrival %d before step 0", s.Device, s.Arrival)
	}
	if s.Deadline < s.Arrival {
		return fmt.Errorf("session %s: deadline %d before arrival %d", s.Device, s.Deadline, s.Arrival)
	}
	if s.EnergyKWh < 0 {
		return fmt.Errorf("session %s: negative energy %v", s.Device, s.EnergyKWh)
	}
	if s.MaxCurrent <= 0 {
		return fmt.Errorf("session %s: max current %v must be positive", s.Device, s.MaxCurrent)
	}
	return nil
}

// Steps is the number of steps the session may draw in.
func (s Session) Steps() int {
	return s.Deadline - s.Arrival + 1
}

// Active reports whether the session is allowed to draw at the given step.
func (s Session) Active(step int) bool {
	return step >= s.Arrival && step <= s.Deadline
}

// MaxEnergy is the most energy the session could take on its own, drawing
// its maximum current at every usable step.
func (s Session) MaxEnergy() KWh {
	return KWh(float64(s.MaxCurrent.StepEnergy()) * float64(s.Steps()))
}

// FeasibleAlone reports whether the demand could be met with no other load
// on the circuit. Sessions that fail this are lost causes before the run
// starts and are reported as infeasible at their arrival step.
func (s Session) FeasibleAlone() bool {
	return s.EnergyKWh <= s.MaxEnergy()
}
