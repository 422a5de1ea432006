package sim

import "iter"

// Clock walks the steps of a run in order. The sequence is lazy and
// restartable: each call to Steps yields 0..Horizon()-1 afresh.
type Clock struct {
	horizon int
}

func NewClock(horizon int) Clock {
	if horizon < 0 {
		horizon = 0
	}
	return Clock{horizon: horizon}
}

func (c Clock) Horizon() int {
	return c.horizon
}

func (c Clock) Steps() iter.Seq[int] {
	return func(yield func(int) bool) {
		for step := 0; step < c.horizon; step++ {
			if !yield(step) {
				return
			}
		}
	}
}
