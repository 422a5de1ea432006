package scenarios

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jakewins/price-signals/core/sim"
)

// Check compares a finished run against the expectations. All mismatches
// are reported in one error.
func (e *Expected) Check(rep *sim.Report) error {
	var problems []string
	if tripped := len(rep.Trips) > 0; tripped != e.Tripped {
		problems = append(problems, fmt.Sprintf("tripped: expected %v, got %d trip(s)", e.Tripped, len(rep.Trips)))
	}
	got := make([]string, 0, len(rep.Devices))
	for _, d := range rep.Infeasible() {
		got = append(got, d.Device)
	}
	want := append([]string(nil), e.Infeasible...)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		problems = append(problems, fmt.Sprintf("infeasible: expected %v, got %v", want, got))
	}
	if e.MaxCostEur > 0 && float64(rep.CostEur) > e.MaxCostEur {
		problems = append(problems, fmt.Sprintf("cost: %v exceeds budget %v EUR", rep.CostEur, e.MaxCostEur))
	}
	if len(problems) > 0 {
		return fmt.Errorf("scenario %s: %s", rep.Scenario, strings.Join(problems, "; "))
	}
	return nil
}
