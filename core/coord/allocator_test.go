package coord

import (
	"testing"

	"github.com/jakewins/price-signals/core/model"
)

func TestFairShareSplitsEvenly(t *testing.T) {
	reqs := []Request{
		{Device: "a", Amps: 1},
		{Device: "b", Amps: 1},
	}
	grants := FairShare(reqs, 1)
	if grants[0].Amps != 0.5 || grants[1].Amps != 0.5 {
		t.Fatalf("expected 0.5/0.5 got %v", grants)
	}
}

func TestFairShareRedistributesSurplus(t *testing.T) {
	// a wants less than an even share; b picks up the slack.
	reqs := []Request{
		{Device: "a", Amps: 5},
		{Device: "b", Amps: 30},
	}
	grants := FairShare(reqs, 20)
	if grants[0].Amps != 5 {
		t.Fatalf("expected 5 got %v", grants[0].Amps)
	}
	if grants[1].Amps != 15 {
		t.Fatalf("expected 15 got %v", grants[1].Amps)
	}
}

func TestFairShareNeverExceedsLimit(t *testing.T) {
	reqs := []Request{
		{Device: "a", Amps: 7},
		{Device: "b", Amps: 13},
		{Device: "c", Amps: 17},
	}
	grants := FairShare(reqs, 10)
	var sum model.Amps
	for _, g := range grants {
		sum += g.Amps
		if g.Amps < 0 {
			t.Fatalf("negative grant %v", g)
		}
	}
	if sum > 10 {
		t.Fatalf("grants sum to %v over limit 10", sum)
	}
	if sum < 9.99 {
		t.Fatalf("capacity left unused: %v", sum)
	}
}

func TestFairShareSatisfiedWhenCapacityCovers(t *testing.T) {
	reqs := []Request{
		{Device: "a", Amps: 8},
		{Device: "b", Amps: 12},
	}
	grants := FairShare(reqs, 30)
	if grants[0].Amps != 8 || grants[1].Amps != 12 {
		t.Fatalf("expected full grants got %v", grants)
	}
}

func TestFairShareZeroLimit(t *testing.T) {
	grants := FairShare([]Request{{Device: "a", Amps: 10}}, 0)
	if grants[0].Amps != 0 {
		t.Fatalf("expected 0 got %v", grants[0].Amps)
	}
}

func TestPriorityServesUrgentFirst(t *testing.T) {
	reqs := []Request{
		{Device: "a", Amps: 20, RemainingKWh: 5, StepsLeft: 3},
		{Device: "b", Amps: 20, RemainingKWh: 5, StepsLeft: 1},
	}
	grants := Priority(reqs, 30)
	// b has one step left and is served in full; a gets the rest.
	if grants[1].Amps != 20 {
		t.Fatalf("expected 20 got %v", grants[1].Amps)
	}
	if grants[0].Amps != 10 {
		t.Fatalf("expected 10 got %v", grants[0].Amps)
	}
}

func TestPriorityTieBreaksOnNeedThenID(t *testing.T) {
	reqs := []Request{
		{Device: "a", Amps: 20, RemainingKWh: 2, StepsLeft: 2},
		{Device: "b", Amps: 20, RemainingKWh: 6, StepsLeft: 2},
	}
	grants := Priority(reqs, 20)
	if grants[1].Amps != 20 || grants[0].Amps != 0 {
		t.Fatalf("expected b first, got %v", grants)
	}

	reqs = []Request{
		{Device: "b", Amps: 20, RemainingKWh: 2, StepsLeft: 2},
		{Device: "a", Amps: 20, RemainingKWh: 2, StepsLeft: 2},
	}
	grants = Priority(reqs, 20)
	if grants[1].Amps != 20 || grants[0].Amps != 0 {
		t.Fatalf("expected a first on id tie, got %v", grants)
	}
}

func TestNewAllocator(t *testing.T) {
	if _, err := NewAllocator(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewAllocator("priority"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewAllocator("lottery"); err == nil {
		t.Fatal("expected error got nil")
	}
}
