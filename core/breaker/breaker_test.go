package breaker

import (
	"testing"

	"github.com/jakewins/price-signals/core/model"
)

func TestCheckUnderLimitPasses(t *testing.T) {
	b := New(ModeDetect)
	draws := map[string]model.Amps{"a": 10, "b": 20}
	res := b.Check(0, 30, draws)
	if res.Trip != nil {
		t.Fatalf("unexpected trip %+v", res.Trip)
	}
	if res.Aggregate != 30 {
		t.Fatalf("expected 30 got %v", res.Aggregate)
	}
	if res.Curtailed {
		t.Fatal("expected no curtailment")
	}
}

func TestDetectRecordsTripAndLetsDrawsStand(t *testing.T) {
	b := New(ModeDetect)
	draws := map[string]model.Amps{"a": 20, "b": 20, "idle": 0}
	res := b.Check(3, 30, draws)
	if res.Trip == nil {
		t.Fatal("expected trip")
	}
	if res.Trip.Step != 3 || res.Trip.Aggregate != 40 || res.Trip.Overload != 10 {
		t.Fatalf("unexpected trip %+v", res.Trip)
	}
	if len(res.Trip.Contributors) != 2 {
		t.Fatalf("expected 2 contributors got %v", res.Trip.Contributors)
	}
	if _, ok := res.Trip.Contributors["idle"]; ok {
		t.Fatal("idle device must not contribute")
	}
	if res.Draws["a"] != 20 || res.Draws["b"] != 20 {
		t.Fatalf("draws must stand in detect mode, got %v", res.Draws)
	}
}

func TestCutoffCurtailsProRata(t *testing.T) {
	b := New(ModeCutoff)
	draws := map[string]model.Amps{"a": 20, "b": 20}
	res := b.Check(0, 30, draws)
	if res.Trip == nil {
		t.Fatal("expected trip")
	}
	if !res.Curtailed {
		t.Fatal("expected curtailment")
	}
	if res.Draws["a"] != 15 || res.Draws["b"] != 15 {
		t.Fatalf("expected 15/15 got %v", res.Draws)
	}
	// Contributors keep the pre-curtailment draws.
	if res.Trip.Contributors["a"] != 20 {
		t.Fatalf("expected 20 got %v", res.Trip.Contributors["a"])
	}
	// Input map untouched.
	if draws["a"] != 20 {
		t.Fatalf("input draws mutated: %v", draws)
	}
}

func TestCutoffUnevenDrawsSumToLimit(t *testing.T) {
	b := New(ModeCutoff)
	draws := map[string]model.Amps{"a": 7, "b": 13, "c": 17}
	res := b.Check(0, 10, draws)
	var sum model.Amps
	for _, a := range res.Draws {
		sum += a
	}
	if sum > 10 {
		t.Fatalf("curtailed draws exceed limit: %v", sum)
	}
	if sum < 9.99 {
		t.Fatalf("curtailment too aggressive: %v", sum)
	}
	// Pro rata keeps the ordering of the original draws.
	if !(res.Draws["a"] < res.Draws["b"] && res.Draws["b"] < res.Draws["c"]) {
		t.Fatalf("expected proportional shares, got %v", res.Draws)
	}
}

func TestCutoffZeroLimitZeroesEverything(t *testing.T) {
	b := New(ModeCutoff)
	res := b.Check(0, 0, map[string]model.Amps{"a": 5})
	if res.Trip == nil {
		t.Fatal("expected trip")
	}
	if res.Draws["a"] != 0 {
		t.Fatalf("expected 0 got %v", res.Draws["a"])
	}
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"": ModeDetect, "detect": ModeDetect, "cutoff": ModeCutoff} {
		got, err := ParseMode(s)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", s, err)
		}
		if got != want {
			t.Fatalf("%q: expected %v got %v", s, want, got)
		}
	}
	if _, err := ParseMode("explode"); err == nil {
		t.Fatal("expected error got nil")
	}
}
