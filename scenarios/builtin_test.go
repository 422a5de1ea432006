package scenarios

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jakewins/price-signals/core/sim"
	"github.com/jakewins/price-signals/infra/metrics"
)

func TestBuiltins(t *testing.T) {
	want := []string{
		"01-two-ev-sessions-no-coordination",
		"02-two-ev-sessions-negotiated",
		"03-two-ev-sessions-central",
		"04-tight-deadline-negotiated",
	}
	got := Builtins()
	if len(got) != len(want) {
		t.Fatalf("builtins = %v", got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("builtins[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestBuiltinScenarios(t *testing.T) {
	for _, name := range Builtins() {
		def, err := Resolve(name)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if def.Expected == nil {
			t.Fatalf("builtin %s carries no expectations", name)
		}
		t.Run(def.Name, func(t *testing.T) {
			sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("prom sink: %v", err)
			}
			runner, err := def.Build(context.Background(), sim.WithSink(sink))
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			rep, err := runner.Run()
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if err := def.Expected.Check(rep); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestResolveFile(t *testing.T) {
	def, err := Resolve(writeScenario(t, sampleYAML))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if def.Name != "sample" {
		t.Errorf("name = %q", def.Name)
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("05-not-a-scenario")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "01-two-ev-sessions-no-coordination") {
		t.Errorf("error should list builtins, got %q", err)
	}
}
