package runlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jakewins/price-signals/core/factory"
	"github.com/jakewins/price-signals/core/model"
)

func moduleConfig(typ string, conf map[string]any) factory.ModuleConfig {
	return factory.ModuleConfig{Type: typ, Conf: conf}
}

func sampleRecord(id string, ts time.Time, scenario, strategy, verdict string) Record {
	return Record{
		RunID:     id,
		Timestamp: ts,
		Scenario:  scenario,
		Strategy:  strategy,
		Breaker:   "detect",
		Verdict:   verdict,
		Horizon:   4,
		EnergyKWh: 14.4,
		CostEur:   19.2,
		Devices: []DeviceOutcome{
			{Device: "evse-a", Policy: "cheapest", DeliveredKWh: 7.2, CostEur: 9.6, Draws: []model.Amps{20, 10, 0, 0}},
			{Device: "evse-b", Policy: "cheapest", DeliveredKWh: 7.2, CostEur: 9.6, Draws: []model.Amps{20, 10, 0, 0}},
		},
	}
}

func TestJSONLStoreAppendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	recs := []Record{
		sampleRecord("run-1", base, "collision", "none", "tripped"),
		sampleRecord("run-2", base.Add(time.Hour), "collision", "negotiated", "completed"),
		sampleRecord("run-3", base.Add(2*time.Hour), "solo", "lp", "completed"),
	}
	for _, rec := range recs {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", rec.RunID, err)
		}
	}

	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	completed, err := store.Query(ctx, Query{Verdict: "completed"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed runs, got %d", len(completed))
	}

	negotiated, err := store.Query(ctx, Query{Scenario: "collision", Strategy: "negotiated"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(negotiated) != 1 || negotiated[0].RunID != "run-2" {
		t.Fatalf("expected run-2, got %+v", negotiated)
	}

	window, err := store.Query(ctx, Query{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(window) != 1 || window[0].RunID != "run-2" {
		t.Fatalf("expected only run-2 in window, got %+v", window)
	}

	byDevice, err := store.Query(ctx, Query{Device: "evse-a"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byDevice) != 3 {
		t.Fatalf("expected all runs for evse-a, got %d", len(byDevice))
	}
	none, err := store.Query(ctx, Query{Device: "evse-z"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no runs for evse-z, got %d", len(none))
	}
}

func TestJSONLStoreSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.Append(ctx, sampleRecord("run-1", time.Now(), "collision", "none", "tripped")); err != nil {
		t.Fatalf("append: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("not json\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Append(ctx, sampleRecord("run-2", time.Now(), "collision", "none", "tripped")); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected the 2 valid records, got %d", len(out))
	}
}

func TestStoreFactory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	store, err := NewStore(moduleConfig("jsonl", map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.(*JSONLStore); !ok {
		t.Fatalf("expected plain JSONL store, got %T", store)
	}
	_ = store.Close()

	store, err = NewStore(moduleConfig("jsonl", map[string]any{"path": path, "max_size_mb": 5}))
	if err != nil {
		t.Fatalf("new rotating store: %v", err)
	}
	if _, ok := store.(*RotatingJSONLStore); !ok {
		t.Fatalf("expected rotating store, got %T", store)
	}
	_ = store.Close()

	if _, err := NewStore(moduleConfig("jsonl", nil)); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := NewStore(moduleConfig("carrier-pigeon", nil)); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
