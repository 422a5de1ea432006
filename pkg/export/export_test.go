package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/core/sim"
)

func sampleReport() *sim.Report {
	return &sim.Report{
		RunID:    "run-1",
		Scenario: "collision",
		Strategy: "none",
		Breaker:  "detect",
		Horizon:  4,
		Verdict:  sim.VerdictTripped,
		Devices: []sim.DeviceReport{
			{Device: "evse-a", Policy: "cheapest_steps", RequestedKWh: 7.2, DeliveredKWh: 7.2, CostEur: 9.6, Draws: []model.Amps{20, 10, 0, 0}},
			{Device: "evse-b", Policy: "cheapest_steps", RequestedKWh: 7.2, DeliveredKWh: 7.2, CostEur: 9.6, Draws: []model.Amps{20, 10, 0, 0}},
		},
		EnergyKWh: 14.4,
		CostEur:   19.2,
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got sim.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "run-1" || got.Verdict != sim.VerdictTripped {
		t.Errorf("unexpected report: %+v", got)
	}
	if len(got.Devices) != 2 || got.Devices[0].Draws[0] != 20 {
		t.Errorf("unexpected devices: %+v", got.Devices)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 9 {
		t.Fatalf("expected header plus 8 rows, got %d", len(rows))
	}
	if rows[0][0] != "device" || rows[0][2] != "draw_a" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "evse-a" || rows[1][1] != "0" || rows[1][2] != "20" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[6][0] != "evse-b" || rows[6][1] != "1" || rows[6][2] != "10" {
		t.Errorf("unexpected row: %v", rows[6])
	}
}
