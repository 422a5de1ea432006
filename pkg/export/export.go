package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/jakewins/price-signals/core/sim"
)

// WriteJSON writes the full run report to w in JSON format.
func WriteJSON(w io.Writer, r *sim.Report) error {
	enc := json.NewEncoder(w)
	return enc.Encode(r)
}

// WriteCSV writes the per-device draw schedules to w in CSV format,
// one row per device and step.
func WriteCSV(w io.Writer, r *sim.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"device", "step", "draw_a"}); err != nil {
		return err
	}
	for _, d := range r.Devices {
		for step, draw := range d.Draws {
			rec := []string{
				d.Device,
				strconv.Itoa(step),
				strconv.FormatFloat(float64(draw), 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
