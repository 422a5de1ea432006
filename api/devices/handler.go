// Package devices exposes per-device outcomes over HTTP.
package devices

import (
	"encoding/json"
	"net/http"

	"github.com/jakewins/price-signals/core/devicestatus"
)

// NewStatusHandler returns an HTTP handler exposing device status data via
// GET /api/devices/status.
func NewStatusHandler(store devicestatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := devicestatus.Filter{
			RunID: r.URL.Query().Get("run_id"),
			State: r.URL.Query().Get("state"),
		}
		entries := store.List(f)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
