// Package runs exposes persisted run outcomes over HTTP.
package runs

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jakewins/price-signals/core/runlog"
)

// NewHandler returns an HTTP handler exposing run records via
// GET /api/runs, with GET /api/runs/last serving only the most recent one.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(store runlog.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := runlog.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.Scenario = r.URL.Query().Get("scenario")
		q.Strategy = r.URL.Query().Get("strategy")
		q.Verdict = r.URL.Query().Get("verdict")
		q.Device = r.URL.Query().Get("device")

		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/last") {
			last, ok := latest(records)
			if !ok {
				http.Error(w, "no runs recorded", http.StatusNotFound)
				return
			}
			if err := json.NewEncoder(w).Encode(last); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func latest(records []runlog.Record) (runlog.Record, bool) {
	if len(records) == 0 {
		return runlog.Record{}, false
	}
	last := records[0]
	for _, rec := range records[1:] {
		if rec.Timestamp.After(last.Timestamp) {
			last = rec
		}
	}
	return last, true
}
