// Package devicestatus keeps a live view of every charging point as runs
// progress, for the API and anything else that wants to watch a fleet
// without replaying the event stream.
package devicestatus

import (
	"sort"
	"sync"
	"time"

	"github.com/jakewins/price-signals/core/model"
)

const (
	StateWaiting    = "waiting"
	StateCharging   = "charging"
	StateIdle       = "idle"
	StateDone       = "done"
	StateInfeasible = "infeasible"
)

// Status captures the current known state of a charging point.
type Status struct {
	Device       string     `json:"device"`
	RunID        string     `json:"run_id,omitempty"`
	Scenario     string     `json:"scenario,omitempty"`
	State        string     `json:"state"`
	Step         int        `json:"step"`
	DrawA        model.Amps `json:"draw_a"`
	DeliveredKWh model.KWh  `json:"delivered_kwh"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Filter struct {
	RunID string
	State string
}

type Store interface {
	Set(Status)
	Get(id string) (Status, bool)
	List(Filter) []Status
	RecordDraw(id string, step int, draw model.Amps)
	MarkInfeasible(id string)
	MarkDone(id string)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	st.UpdatedAt = time.Now()
	s.data[st.Device] = st
	s.mu.Unlock()
}

func (s *MemoryStore) Get(id string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[id]
	return st, ok
}

// RecordDraw folds one committed step into the device's status. An
// infeasible mark is sticky; the device keeps drawing what it can but
// stays reported as infeasible.
func (s *MemoryStore) RecordDraw(id string, step int, draw model.Amps) {
	s.mu.Lock()
	st := s.data[id]
	if st.Device == "" {
		st.Device = id
	}
	st.Step = step
	st.DrawA = draw
	st.DeliveredKWh += draw.StepEnergy()
	switch {
	case st.State == StateInfeasible || st.State == StateDone:
	case draw > 0:
		st.State = StateCharging
	default:
		st.State = StateIdle
	}
	st.UpdatedAt = time.Now()
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) MarkInfeasible(id string) {
	s.mu.Lock()
	st := s.data[id]
	if st.Device == "" {
		st.Device = id
	}
	st.State = StateInfeasible
	st.UpdatedAt = time.Now()
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) MarkDone(id string) {
	s.mu.Lock()
	st := s.data[id]
	if st.Device == "" {
		st.Device = id
	}
	if st.State != StateInfeasible {
		st.State = StateDone
	}
	st.UpdatedAt = time.Now()
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.RunID != "" && st.RunID != f.RunID {
			continue
		}
		if f.State != "" && st.State != f.State {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Device < res[j].Device })
	return res
}
