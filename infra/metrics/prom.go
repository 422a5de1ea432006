package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/jakewins/price-signals/core/metrics"
)

// PromSink exposes run outcomes as Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	cost       *prometheus.CounterVec
	energy     *prometheus.CounterVec
	infeasible *prometheus.CounterVec
	trips      *prometheus.CounterVec
	aggregate  *prometheus.HistogramVec
	devices    prometheus.Gauge
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The Prometheus server is started separately.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Building
// two sinks on the same registerer reuses the existing collectors.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	s.runs, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_runs_total",
		Help: "Total number of finished runs",
	}, []string{"scenario", "strategy", "verdict"}))
	if err != nil {
		return nil, err
	}
	s.cost, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_run_cost_eur_total",
		Help: "Realized cost of finished runs",
	}, []string{"scenario", "strategy"}))
	if err != nil {
		return nil, err
	}
	s.energy, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_run_energy_kwh_total",
		Help: "Energy delivered by finished runs",
	}, []string{"scenario", "strategy"}))
	if err != nil {
		return nil, err
	}
	s.infeasible, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_infeasible_sessions_total",
		Help: "Sessions that ended short of their demand",
	}, []string{"scenario", "strategy"}))
	if err != nil {
		return nil, err
	}
	s.trips, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_trips_total",
		Help: "Steps where the aggregate draw exceeded the feed limit",
	}, []string{"scenario", "strategy", "curtailed"}))
	if err != nil {
		return nil, err
	}
	s.aggregate, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_step_aggregate_amps",
		Help:    "Aggregate feed draw per step",
		Buckets: prometheus.LinearBuckets(0, 10, 13),
	}, []string{"scenario", "strategy"}))
	if err != nil {
		return nil, err
	}
	s.devices, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_run_devices",
		Help: "Devices in the most recent run",
	}))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec), nil
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge), nil
		}
		return nil, err
	}
	return g, nil
}

// RecordRun folds the run outcome into the counters.
func (s *PromSink) RecordRun(rec coremetrics.RunRecord) error {
	s.runs.WithLabelValues(rec.Scenario, rec.Strategy, rec.Verdict).Inc()
	s.cost.WithLabelValues(rec.Scenario, rec.Strategy).Add(float64(rec.CostEur))
	s.energy.WithLabelValues(rec.Scenario, rec.Strategy).Add(float64(rec.EnergyKWh))
	if rec.InfeasibleSessions > 0 {
		s.infeasible.WithLabelValues(rec.Scenario, rec.Strategy).Add(float64(rec.InfeasibleSessions))
	}
	return nil
}

// RecordStep observes the step's aggregate draw.
func (s *PromSink) RecordStep(rec coremetrics.StepRecord) error {
	s.aggregate.WithLabelValues(rec.Scenario, rec.Strategy).Observe(float64(rec.AggregateA))
	return nil
}

// RecordTrip counts one feed overload.
func (s *PromSink) RecordTrip(rec coremetrics.TripRecord) error {
	s.trips.WithLabelValues(rec.Scenario, rec.Strategy, strconv.FormatBool(rec.Curtailed)).Inc()
	return nil
}

// RecordDeviceRuns sets the fleet size gauge.
func (s *PromSink) RecordDeviceRuns(recs []coremetrics.DeviceRecord) error {
	s.devices.Set(float64(len(recs)))
	return nil
}
