package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/jakewins/price-signals/core/metrics"
	"github.com/jakewins/price-signals/infra/logger"
)

// InfluxSink writes run outcomes to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes the run outcome as one point. Timestamps are assigned
// server side.
func (s *InfluxSink) RecordRun(rec coremetrics.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("run").
		AddTag("run_id", rec.RunID).
		AddTag("scenario", rec.Scenario).
		AddTag("strategy", rec.Strategy).
		AddTag("verdict", rec.Verdict).
		AddField("cost_eur", round3(float64(rec.CostEur))).
		AddField("energy_kwh", round3(float64(rec.EnergyKWh))).
		AddField("trips", rec.Trips).
		AddField("infeasible_sessions", rec.InfeasibleSessions).
		AddField("elapsed_ms", round3(rec.Elapsed.Seconds()*1000))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStep writes one closed step. The step number is a tag so points
// of the same run stay distinct.
func (s *InfluxSink) RecordStep(rec coremetrics.StepRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("step").
		AddTag("run_id", rec.RunID).
		AddTag("scenario", rec.Scenario).
		AddTag("strategy", rec.Strategy).
		AddTag("step", strconv.Itoa(rec.Step)).
		AddField("aggregate_a", round3(float64(rec.AggregateA))).
		AddField("capacity_a", round3(float64(rec.CapacityA))).
		AddField("cost_eur", round3(float64(rec.CostEur))).
		AddField("tripped", rec.Tripped).
		AddField("curtailed", rec.Curtailed)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTrip writes one feed overload.
func (s *InfluxSink) RecordTrip(rec coremetrics.TripRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("trip").
		AddTag("run_id", rec.RunID).
		AddTag("scenario", rec.Scenario).
		AddTag("strategy", rec.Strategy).
		AddTag("step", strconv.Itoa(rec.Step)).
		AddField("limit_a", round3(float64(rec.LimitA))).
		AddField("aggregate_a", round3(float64(rec.AggregateA))).
		AddField("overload_a", round3(float64(rec.OverloadA))).
		AddField("curtailed", rec.Curtailed)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDeviceRuns writes one point per device outcome.
func (s *InfluxSink) RecordDeviceRuns(recs []coremetrics.DeviceRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, rec := range recs {
		p := write.NewPointWithMeasurement("device_run").
			AddTag("run_id", rec.RunID).
			AddTag("scenario", rec.Scenario).
			AddTag("strategy", rec.Strategy).
			AddTag("device", rec.Device).
			AddTag("policy", rec.Policy).
			AddField("energy_kwh", round3(float64(rec.EnergyKWh))).
			AddField("cost_eur", round3(float64(rec.CostEur))).
			AddField("infeasible", rec.Infeasible).
			AddField("shortfall_kwh", round3(float64(rec.ShortfallKWh)))
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
