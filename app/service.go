// Package app wires configuration, stores, sinks and transports around the
// simulation engine.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apidevices "github.com/jakewins/price-signals/api/devices"
	apiruns "github.com/jakewins/price-signals/api/runs"
	"github.com/jakewins/price-signals/config"
	"github.com/jakewins/price-signals/core/breaker"
	"github.com/jakewins/price-signals/core/devicestatus"
	"github.com/jakewins/price-signals/core/events"
	coremetrics "github.com/jakewins/price-signals/core/metrics"
	coremqtt "github.com/jakewins/price-signals/core/mqtt"
	"github.com/jakewins/price-signals/core/runlog"
	"github.com/jakewins/price-signals/core/sim"
	"github.com/jakewins/price-signals/infra/logger"
	"github.com/jakewins/price-signals/infra/metrics"
	"github.com/jakewins/price-signals/infra/mqtt"
	"github.com/jakewins/price-signals/internal/eventbus"
	"github.com/jakewins/price-signals/scenarios"
	"github.com/jakewins/price-signals/tariff"
)

// newPublisher is swapped in tests to avoid a broker.
var newPublisher = func(cfg mqtt.Config) (coremqtt.Client, error) {
	return mqtt.NewPahoClient(cfg)
}

// Service runs scenarios with status tracking, metrics, persistence and
// schedule push around the engine. Runs execute one at a time; the Service
// is not safe for concurrent RunScenario calls.
type Service struct {
	Runs   runlog.Store
	Status devicestatus.Store

	cfg  *config.Config
	log  logger.Logger
	bus  *eventbus.Bus
	sink coremetrics.Sink
	pub  coremqtt.Client
	done chan struct{}
}

// New creates a Service from the configuration. The MQTT publisher is only
// connected when schedule push is enabled.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	store, err := runlog.NewStore(cfg.Logging.ModuleConfig())
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	var pub coremqtt.Client
	if cfg.Push.Enabled {
		pub, err = newPublisher(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}

	svc := &Service{
		Runs:   store,
		Status: devicestatus.NewMemoryStore(),
		cfg:    cfg,
		log:    logg,
		bus:    eventbus.New(0),
		sink:   sink,
		pub:    pub,
		done:   make(chan struct{}),
	}
	go svc.watch(svc.bus.Subscribe())
	return svc, nil
}

// RunScenario builds and executes one scenario, persists the outcome and,
// when push is enabled, sends every device its charge schedule. The report
// is returned alongside the error when only the push failed.
func (s *Service) RunScenario(ctx context.Context, def *scenarios.Def) (*sim.Report, error) {
	runner, err := def.Build(ctx, sim.WithSink(s.sink), sim.WithBus(s.bus))
	if err != nil {
		return nil, err
	}
	rep, err := runner.Run()
	if err != nil {
		return nil, err
	}
	s.log.Infof("run %s finished: verdict=%s cost=%s", rep.RunID, rep.Verdict, rep.CostEur)
	if err := s.Runs.Append(ctx, toRecord(rep)); err != nil {
		s.log.Errorf("run log append: %v", err)
	}
	if s.pub != nil {
		if err := s.push(rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// push sends each device its per-step draw plan and waits for the ack.
func (s *Service) push(rep *sim.Report) error {
	for _, d := range rep.Devices {
		id, err := s.pub.SendSchedule(d.Device, d.Draws)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", d.Device, err)
		}
		ok, err := s.pub.WaitForAck(id, s.cfg.Push.AckTimeout())
		if err != nil {
			return fmt.Errorf("ack %s: %w", d.Device, err)
		}
		if !ok {
			return fmt.Errorf("device %s rejected schedule %s", d.Device, id)
		}
		s.log.Debugf("schedule %s acknowledged by %s", id, d.Device)
	}
	return nil
}

// watch folds run events into the device status store. Status updates are
// best effort; run persistence happens synchronously in RunScenario.
func (s *Service) watch(sub <-chan eventbus.Event) {
	defer close(s.done)
	var ids []string
	active := map[string]bool{}
	for e := range sub {
		switch ev := e.(type) {
		case events.RunStarted:
			ids = ev.Devices
			active = map[string]bool{}
			for _, id := range ids {
				s.Status.Set(devicestatus.Status{
					Device:   id,
					RunID:    ev.RunID,
					Scenario: ev.Scenario,
					State:    devicestatus.StateWaiting,
				})
			}
		case events.StepSignals:
			active = make(map[string]bool, len(ev.Points))
			for id := range ev.Points {
				active[id] = true
			}
		case events.StepDraws:
			// Devices outside their session window stay as they were.
			for _, id := range ids {
				if active[id] {
					s.Status.RecordDraw(id, ev.Step, ev.Draws[id])
				}
			}
		case events.Infeasible:
			s.Status.MarkInfeasible(ev.Device)
		case events.RunDone:
			for _, id := range ids {
				s.Status.MarkDone(id)
			}
		}
	}
}

// Serve exposes the configured HTTP surfaces until the context is
// cancelled: the query API, the Prometheus endpoint and the local market
// mock that day-ahead feeds can point at.
func (s *Service) Serve(ctx context.Context) error {
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.Tariff.Enabled {
		mock := tariff.NewServerMock(s.cfg.Tariff.MockConfig())
		go func() {
			if err := mock.Start(ctx); err != nil {
				s.log.Errorf("market mock: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	runsHandler := apiruns.NewHandler(s.Runs, s.cfg.API.Token)
	mux.Handle("/api/runs", runsHandler)
	mux.Handle("/api/runs/", runsHandler)
	mux.Handle("/api/devices/status", apidevices.NewStatusHandler(s.Status))
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close drains the event watcher and releases held resources.
func (s *Service) Close() error {
	s.bus.Close()
	<-s.done
	if c, ok := s.pub.(interface{ Disconnect() }); ok {
		c.Disconnect()
	}
	return s.Runs.Close()
}

// Failed reports why a finished run should fail the process, or nil. With
// expectations present their check decides; otherwise sessions left short
// and enforcement that had to cut devices off fail, while detect-only trips
// are the finding the run exists to produce.
func Failed(rep *sim.Report, exp *scenarios.Expected) error {
	if exp != nil {
		return exp.Check(rep)
	}
	if n := len(rep.Infeasible()); n > 0 {
		return fmt.Errorf("%d session(s) infeasible", n)
	}
	if rep.Breaker == breaker.ModeCutoff.String() && len(rep.Trips) > 0 {
		return fmt.Errorf("feed limit enforced %d time(s)", len(rep.Trips))
	}
	return nil
}

func toRecord(rep *sim.Report) runlog.Record {
	rec := runlog.Record{
		RunID:      rep.RunID,
		Timestamp:  rep.StartedAt,
		Scenario:   rep.Scenario,
		Strategy:   rep.Strategy,
		Breaker:    rep.Breaker,
		Verdict:    string(rep.Verdict),
		Horizon:    rep.Horizon,
		Trips:      len(rep.Trips),
		Infeasible: len(rep.Infeasible()),
		EnergyKWh:  rep.EnergyKWh,
		CostEur:    rep.CostEur,
	}
	for _, d := range rep.Devices {
		rec.Devices = append(rec.Devices, runlog.DeviceOutcome{
			Device:       d.Device,
			Policy:       d.Policy,
			DeliveredKWh: d.DeliveredKWh,
			CostEur:      d.CostEur,
			Draws:        d.Draws,
			Infeasible:   d.Infeasible != nil,
		})
	}
	return rec
}
