package tariff

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jakewins/price-signals/infra/logger"
)

// ServerMock serves the wholesale market wire format locally so runs and
// tests can exercise the client without credentials. Prices are seeded from
// config and can be replaced over HTTP.
type ServerMock struct {
	addr string
	log  logger.Logger
	srv  *http.Server

	mu     sync.Mutex
	prices []float64

	total  *prometheus.CounterVec
	failed prometheus.Counter
}

// NewServerMock creates a new mock server using the default Prometheus
// registerer.
func NewServerMock(cfg MockConfig) *ServerMock {
	return NewServerMockWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewServerMockWithRegistry creates a new mock server and registers metrics on
// the provided registerer. If reg is nil the default registerer is used.
func NewServerMockWithRegistry(cfg MockConfig, reg prometheus.Registerer) *ServerMock {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	log := logger.New("tariff-server-mock")

	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tariff_requests_total",
		Help: "Total requests served by the tariff mock",
	}, []string{"endpoint"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tariff_requests_failed",
		Help: "Rejected tariff mock requests",
	})

	if err := reg.Register(total); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				total = exist
			} else {
				log.Errorf("existing collector for tariff_requests_total has wrong type %T", are.ExistingCollector)
			}
		}
	}
	if err := reg.Register(failed); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if exist, ok := are.ExistingCollector.(prometheus.Counter); ok {
				failed = exist
			} else {
				log.Errorf("existing collector for tariff_requests_failed has wrong type %T", are.ExistingCollector)
			}
		}
	}

	return &ServerMock{
		addr:   cfg.Address,
		log:    log,
		prices: append([]float64(nil), cfg.PricesEurMWh...),
		total:  total,
		failed: failed,
	}
}

func (s *ServerMock) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tariff/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("pong")); err != nil {
			s.log.Errorf("write pong: %v", err)
		}
	})
	mux.HandleFunc("/tariff/prices", s.handlePrices)
	return mux
}

func (s *ServerMock) handlePrices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.servePrices(w, r)
	case http.MethodPost:
		s.injectPrices(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *ServerMock) servePrices(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start_date"))
	if err != nil {
		s.failed.Inc()
		http.Error(w, "bad start_date", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end_date"))
	if err != nil {
		s.failed.Inc()
		http.Error(w, "bad end_date", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		s.failed.Inc()
		http.Error(w, "end_date must be after start_date", http.StatusBadRequest)
		return
	}

	hours := int(end.Sub(start) / time.Hour)
	s.mu.Lock()
	prices := s.prices
	s.mu.Unlock()
	if hours > len(prices) {
		hours = len(prices)
	}
	window := Exchange{
		StartDate:   start.Format(time.RFC3339),
		EndDate:     start.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339),
		UpdatedDate: start.Format(time.RFC3339),
	}
	for h := 0; h < hours; h++ {
		window.Values = append(window.Values, Value{
			StartDate: start.Add(time.Duration(h) * time.Hour).Format(time.RFC3339),
			EndDate:   start.Add(time.Duration(h+1) * time.Hour).Format(time.RFC3339),
			Price:     prices[h],
		})
	}
	resp := Response{FrancePowerExchanges: []Exchange{window}}

	s.total.WithLabelValues("prices").Inc()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorf("encode prices: %v", err)
	}
}

func (s *ServerMock) injectPrices(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PricesEurMWh []float64 `json:"prices_eur_mwh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.failed.Inc()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(body.PricesEurMWh) == 0 {
		s.failed.Inc()
		http.Error(w, "prices_eur_mwh required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.prices = body.PricesEurMWh
	s.mu.Unlock()
	s.total.WithLabelValues("inject").Inc()
	s.log.Infof("injected %d prices", len(body.PricesEurMWh))
	w.WriteHeader(http.StatusOK)
}

// Addr returns the listening address once Start has been called.
func (s *ServerMock) Addr() string { return s.addr }

// Start runs the HTTP server until the context is canceled.
func (s *ServerMock) Start(ctx context.Context) error {
	mux := s.routes()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
		cancel()
	}()
	s.log.Infof("tariff mock server listening on %s", s.addr)
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
