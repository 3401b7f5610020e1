// Package metrics exposes Prometheus instrumentation for the monitoring
// pipeline and an optional standalone metrics server.
package metrics

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medichain/medguard/internal/logging"
)

// Metrics holds all medguard Prometheus collectors. Each instance carries
// its own registry so tests can build metrics freely.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsObserved  *prometheus.CounterVec
	AlertsTotal       *prometheus.CounterVec
	ScorerInvocations *prometheus.CounterVec
	ScanCandidates    *prometheus.CounterVec

	RingDepth prometheus.Gauge

	HTTPDuration  *prometheus.HistogramVec
	ScorerLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RequestsObserved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medguard_requests_observed_total",
				Help: "Requests seen by the monitoring middleware, by method",
			},
			[]string{"method"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medguard_alerts_total",
				Help: "Alerts emitted, by class and severity",
			},
			[]string{"class", "severity"},
		),
		ScorerInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medguard_scorer_invocations_total",
				Help: "External scorer invocations, by outcome",
			},
			[]string{"outcome"},
		),
		ScanCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medguard_scan_candidates_total",
				Help: "Injection-scan candidates evaluated, by request surface",
			},
			[]string{"surface"},
		),
		RingDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "medguard_ring_buffer_depth",
				Help: "Current number of buffered request records",
			},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "medguard_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		ScorerLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "medguard_scorer_latency_seconds",
				Help:    "External scorer invocation latency",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.Registry.MustRegister(
		m.RequestsObserved,
		m.AlertsTotal,
		m.ScorerInvocations,
		m.ScanCandidates,
		m.RingDepth,
		m.HTTPDuration,
		m.ScorerLatency,
	)
	return m
}

func (m *Metrics) IncRequests(method string) {
	m.RequestsObserved.WithLabelValues(method).Inc()
}

func (m *Metrics) IncAlerts(class, severity string) {
	m.AlertsTotal.WithLabelValues(class, severity).Inc()
}

func (m *Metrics) ObserveScorer(ok bool, duration time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ScorerInvocations.WithLabelValues(outcome).Inc()
	m.ScorerLatency.Observe(duration.Seconds())
}

func (m *Metrics) IncScanCandidates(surface string) {
	m.ScanCandidates.WithLabelValues(surface).Inc()
}

func (m *Metrics) SetRingDepth(depth float64) {
	m.RingDepth.Set(depth)
}

func (m *Metrics) ObserveHTTPDuration(method string, duration time.Duration) {
	m.HTTPDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Config holds settings for the standalone metrics server.
type Config struct {
	Enabled bool
	Addr    string
}

func LoadConfig() Config {
	return Config{
		Enabled: getBool("METRICS_ENABLED", false),
		Addr:    getOr("METRICS_ADDR", "127.0.0.1:9090"),
	}
}

// Server is the optional /metrics HTTP server, separate from the
// application listener so scrapes never pass through the monitoring
// middleware.
type Server struct {
	server *http.Server
	config Config
}

func NewServer(config Config, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{server: srv, config: config}
}

func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logging.L.Info("metrics server disabled (METRICS_ENABLED=false)")
		return nil
	}
	go func() {
		logging.L.Infow("metrics server listening", "addr", s.config.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L.Errorw("metrics server error", "err", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
