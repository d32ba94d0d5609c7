// ============================================================================
// shift-rota Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: collect and expose scheduling metrics for Prometheus
//
// Metric groups:
//
//   1. Counters:
//      - rota_generations_total: generated weeks
//      - rota_moves_total{outcome}: manual moves by outcome
//        (moved / noop / rejected)
//      - rota_configuration_errors_total: requests refused for labels
//        outside the catalog
//      - rota_journal_events_total{type}: journaled operations
//
//   2. Histogram:
//      - rota_generation_duration_seconds: engine run time
//
//   3. Gauges:
//      - rota_short_slots: slots of the current week below their need
//      - rota_unfilled_headcount: summed missing headcount
//      - rota_roster_size: workers on the roster
//      - rota_recovery_time_seconds: last snapshot+journal recovery
//
// Example queries:
//
//   # generations per hour
//   increase(rota_generations_total[1h])
//
//   # share of rejected manual moves
//   rate(rota_moves_total{outcome="rejected"}[1d]) / rate(rota_moves_total[1d])
//
// HTTP endpoint:
//   /metrics, default port 9090
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector Prometheus metrics for one process
type Collector struct {
	generations   prometheus.Counter
	moves         *prometheus.CounterVec
	configErrors  prometheus.Counter
	journalEvents *prometheus.CounterVec

	generationDuration prometheus.Histogram

	shortSlots        prometheus.Gauge
	unfilledHeadcount prometheus.Gauge
	rosterSize        prometheus.Gauge
	recoveryTime      prometheus.Gauge
}

// NewCollector creates the collector and registers it with the default
// registerer. A process should create exactly one.
func NewCollector() *Collector {
	c := &Collector{
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rota_generations_total",
			Help: "Total number of generated weekly schedules",
		}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rota_moves_total",
			Help: "Total number of manual moves by outcome",
		}, []string{"outcome"}),
		configErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rota_configuration_errors_total",
			Help: "Total number of requests refused for unknown position or day labels",
		}),
		journalEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rota_journal_events_total",
			Help: "Total number of journaled operations by type",
		}, []string{"type"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rota_generation_duration_seconds",
			Help:    "Time spent generating one weekly schedule",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		shortSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rota_short_slots",
			Help: "Slots of the current schedule assigned below their need",
		}),
		unfilledHeadcount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rota_unfilled_headcount",
			Help: "Missing headcount summed over the current schedule",
		}),
		rosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rota_roster_size",
			Help: "Number of workers on the roster",
		}),
		recoveryTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rota_recovery_time_seconds",
			Help: "Time taken by the last snapshot and journal recovery",
		}),
	}

	prometheus.MustRegister(
		c.generations,
		c.moves,
		c.configErrors,
		c.journalEvents,
		c.generationDuration,
		c.shortSlots,
		c.unfilledHeadcount,
		c.rosterSize,
		c.recoveryTime,
	)

	return c
}

// RecordGeneration records one generated week.
//
// Parameters:
//   - elapsed: engine run time
//   - shortSlots: number of slots left below need
//   - unfilled: summed missing headcount
func (c *Collector) RecordGeneration(elapsed time.Duration, shortSlots, unfilled int) {
	c.generations.Inc()
	c.generationDuration.Observe(elapsed.Seconds())
	c.SetShortfall(shortSlots, unfilled)
}

// SetShortfall updates the shortfall gauges, e.g. after a manual move.
func (c *Collector) SetShortfall(shortSlots, unfilled int) {
	c.shortSlots.Set(float64(shortSlots))
	c.unfilledHeadcount.Set(float64(unfilled))
}

// RecordMove counts a manual move by outcome.
func (c *Collector) RecordMove(outcome string) {
	c.moves.WithLabelValues(outcome).Inc()
}

// RecordConfigurationError counts a request refused at the boundary.
func (c *Collector) RecordConfigurationError() {
	c.configErrors.Inc()
}

// RecordJournalEvent counts a journaled operation.
func (c *Collector) RecordJournalEvent(eventType string) {
	c.journalEvents.WithLabelValues(eventType).Inc()
}

// SetRosterSize sets the roster gauge.
func (c *Collector) SetRosterSize(n int) {
	c.rosterSize.Set(float64(n))
}

// SetRecoveryTime sets the recovery gauge.
func (c *Collector) SetRecoveryTime(seconds float64) {
	c.recoveryTime.Set(seconds)
}

// NewServer returns the /metrics HTTP server for port; the caller runs and
// shuts it down.
func NewServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartServer serves /metrics on port until the listener fails.
func StartServer(port int) error {
	return NewServer(port).ListenAndServe()
}
