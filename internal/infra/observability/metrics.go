package observability

import (
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the budget engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	recalculations  prometheus.Counter
	transitions     *prometheus.CounterVec
	revisions       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budget_request_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_store_errors_total",
				Help: "Total errors from the document store and account catalog.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		recalculations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_recalculations_total",
				Help: "Total roll-up recalculations.",
			},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_lifecycle_transitions_total",
				Help: "Total lifecycle transitions by target status.",
			},
			[]string{"to"},
		),
		revisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_revisions_total",
				Help: "Total revision operations by action.",
			},
			[]string{"action"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(service string) {
	m.storeErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRecalculation increments the roll-up recalculation counter.
func (m *Metrics) IncrRecalculation() {
	m.recalculations.Inc()
}

// IncrTransition increments the lifecycle transition counter.
func (m *Metrics) IncrTransition(to domain.BudgetStatus) {
	m.transitions.WithLabelValues(string(to)).Inc()
}

// IncrRevision increments the revision counter for an action
// (proposed, applied, rejected).
func (m *Metrics) IncrRevision(action string) {
	m.revisions.WithLabelValues(action).Inc()
}

// GetEngineSnapshot returns a snapshot of engine counters suitable for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	cacheHits := getCounterValue(m.cacheHits, "accounts")
	cacheMisses := getCounterValue(m.cacheMisses, "accounts")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	var transitions float64
	for _, to := range []domain.BudgetStatus{
		domain.StatusPendingApproval,
		domain.StatusApproved,
		domain.StatusRejected,
		domain.StatusActive,
		domain.StatusRevised,
	} {
		transitions += getCounterValue(m.transitions, string(to))
	}

	var storeErrors float64
	for _, svc := range []string{"store", "catalog"} {
		storeErrors += getCounterValue(m.storeErrors, svc)
	}

	return &domain.EngineMetrics{
		Recalculations:    int64(getPlainCounterValue(m.recalculations)),
		Transitions:       int64(transitions),
		RevisionsProposed: int64(getCounterValue(m.revisions, "proposed")),
		RevisionsApplied:  int64(getCounterValue(m.revisions, "applied")),
		StoreErrors:       int64(storeErrors),
		CacheHitRate:      cacheHitRate,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
