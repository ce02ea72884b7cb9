package observability

import (
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metric family names, shared with Snapshot.
const (
	metricResolveDuration = "ledger_resolve_duration_seconds"
	metricExternalErrors  = "ledger_external_errors_total"
	metricCacheHits       = "ledger_cache_hits_total"
	metricCacheMisses     = "ledger_cache_misses_total"
	metricInvalidations   = "ledger_cache_invalidations_total"
	metricMutations       = "ledger_mutations_total"
	metricBusy            = "ledger_mutation_busy_total"
	metricDiscarded       = "ledger_view_discarded_total"
)

// Metrics holds all Prometheus metrics for the ledger core.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	resolveDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	invalidations   *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	busy            *prometheus.CounterVec
	discarded       prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		resolveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricResolveDuration,
				Help:    "Duration of filter resolutions by source (cache, remote).",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricExternalErrors,
				Help: "Transport failures talking to the ledger API.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricCacheHits,
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricCacheMisses,
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricInvalidations,
				Help: "Cached entries dropped as stale.",
			},
			[]string{"cache"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricMutations,
				Help: "Settled mutations by entity kind, operation and outcome.",
			},
			[]string{"kind", "op", "outcome"},
		),
		busy: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricBusy,
				Help: "Submissions rejected because a write on the same entity was in flight.",
			},
			[]string{"kind"},
		),
		discarded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: metricDiscarded,
				Help: "Resolutions discarded because a newer filter superseded them.",
			},
		),
	}
}

// RecordResolveDuration records how long a resolution took.
func (m *Metrics) RecordResolveDuration(source string, d time.Duration) {
	m.resolveDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncrExternalError increments the transport error counter.
func (m *Metrics) IncrExternalError(operation string) {
	m.externalErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// AddInvalidations counts dropped cache entries.
func (m *Metrics) AddInvalidations(cache string, n int) {
	if n > 0 {
		m.invalidations.WithLabelValues(cache).Add(float64(n))
	}
}

// IncrMutation counts a settled mutation.
func (m *Metrics) IncrMutation(kind, op, outcome string) {
	m.mutations.WithLabelValues(kind, op, outcome).Inc()
}

// IncrBusy counts a Busy rejection.
func (m *Metrics) IncrBusy(kind string) {
	m.busy.WithLabelValues(kind).Inc()
}

// IncrDiscarded counts a superseded resolution.
func (m *Metrics) IncrDiscarded() {
	m.discarded.Inc()
}

// Snapshot returns cumulative counters suitable for GET /v1/metrics/ledger.
func (m *Metrics) Snapshot() *domain.LedgerMetrics {
	families, err := m.Registry.Gather()
	if err != nil {
		return &domain.LedgerMetrics{Period: "all_time"}
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	hits := sumFamily(byName[metricCacheHits], nil)
	misses := sumFamily(byName[metricCacheMisses], nil)
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.LedgerMetrics{
		CacheHits:          int64(hits),
		CacheMisses:        int64(misses),
		CacheHitRate:       hitRate,
		Invalidations:      int64(sumFamily(byName[metricInvalidations], nil)),
		MutationsSucceeded: int64(sumFamily(byName[metricMutations], map[string]string{"outcome": "success"})),
		MutationsFailed:    int64(sumFamily(byName[metricMutations], nil) - sumFamily(byName[metricMutations], map[string]string{"outcome": "success"})),
		BusyRejections:     int64(sumFamily(byName[metricBusy], nil)),
		DiscardedResponses: int64(sumFamily(byName[metricDiscarded], nil)),
		ExternalErrors:     int64(sumFamily(byName[metricExternalErrors], nil)),
		Period:             "all_time",
	}
}

// sumFamily adds up every counter in a family whose labels include want.
func sumFamily(f *dto.MetricFamily, want map[string]string) float64 {
	if f == nil {
		return 0
	}
	total := float64(0)
	for _, metric := range f.GetMetric() {
		if !hasLabels(metric, want) {
			continue
		}
		if c := metric.GetCounter(); c != nil {
			total += c.GetValue()
		}
	}
	return total
}

func hasLabels(metric *dto.Metric, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
