package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSearchRequests      = "search_requests_total"
	MetricSearchDuration      = "search_duration_seconds"
	MetricTierFallbacks       = "search_tier_fallback_total"
	MetricSemanticFallbacks   = "search_semantic_fallback_total"
	MetricExpansionEnrichment = "search_expansion_enrichment_total"
	MetricHydrationGaps       = "search_hydration_gaps_total"
)

// Metrics contains Prometheus metrics for the retrieval engine.
// All operations are thread-safe. A nil *Metrics disables recording,
// which keeps unit tests free of registry setup.
type Metrics struct {
	searchRequests      *prometheus.CounterVec
	searchDuration      prometheus.Histogram
	tierFallbacks       *prometheus.CounterVec
	semanticFallbacks   prometheus.Counter
	expansionEnrichment *prometheus.CounterVec
	hydrationGaps       prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSearchRequests,
			Help: "Total number of search requests by sort mode",
		}, []string{"sort"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchDuration,
			Help:    "End-to-end search latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		tierFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTierFallbacks,
			Help: "Total number of lexical tier failures that advanced the fallback chain",
		}, []string{"tier"}),
		semanticFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSemanticFallbacks,
			Help: "Total number of semantic retrievals that fell back to lexical pseudo-ranking",
		}),
		expansionEnrichment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricExpansionEnrichment,
			Help: "Total number of generative expansion enrichment attempts by outcome",
		}, []string{"outcome"}),
		hydrationGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricHydrationGaps,
			Help: "Total number of fused candidate IDs dropped because hydration could not resolve them",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.searchRequests,
		m.searchDuration,
		m.tierFallbacks,
		m.semanticFallbacks,
		m.expansionEnrichment,
		m.hydrationGaps,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncSearchRequests increments the request counter for a sort mode.
func (m *Metrics) IncSearchRequests(sort string) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(sort).Inc()
}

// ObserveSearchDuration records one end-to-end search latency.
func (m *Metrics) ObserveSearchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(seconds)
}

// IncTierFallback records a lexical tier failure.
func (m *Metrics) IncTierFallback(tier string) {
	if m == nil {
		return
	}
	m.tierFallbacks.WithLabelValues(tier).Inc()
}

// IncSemanticFallback records a semantic retrieval degrading to
// lexical pseudo-ranking.
func (m *Metrics) IncSemanticFallback() {
	if m == nil {
		return
	}
	m.semanticFallbacks.Inc()
}

// IncExpansionEnrichment records a generative enrichment attempt.
func (m *Metrics) IncExpansionEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.expansionEnrichment.WithLabelValues(outcome).Inc()
}

// IncHydrationGaps records n candidate IDs dropped during hydration.
func (m *Metrics) IncHydrationGaps(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.hydrationGaps.Add(float64(n))
}
