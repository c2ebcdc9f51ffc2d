package observability

import (
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration       *prometheus.HistogramVec
	externalErrors        *prometheus.CounterVec
	cacheHits             *prometheus.CounterVec
	cacheMisses           *prometheus.CounterVec
	statements            *prometheus.CounterVec
	transactions          *prometheus.CounterVec
	ruleMatches           prometheus.Counter
	reconciliationMatches *prometheus.CounterVec
	discrepancies         prometheus.Counter
	balanceLookupFailures prometheus.Counter
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
				Name:    "gestor_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gestor_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gestor_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gestor_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		statements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gestor_statements_total",
				Help: "Statements submitted for parsing, by result.",
			},
			[]string{"result"},
		),
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gestor_import_transactions_total",
				Help: "Imported statement rows, by outcome.",
			},
			[]string{"outcome"},
		),
		ruleMatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gestor_rule_matches_total",
				Help: "Transactions categorized by a rule.",
			},
		),
		reconciliationMatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gestor_reconciliation_matches_total",
				Help: "Reconciliation pairs and candidates produced, by kind.",
			},
			[]string{"kind"},
		),
		discrepancies: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gestor_balance_discrepancies_total",
				Help: "Balance checkpoints that disagreed with the ledger.",
			},
		),
		balanceLookupFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gestor_balance_lookup_failures_total",
				Help: "Balance computations that failed or returned nothing.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStatementParsed counts a statement that decoded successfully.
func (m *Metrics) IncrStatementParsed() {
	m.statements.WithLabelValues("parsed").Inc()
}

// IncrStatementRejected counts a statement that failed to decode.
func (m *Metrics) IncrStatementRejected() {
	m.statements.WithLabelValues("rejected").Inc()
}

// AddImported records inserted, skipped and categorized row counts.
func (m *Metrics) AddImported(inserted, skipped, categorized int) {
	m.transactions.WithLabelValues("imported").Add(float64(inserted))
	m.transactions.WithLabelValues("skipped").Add(float64(skipped))
	m.transactions.WithLabelValues("categorized").Add(float64(categorized))
}

// AddRuleMatches counts rule hits.
func (m *Metrics) AddRuleMatches(n int) {
	m.ruleMatches.Add(float64(n))
}

// AddExactMatches counts pairs accepted by the exact pass.
func (m *Metrics) AddExactMatches(n int) {
	m.reconciliationMatches.WithLabelValues("exact").Add(float64(n))
}

// AddRankedCandidates counts candidates returned by the ranking pass.
func (m *Metrics) AddRankedCandidates(n int) {
	m.reconciliationMatches.WithLabelValues("ranked").Add(float64(n))
}

// IncrDiscrepancy counts a reported balance discrepancy.
func (m *Metrics) IncrDiscrepancy() {
	m.discrepancies.Inc()
}

// IncrBalanceLookupFailure counts a balance computation that was unavailable.
func (m *Metrics) IncrBalanceLookupFailure() {
	m.balanceLookupFailures.Inc()
}

// EngineSnapshot returns the cumulative engine counters for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) EngineSnapshot() *domain.EngineMetrics {
	hits := counterVecValue(m.cacheHits, "rule_patterns") + counterVecValue(m.cacheHits, "rules")
	misses := counterVecValue(m.cacheMisses, "rule_patterns") + counterVecValue(m.cacheMisses, "rules")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.EngineMetrics{
		StatementsParsed:     int64(counterVecValue(m.statements, "parsed")),
		StatementsRejected:   int64(counterVecValue(m.statements, "rejected")),
		TransactionsImported: int64(counterVecValue(m.transactions, "imported")),
		TransactionsSkipped:  int64(counterVecValue(m.transactions, "skipped")),
		RuleMatches:          int64(counterValue(m.ruleMatches)),
		ExactMatches:         int64(counterVecValue(m.reconciliationMatches, "exact")),
		Discrepancies:        int64(counterValue(m.discrepancies)),
		RuleCacheHitRate:     hitRate,
	}
}

// counterVecValue extracts the current value of a CounterVec for a given label.
func counterVecValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
