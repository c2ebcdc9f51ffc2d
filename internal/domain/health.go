package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics is returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	StatementsParsed     int64   `json:"statementsParsed"`
	StatementsRejected   int64   `json:"statementsRejected"`
	TransactionsImported int64   `json:"transactionsImported"`
	TransactionsSkipped  int64   `json:"transactionsSkipped"`
	RuleMatches          int64   `json:"ruleMatches"`
	ExactMatches         int64   `json:"exactMatches"`
	Discrepancies        int64   `json:"discrepancies"`
	RuleCacheHitRate     float64 `json:"ruleCacheHitRate"`
}
