package domain

import "github.com/shopspring/decimal"

// ============================================================
// Health, Metrics & Report responses
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

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	PaymentsCreated     int64   `json:"paymentsCreated"`
	InstallmentsCreated int64   `json:"installmentsCreated"`
	RowsSkipped         int64   `json:"rowsSkipped"`
	ExternalErrors      int64   `json:"externalErrors"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	AvgLatencyMs        float64 `json:"avgLatencyMs"`
	Period              string  `json:"period"`
}

// NextCycleDue is returned by GET /v1/reports/next-cycle.
type NextCycleDue struct {
	Today string          `json:"today"`
	Scope string          `json:"scope"`
	Total decimal.Decimal `json:"total"`
}

// Summary is returned by GET /v1/reports/summary.
type Summary struct {
	Today           string          `json:"today"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	DueNextMonth    decimal.Decimal `json:"due_next_month"`
	DueAllFuture    decimal.Decimal `json:"due_all_future"`
	MonthsAhead     int             `json:"months_ahead"`
	SalesRevenue    decimal.Decimal `json:"sales_revenue"`
	SalesCount      int             `json:"sales_count"`
	StockUnits      int             `json:"stock_units"`
	StockCostValue  decimal.Decimal `json:"stock_cost_value"`
	CardCount       int             `json:"card_count"`
	UpcomingByMonth []MonthGroup    `json:"upcoming_by_month"`
}
