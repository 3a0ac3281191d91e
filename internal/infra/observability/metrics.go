package observability

import (
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Cache label for the future-payments report cache.
const CacheReports = "reports"

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration     *prometheus.HistogramVec
	externalErrors      *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	paymentsCreated     *prometheus.CounterVec
	installmentsCreated prometheus.Counter
	rowsSkipped         prometheus.Counter
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
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		paymentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_payments_created_total",
				Help: "Payment rows stored, by method.",
			},
			[]string{"method"},
		),
		installmentsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_installments_created_total",
				Help: "Payment rows that belong to an installment plan.",
			},
		),
		rowsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_aggregation_rows_skipped_total",
				Help: "Payment rows skipped by the aggregator for malformed data.",
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

// RecordPayments counts stored payments.
func (m *Metrics) RecordPayments(payments []domain.Payment) {
	for _, p := range payments {
		m.paymentsCreated.WithLabelValues(string(p.Method)).Inc()
		if p.IsInstallment {
			m.installmentsCreated.Inc()
		}
	}
}

// IncrRowSkipped counts a payment dropped by the aggregator. Its signature
// matches billing.SkipFunc.
func (m *Metrics) IncrRowSkipped(_, _ string) {
	m.rowsSkipped.Inc()
}

// Snapshot returns the counters behind GET /v1/metrics/ledger.
func (m *Metrics) Snapshot() *domain.LedgerMetrics {
	payments := 0.0
	for _, method := range []domain.PaymentMethod{domain.MethodCard, domain.MethodCash, domain.MethodTransfer} {
		payments += getCounterValue(m.paymentsCreated, string(method))
	}

	hits := getCounterValue(m.cacheHits, CacheReports)
	misses := getCounterValue(m.cacheMisses, CacheReports)
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.LedgerMetrics{
		PaymentsCreated:     int64(payments),
		InstallmentsCreated: int64(readCounter(m.installmentsCreated)),
		RowsSkipped:         int64(readCounter(m.rowsSkipped)),
		ExternalErrors:      int64(sumCounterVec(m.externalErrors)),
		CacheHitRate:        hitRate,
		AvgLatencyMs:        avgHistogramMs(m.requestDuration),
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of cv.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err == nil && m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	return total
}

// avgHistogramMs is the mean observation across all operations, in ms.
func avgHistogramMs(hv *prometheus.HistogramVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		hv.Collect(ch)
		close(ch)
	}()

	var sum float64
	var count uint64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err == nil && m.Histogram != nil {
			sum += m.Histogram.GetSampleSum()
			count += m.Histogram.GetSampleCount()
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 1000
}
