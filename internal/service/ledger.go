package service

import (
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/observability"
	"github.com/boddenberg/stockledger-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/ledger")

// maxInstallments caps how many cycles one purchase can be split over.
const maxInstallments = 48

// LedgerService holds the use cases behind the /v1 routes. It keeps no state
// of its own apart from the injected report cache.
type LedgerService struct {
	store      port.LedgerStore
	cache      port.Cache[[]domain.MonthGroup]
	metrics    *observability.Metrics
	aggregator *billing.Aggregator
	remainder  billing.RemainderPolicy
	now        func() time.Time
	logger     *zap.Logger

	// stockLocks serialises stock consumption per product.
	stockLocks sync.Map
}

// Option tunes a LedgerService.
type Option func(*LedgerService)

// WithRemainderPolicy sets how installment rounding drift is handled.
func WithRemainderPolicy(p billing.RemainderPolicy) Option {
	return func(s *LedgerService) { s.remainder = p }
}

// WithClock replaces time.Now for defaulted purchase and sale dates.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService creates the ledger service with all dependencies injected.
func NewLedgerService(
	store port.LedgerStore,
	cache port.Cache[[]domain.MonthGroup],
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *LedgerService {
	s := &LedgerService{
		store:      store,
		cache:      cache,
		metrics:    metrics,
		aggregator: billing.NewAggregator(logger, metrics.IncrRowSkipped),
		remainder:  billing.RemainderNone,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the counters behind GET /v1/metrics/ledger.
func (s *LedgerService) Metrics() *domain.LedgerMetrics {
	return s.metrics.Snapshot()
}

// observe counts store failures that came from the backend.
func (s *LedgerService) observe(err error) error {
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		s.metrics.IncrExternalError(ext.Service)
	}
	return err
}

func (s *LedgerService) invalidateReports(ownerID string) {
	s.cache.DeletePrefix(reportKeyPrefix(ownerID))
}

func (s *LedgerService) lockProduct(productID string) func() {
	mu, _ := s.stockLocks.LoadOrStore(productID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
