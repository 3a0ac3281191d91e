package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Reports
// ============================================================

func reportKeyPrefix(ownerID string) string {
	return fmt.Sprintf("future:%s:", ownerID)
}

func reportKey(ownerID string, today time.Time) string {
	return reportKeyPrefix(ownerID) + today.Format(billing.DateLayout)
}

// FuturePayments groups the owner's card payments whose cycle closes on or
// after today by month and card. Results are cached per owner and day and
// dropped whenever the owner stores payments or edits a card.
func (s *LedgerService) FuturePayments(ctx context.Context, ownerID string, today time.Time) ([]domain.MonthGroup, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.FuturePayments")
	defer span.End()
	span.SetAttributes(attribute.String("today", today.Format(billing.DateLayout)))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("future_payments", time.Since(start)) }()

	key := reportKey(ownerID, today)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit(observability.CacheReports)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(observability.CacheReports)

	var (
		payments []domain.Payment
		cards    []domain.Card
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.ListPayments(gCtx, ownerID)
		if err != nil {
			return s.observe(fmt.Errorf("list payments: %w", err))
		}
		payments = p
		return nil
	})
	g.Go(func() error {
		c, err := s.store.ListCards(gCtx, ownerID)
		if err != nil {
			return s.observe(fmt.Errorf("list cards: %w", err))
		}
		cards = c
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("future payments: fetch failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	groups := s.aggregator.GroupByMonthAndCard(s.aggregator.FilterFuturePayments(payments, today), cards)
	s.cache.Set(key, groups)
	return groups, nil
}

// NextCycleDue sums card payments still to be billed, either for the nearest
// month only or for every future month.
func (s *LedgerService) NextCycleDue(ctx context.Context, ownerID string, today time.Time, scope billing.DueScope) (*domain.NextCycleDue, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.NextCycleDue")
	defer span.End()
	span.SetAttributes(attribute.String("scope", string(scope)))

	payments, err := s.store.ListPayments(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list payments: %w", err))
	}

	return &domain.NextCycleDue{
		Today: today.Format(billing.DateLayout),
		Scope: string(scope),
		Total: s.aggregator.TotalDueNextCycle(payments, today, scope),
	}, nil
}

// Summary builds the dashboard totals. Payments, cards, sales and purchases
// are fetched concurrently.
func (s *LedgerService) Summary(ctx context.Context, ownerID string, today time.Time) (*domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Summary")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("summary", time.Since(start)) }()

	var (
		payments  []domain.Payment
		cards     []domain.Card
		sales     []domain.Sale
		purchases []domain.Purchase
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.ListPayments(gCtx, ownerID)
		if err != nil {
			return s.observe(fmt.Errorf("list payments: %w", err))
		}
		payments = p
		return nil
	})
	g.Go(func() error {
		c, err := s.store.ListCards(gCtx, ownerID)
		if err != nil {
			return s.observe(fmt.Errorf("list cards: %w", err))
		}
		cards = c
		return nil
	})
	g.Go(func() error {
		sl, err := s.store.ListSales(gCtx, ownerID)
		if err != nil {
			return s.observe(fmt.Errorf("list sales: %w", err))
		}
		sales = sl
		return nil
	})
	g.Go(func() error {
		p, err := s.store.ListPurchases(gCtx, ownerID)
		if err != nil {
			return s.observe(fmt.Errorf("list purchases: %w", err))
		}
		purchases = p
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("summary: fetch failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	sum := &domain.Summary{
		Today:          today.Format(billing.DateLayout),
		TotalSpent:     decimal.Zero,
		SalesRevenue:   decimal.Zero,
		StockCostValue: decimal.Zero,
		SalesCount:     len(sales),
		CardCount:      len(cards),
	}

	for _, p := range payments {
		sum.TotalSpent = sum.TotalSpent.Add(p.Amount)
	}
	for _, sl := range sales {
		sum.SalesRevenue = sum.SalesRevenue.Add(sl.Total)
	}
	for _, p := range purchases {
		sum.StockUnits += p.Remaining
		sum.StockCostValue = sum.StockCostValue.Add(p.UnitCost.Mul(decimal.NewFromInt(int64(p.Remaining))))
	}

	future := s.aggregator.FilterFuturePayments(payments, today)
	sum.UpcomingByMonth = s.aggregator.GroupByMonthAndCard(future, cards)
	sum.MonthsAhead = len(sum.UpcomingByMonth)
	sum.DueNextMonth = s.aggregator.TotalDueNextCycle(future, today, billing.DueNextMonth)
	sum.DueAllFuture = s.aggregator.TotalDueNextCycle(future, today, billing.DueAllFuture)

	return sum, nil
}
