package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/cache"
	"github.com/boddenberg/stockledger-go/internal/infra/memstore"
	"github.com/boddenberg/stockledger-go/internal/infra/observability"
	"github.com/boddenberg/stockledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const owner = "owner-1"

var fixedNow = time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc     *service.LedgerService
	store   *memstore.Store
	metrics *observability.Metrics
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	store := memstore.New()
	metrics := observability.NewMetrics()
	opts = append([]service.Option{service.WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := service.NewLedgerService(
		store,
		newCache(t),
		metrics,
		zap.NewNop(),
		opts...,
	)
	return &fixture{svc: svc, store: store, metrics: metrics}
}

func newCache(t *testing.T) *cache.InMemory[[]domain.MonthGroup] {
	t.Helper()
	c := cache.New[[]domain.MonthGroup](5 * time.Minute)
	t.Cleanup(c.Close)
	return c
}

func (f *fixture) card(t *testing.T, alias string, closing, due int) *domain.Card {
	t.Helper()
	card, err := f.svc.CreateCard(context.Background(), owner, &domain.CardRequest{Alias: alias, ClosingDay: closing, DueDay: due})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	return card
}

func (f *fixture) product(t *testing.T, name, price string) *domain.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), owner, &domain.ProductRequest{Name: name, SalePrice: dec(price)})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// --- Mocks ---

// failingStore fails every payment read the way the Supabase client reports
// an unreachable backend.
type failingStore struct {
	*memstore.Store
}

func (failingStore) ListPayments(_ context.Context, _ string) ([]domain.Payment, error) {
	return nil, &domain.ErrExternalService{Service: "supabase", Err: errors.New("connection refused")}
}

// --- Tests ---

func TestCreateCard_RejectsInvalidDays(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		req   domain.CardRequest
		field string
	}{
		{"closing zero", domain.CardRequest{Alias: "Visa", ClosingDay: 0, DueDay: 10}, "closing_day"},
		{"closing 32", domain.CardRequest{Alias: "Visa", ClosingDay: 32, DueDay: 10}, "closing_day"},
		{"due negative", domain.CardRequest{Alias: "Visa", ClosingDay: 5, DueDay: -1}, "due_day"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateCard(context.Background(), owner, &tc.req)
			var cfgErr *domain.ErrInvalidConfiguration
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("field = %s, want %s", cfgErr.Field, tc.field)
			}
		})
	}

	_, err := f.svc.CreateCard(context.Background(), owner, &domain.CardRequest{Alias: "  ", ClosingDay: 5, DueDay: 10})
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) || valErr.Field != "alias" {
		t.Fatalf("expected alias validation error, got %v", err)
	}
}

func TestGetCard_OtherOwnerNotFound(t *testing.T) {
	f := newFixture(t)
	card := f.card(t, "Visa", 10, 20)

	_, err := f.svc.GetCard(context.Background(), "someone-else", card.ID)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPreviewCycle(t *testing.T) {
	f := newFixture(t)
	card := f.card(t, "Master", 31, 5)

	preview, err := f.svc.PreviewCycle(context.Background(), owner, card.ID, date(2024, 2, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.CycleClose != "2024-02-29" {
		t.Errorf("cycle close = %s, want 2024-02-29", preview.CycleClose)
	}
	if preview.DueDate != "2024-03-05" {
		t.Errorf("due date = %s, want 2024-03-05", preview.DueDate)
	}
	if preview.Month != "2024-02" {
		t.Errorf("month = %s, want 2024-02", preview.Month)
	}
}

func TestFuturePayments_CachesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.card(t, "Visa", 10, 20)

	if _, err := f.svc.CreateExpense(ctx, owner, &domain.ExpenseRequest{
		Amount: dec("90"), Description: "Hosting", OccurredAt: date(2024, 3, 12),
		CardID: card.ID, Installments: 3,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	today := date(2024, 3, 12)
	first, err := f.svc.FuturePayments(ctx, owner, today)
	if err != nil {
		t.Fatalf("future payments: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 months, got %d", len(first))
	}
	if first[0].Month != "2024-04" || first[2].Month != "2024-06" {
		t.Errorf("unexpected months: %s .. %s", first[0].Month, first[2].Month)
	}
	if !first[0].TotalMonth.Equal(dec("30")) {
		t.Errorf("first month total = %s, want 30", first[0].TotalMonth)
	}

	if _, err := f.svc.FuturePayments(ctx, owner, today); err != nil {
		t.Fatalf("future payments (cached): %v", err)
	}
	if rate := f.metrics.Snapshot().CacheHitRate; rate != 0.5 {
		t.Errorf("cache hit rate = %v, want 0.5", rate)
	}

	if _, err := f.svc.CreateExpense(ctx, owner, &domain.ExpenseRequest{
		Amount: dec("10"), Description: "Domain", OccurredAt: date(2024, 3, 12), CardID: card.ID,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	after, err := f.svc.FuturePayments(ctx, owner, today)
	if err != nil {
		t.Fatalf("future payments after write: %v", err)
	}
	if !after[0].TotalMonth.Equal(dec("40")) {
		t.Errorf("stale report after write: april total = %s, want 40", after[0].TotalMonth)
	}
}

func TestFuturePayments_EmptyOwner(t *testing.T) {
	f := newFixture(t)

	groups, err := f.svc.FuturePayments(context.Background(), "nobody", date(2024, 3, 12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups == nil || len(groups) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", groups)
	}
}

func TestNextCycleDue_Scopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.card(t, "Visa", 10, 20)

	if _, err := f.svc.CreateExpense(ctx, owner, &domain.ExpenseRequest{
		Amount: dec("100"), Description: "Course", OccurredAt: date(2024, 3, 1),
		CardID: card.ID, Installments: 4,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	next, err := f.svc.NextCycleDue(ctx, owner, date(2024, 3, 5), billing.DueNextMonth)
	if err != nil {
		t.Fatalf("next cycle: %v", err)
	}
	if !next.Total.Equal(dec("25")) {
		t.Errorf("next month total = %s, want 25", next.Total)
	}

	all, err := f.svc.NextCycleDue(ctx, owner, date(2024, 3, 5), billing.DueAllFuture)
	if err != nil {
		t.Fatalf("all future: %v", err)
	}
	if !all.Total.Equal(dec("100")) {
		t.Errorf("all future total = %s, want 100", all.Total)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.card(t, "Visa", 10, 20)
	product := f.product(t, "Mug", "15")

	if _, err := f.svc.CreatePurchase(ctx, owner, &domain.PurchaseRequest{
		ProductID: product.ID, UnitCost: dec("6"), Quantity: 10,
		PurchasedAt: date(2024, 3, 1), CardID: card.ID, Installments: 2,
	}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if _, err := f.svc.CreateExpense(ctx, owner, &domain.ExpenseRequest{
		Amount: dec("12.50"), Description: "Tape", OccurredAt: date(2024, 3, 2), Method: domain.MethodCash,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := f.svc.CreateSale(ctx, owner, &domain.SaleRequest{ProductID: product.ID, Quantity: 4}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	sum, err := f.svc.Summary(ctx, owner, date(2024, 3, 5))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if !sum.TotalSpent.Equal(dec("72.50")) {
		t.Errorf("total spent = %s, want 72.50", sum.TotalSpent)
	}
	if !sum.SalesRevenue.Equal(dec("60")) || sum.SalesCount != 1 {
		t.Errorf("sales = %s/%d, want 60/1", sum.SalesRevenue, sum.SalesCount)
	}
	if sum.StockUnits != 6 || !sum.StockCostValue.Equal(dec("36")) {
		t.Errorf("stock = %d units worth %s, want 6 worth 36", sum.StockUnits, sum.StockCostValue)
	}
	if sum.MonthsAhead != 2 || sum.CardCount != 1 {
		t.Errorf("months ahead = %d, cards = %d", sum.MonthsAhead, sum.CardCount)
	}
	if !sum.DueNextMonth.Equal(dec("30")) || !sum.DueAllFuture.Equal(dec("60")) {
		t.Errorf("due next/all = %s/%s, want 30/60", sum.DueNextMonth, sum.DueAllFuture)
	}
}

func TestStoreFailure_CountedAsExternalError(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := service.NewLedgerService(
		failingStore{memstore.New()},
		newCache(t),
		metrics,
		zap.NewNop(),
	)

	_, err := svc.FuturePayments(context.Background(), owner, date(2024, 3, 5))
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if got := metrics.Snapshot().ExternalErrors; got != 1 {
		t.Errorf("external errors = %d, want 1", got)
	}
}
