package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Purchases & payments
// ============================================================

// paymentPlan is what a purchase or an expense needs to become payments.
type paymentPlan struct {
	ownerID      string
	total        decimal.Decimal
	description  string
	occurredAt   time.Time
	method       domain.PaymentMethod
	cardID       string
	installments int
	seed         string
}

// buildPayments turns a plan into payment rows. Card payments are split over
// billing cycles starting at the cycle the purchase date falls in; anything
// else is a single payment without a cycle.
func (s *LedgerService) buildPayments(ctx context.Context, plan paymentPlan) ([]domain.Payment, error) {
	if plan.installments == 0 {
		plan.installments = 1
	}
	if plan.installments < 1 || plan.installments > maxInstallments {
		return nil, &domain.ErrValidation{Field: "installments", Message: fmt.Sprintf("must be between 1 and %d", maxInstallments)}
	}
	if plan.method == "" {
		plan.method = domain.MethodCash
		if plan.cardID != "" {
			plan.method = domain.MethodCard
		}
	}
	if !plan.method.Valid() {
		return nil, &domain.ErrValidation{Field: "method", Message: "must be card, cash or transfer"}
	}
	if plan.method == domain.MethodCard && plan.cardID == "" {
		return nil, &domain.ErrValidation{Field: "card_id", Message: "required for card payments"}
	}
	if plan.method != domain.MethodCard && plan.cardID != "" {
		return nil, &domain.ErrValidation{Field: "card_id", Message: "only allowed for card payments"}
	}
	if plan.method != domain.MethodCard && plan.installments > 1 {
		return nil, &domain.ErrValidation{Field: "installments", Message: "only card payments can be split"}
	}
	if plan.seed == "" {
		plan.seed = uuid.NewString()
	}

	if plan.method != domain.MethodCard {
		return []domain.Payment{{
			ID:                 uuid.NewString(),
			OwnerID:            plan.ownerID,
			Amount:             plan.total,
			Description:        plan.description,
			OccurredAt:         plan.occurredAt,
			Method:             plan.method,
			InstallmentCount:   1,
			CurrentInstallment: 1,
			PaymentIntentID:    plan.seed + "-1",
		}}, nil
	}

	card, err := s.store.GetCard(ctx, plan.ownerID, plan.cardID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("get card: %w", err))
	}

	firstCycle, err := billing.ResolveCycleClose(plan.occurredAt, card.ClosingDay)
	if err != nil {
		return nil, err
	}
	payments, err := billing.ExpandInstallments(plan.total, plan.installments, plan.description, firstCycle,
		billing.WithAnchorDay(card.ClosingDay),
		billing.WithIntentSeed(plan.seed),
		billing.WithRemainderPolicy(s.remainder),
	)
	if err != nil {
		return nil, err
	}

	cardID := card.ID
	for i := range payments {
		payments[i].ID = uuid.NewString()
		payments[i].OwnerID = plan.ownerID
		payments[i].OccurredAt = plan.occurredAt
		payments[i].Method = domain.MethodCard
		payments[i].CardID = &cardID
	}
	return payments, nil
}

// storePayments runs the atomic bulk insert and reports a replayed
// idempotency key as a duplicate of that key.
func (s *LedgerService) storePayments(ctx context.Context, ownerID, seed string, payments []domain.Payment) ([]domain.Payment, error) {
	stored, err := s.store.InsertPayments(ctx, payments)
	if err != nil {
		var dup *domain.ErrDuplicate
		if errors.As(err, &dup) {
			s.logger.Warn("payment replay rejected",
				zap.String("owner_id", ownerID),
				zap.String("idempotency_key", seed),
			)
			return nil, &domain.ErrDuplicate{Key: seed}
		}
		s.logger.Error("failed to store payments", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, s.observe(fmt.Errorf("insert payments: %w", err))
	}

	s.metrics.RecordPayments(stored)
	s.invalidateReports(ownerID)
	return stored, nil
}

// CreatePurchase records a stock purchase and the payments that settle it.
// Payments go first: a replayed Idempotency-Key is rejected before any
// purchase or stock row is written.
func (s *LedgerService) CreatePurchase(ctx context.Context, ownerID string, req *domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreatePurchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("installments", req.Installments),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_purchase", time.Since(start)) }()

	if req.ProductID == "" {
		return nil, &domain.ErrValidation{Field: "product_id", Message: "required"}
	}
	if req.Quantity < 1 {
		return nil, &domain.ErrValidation{Field: "quantity", Message: "must be at least 1"}
	}
	if req.UnitCost.IsNegative() {
		return nil, &domain.ErrValidation{Field: "unit_cost", Message: "must not be negative"}
	}
	if req.PurchasedAt.IsZero() {
		req.PurchasedAt = s.now()
	}

	product, err := s.store.GetProduct(ctx, ownerID, req.ProductID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("get product: %w", err))
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("%s x%d", product.Name, req.Quantity)
	}

	seed := req.IdempotencyKey
	if seed == "" {
		seed = uuid.NewString()
	}

	purchase := &domain.Purchase{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		ProductID:    product.ID,
		UnitCost:     req.UnitCost,
		Quantity:     req.Quantity,
		Remaining:    req.Quantity,
		PurchasedAt:  req.PurchasedAt,
		Installments: max(req.Installments, 1),
		Description:  description,
	}
	if req.CardID != "" {
		cardID := req.CardID
		purchase.CardID = &cardID
	}

	payments, err := s.buildPayments(ctx, paymentPlan{
		ownerID:      ownerID,
		total:        purchase.Total(),
		description:  description,
		occurredAt:   req.PurchasedAt,
		method:       req.Method,
		cardID:       req.CardID,
		installments: req.Installments,
		seed:         seed,
	})
	if err != nil {
		return nil, err
	}
	purchaseID := purchase.ID
	for i := range payments {
		payments[i].PurchaseID = &purchaseID
	}

	stored, err := s.storePayments(ctx, ownerID, seed, payments)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreatePurchase(ctx, purchase)
	if err != nil {
		s.logger.Error("payments stored but purchase insert failed",
			zap.String("owner_id", ownerID),
			zap.String("purchase_id", purchase.ID),
			zap.String("idempotency_key", seed),
			zap.Error(err),
		)
		return nil, s.observe(fmt.Errorf("create purchase: %w", err))
	}

	if err := s.store.InsertStockMovement(ctx, &domain.StockMovement{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ProductID:  product.ID,
		Kind:       domain.StockIn,
		Quantity:   created.Quantity,
		Reference:  created.ID,
		OccurredAt: created.PurchasedAt,
	}); err != nil {
		return nil, s.observe(fmt.Errorf("insert stock movement: %w", err))
	}

	s.logger.Info("purchase recorded",
		zap.String("owner_id", ownerID),
		zap.String("purchase_id", created.ID),
		zap.String("product_id", product.ID),
		zap.Int("quantity", created.Quantity),
		zap.Int("payments", len(stored)),
	)
	return &domain.PurchaseResult{Purchase: created, Payments: stored}, nil
}

// CreateExpense records a payment that does not buy stock.
func (s *LedgerService) CreateExpense(ctx context.Context, ownerID string, req *domain.ExpenseRequest) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateExpense")
	defer span.End()
	span.SetAttributes(attribute.Int("installments", req.Installments))

	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = s.now()
	}

	seed := req.IdempotencyKey
	if seed == "" {
		seed = uuid.NewString()
	}

	payments, err := s.buildPayments(ctx, paymentPlan{
		ownerID:      ownerID,
		total:        req.Amount,
		description:  strings.TrimSpace(req.Description),
		occurredAt:   req.OccurredAt,
		method:       req.Method,
		cardID:       req.CardID,
		installments: req.Installments,
		seed:         seed,
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.storePayments(ctx, ownerID, seed, payments)
	if err != nil {
		return nil, err
	}

	s.logger.Info("expense recorded",
		zap.String("owner_id", ownerID),
		zap.String("method", string(payments[0].Method)),
		zap.Int("payments", len(stored)),
	)
	return stored, nil
}

func (s *LedgerService) ListPurchases(ctx context.Context, ownerID string) ([]domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListPurchases")
	defer span.End()

	purchases, err := s.store.ListPurchases(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list purchases: %w", err))
	}
	return purchases, nil
}

func (s *LedgerService) ListPayments(ctx context.Context, ownerID string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListPayments")
	defer span.End()

	payments, err := s.store.ListPayments(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list payments: %w", err))
	}
	return payments, nil
}
