package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/stockledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Clients & sales
// ============================================================

func (s *LedgerService) CreateClient(ctx context.Context, ownerID string, req *domain.ClientRequest) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateClient")
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}

	client, err := s.store.CreateClient(ctx, ownerID, req)
	if err != nil {
		return nil, s.observe(fmt.Errorf("create client: %w", err))
	}

	s.logger.Info("client created", zap.String("owner_id", ownerID), zap.String("client_id", client.ID))
	return client, nil
}

func (s *LedgerService) ListClients(ctx context.Context, ownerID string) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListClients")
	defer span.End()

	clients, err := s.store.ListClients(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list clients: %w", err))
	}
	return clients, nil
}

// CreateSale takes units out of stock, oldest purchase first, and records
// the sale. It fails with *domain.ErrInsufficientStock when the open
// purchases do not cover the quantity.
func (s *LedgerService) CreateSale(ctx context.Context, ownerID string, req *domain.SaleRequest) (*domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateSale")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	if req.ProductID == "" {
		return nil, &domain.ErrValidation{Field: "product_id", Message: "required"}
	}
	if req.Quantity < 1 {
		return nil, &domain.ErrValidation{Field: "quantity", Message: "must be at least 1"}
	}
	if req.UnitPrice.IsNegative() {
		return nil, &domain.ErrValidation{Field: "unit_price", Message: "must not be negative"}
	}
	if req.SoldAt.IsZero() {
		req.SoldAt = s.now()
	}

	product, err := s.store.GetProduct(ctx, ownerID, req.ProductID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("get product: %w", err))
	}

	var clientID *string
	if req.ClientID != "" {
		client, err := s.store.GetClient(ctx, ownerID, req.ClientID)
		if err != nil {
			return nil, s.observe(fmt.Errorf("get client: %w", err))
		}
		clientID = &client.ID
	}

	unitPrice := req.UnitPrice
	if unitPrice.IsZero() {
		unitPrice = product.SalePrice
	}

	unlock := s.lockProduct(product.ID)
	defer unlock()

	open, err := s.store.ListOpenPurchases(ctx, ownerID, product.ID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list open purchases: %w", err))
	}
	available := 0
	for _, p := range open {
		available += p.Remaining
	}
	if available < req.Quantity {
		return nil, &domain.ErrInsufficientStock{ProductID: product.ID, Available: available, Required: req.Quantity}
	}

	need := req.Quantity
	var consumed []domain.Purchase
	for _, p := range open {
		if need == 0 {
			break
		}
		take := min(p.Remaining, need)
		if err := s.store.UpdatePurchaseRemaining(ctx, ownerID, p.ID, p.Remaining-take); err != nil {
			s.logger.Error("stock consumption interrupted",
				zap.String("owner_id", ownerID),
				zap.String("purchase_id", p.ID),
				zap.Int("pending", need),
				zap.Error(err),
			)
			s.restoreRemaining(ctx, ownerID, consumed)
			return nil, s.observe(fmt.Errorf("update purchase remaining: %w", err))
		}
		consumed = append(consumed, p)
		need -= take
	}

	sale, err := s.store.CreateSale(ctx, &domain.Sale{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ClientID:  clientID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
		UnitPrice: unitPrice,
		Total:     unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		SoldAt:    req.SoldAt,
	})
	if err != nil {
		s.restoreRemaining(ctx, ownerID, consumed)
		return nil, s.observe(fmt.Errorf("create sale: %w", err))
	}

	if err := s.store.InsertStockMovement(ctx, &domain.StockMovement{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ProductID:  product.ID,
		Kind:       domain.StockOut,
		Quantity:   sale.Quantity,
		Reference:  sale.ID,
		OccurredAt: sale.SoldAt,
	}); err != nil {
		return nil, s.observe(fmt.Errorf("insert stock movement: %w", err))
	}

	s.logger.Info("sale recorded",
		zap.String("owner_id", ownerID),
		zap.String("sale_id", sale.ID),
		zap.String("product_id", product.ID),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.Total.StringFixed(2)),
	)
	return sale, nil
}

func (s *LedgerService) ListSales(ctx context.Context, ownerID string) ([]domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListSales")
	defer span.End()

	sales, err := s.store.ListSales(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list sales: %w", err))
	}
	return sales, nil
}

// restoreRemaining puts back the stock taken from purchases when a sale
// could not be recorded. It is best effort: failures are logged and the
// purchase keeps the decremented value.
func (s *LedgerService) restoreRemaining(ctx context.Context, ownerID string, purchases []domain.Purchase) {
	for _, p := range purchases {
		if err := s.store.UpdatePurchaseRemaining(ctx, ownerID, p.ID, p.Remaining); err != nil {
			s.logger.Error("stock restore failed",
				zap.String("owner_id", ownerID),
				zap.String("purchase_id", p.ID),
				zap.Int("remaining", p.Remaining),
				zap.Error(err),
			)
		}
	}
}
