package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/stockledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Catalog & stock
// ============================================================

func (s *LedgerService) CreateProduct(ctx context.Context, ownerID string, req *domain.ProductRequest) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateProduct")
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.SalePrice.IsNegative() {
		return nil, &domain.ErrValidation{Field: "sale_price", Message: "must not be negative"}
	}

	product, err := s.store.CreateProduct(ctx, ownerID, req)
	if err != nil {
		s.logger.Error("failed to create product", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, s.observe(fmt.Errorf("create product: %w", err))
	}

	s.logger.Info("product created", zap.String("owner_id", ownerID), zap.String("product_id", product.ID))
	return product, nil
}

func (s *LedgerService) ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListProducts")
	defer span.End()

	products, err := s.store.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list products: %w", err))
	}
	return products, nil
}

func (s *LedgerService) GetProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	product, err := s.store.GetProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("get product: %w", err))
	}
	return product, nil
}

// GetStock reports units left, summed over the product's open purchases,
// together with the movement log.
func (s *LedgerService) GetStock(ctx context.Context, ownerID, productID string) (*domain.StockReport, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.GetStock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	if _, err := s.GetProduct(ctx, ownerID, productID); err != nil {
		return nil, err
	}

	open, err := s.store.ListOpenPurchases(ctx, ownerID, productID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list open purchases: %w", err))
	}
	movements, err := s.store.ListStockMovements(ctx, ownerID, productID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list stock movements: %w", err))
	}

	remaining := 0
	for _, p := range open {
		remaining += p.Remaining
	}
	return &domain.StockReport{
		ProductID: productID,
		Remaining: remaining,
		Movements: movements,
	}, nil
}
