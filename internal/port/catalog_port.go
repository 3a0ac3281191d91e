package port

import (
	"context"

	"github.com/boddenberg/stockledger-go/internal/domain"
)

// ProductStore handles the product catalog.
type ProductStore interface {
	CreateProduct(ctx context.Context, ownerID string, req *domain.ProductRequest) (*domain.Product, error)
	ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error)
}

// PurchaseStore handles stock purchases.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, purchase *domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, ownerID string) ([]domain.Purchase, error)
	// ListOpenPurchases returns the product's purchases with stock left,
	// oldest first.
	ListOpenPurchases(ctx context.Context, ownerID, productID string) ([]domain.Purchase, error)
	UpdatePurchaseRemaining(ctx context.Context, ownerID, purchaseID string, remaining int) error
}

// StockStore handles the stock movement log.
type StockStore interface {
	InsertStockMovement(ctx context.Context, m *domain.StockMovement) error
	ListStockMovements(ctx context.Context, ownerID, productID string) ([]domain.StockMovement, error)
}

// ClientStore handles clients.
type ClientStore interface {
	CreateClient(ctx context.Context, ownerID string, req *domain.ClientRequest) (*domain.Client, error)
	ListClients(ctx context.Context, ownerID string) ([]domain.Client, error)
	GetClient(ctx context.Context, ownerID, clientID string) (*domain.Client, error)
}

// SaleStore handles sales.
type SaleStore interface {
	CreateSale(ctx context.Context, sale *domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, ownerID string) ([]domain.Sale, error)
}
