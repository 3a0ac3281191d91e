package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Catalog & Stock
// ============================================================

// Product is a catalog item that can be bought and sold.
type Product struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	SalePrice decimal.Decimal `json:"sale_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// ProductRequest is the payload to create a product.
type ProductRequest struct {
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

// Purchase is a stock acquisition. Only Remaining changes after creation.
type Purchase struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	ProductID    string          `json:"product_id"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Quantity     int             `json:"quantity"`
	Remaining    int             `json:"remaining"`
	PurchasedAt  time.Time       `json:"purchased_at"`
	CardID       *string         `json:"card_id"`
	Installments int             `json:"installments"`
	Description  string          `json:"description"`
}

// Total is the purchase cost.
func (p Purchase) Total() decimal.Decimal {
	return p.UnitCost.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// PurchaseRequest is the payload to register a purchase.
type PurchaseRequest struct {
	ProductID    string          `json:"product_id"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Quantity     int             `json:"quantity"`
	PurchasedAt  time.Time       `json:"purchased_at"`
	Method       PaymentMethod   `json:"method,omitempty"`
	CardID       string          `json:"card_id,omitempty"`
	Installments int             `json:"installments,omitempty"`
	Description  string          `json:"description,omitempty"`

	IdempotencyKey string `json:"-"`
}

// PurchaseResult is a stored purchase together with the payments it produced.
type PurchaseResult struct {
	Purchase *Purchase `json:"purchase"`
	Payments []Payment `json:"payments"`
}

// Stock movement kinds.
const (
	StockIn  = "in"
	StockOut = "out"
)

// StockMovement records units entering or leaving stock.
type StockMovement struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ProductID  string    `json:"product_id"`
	Kind       string    `json:"kind"`
	Quantity   int       `json:"quantity"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StockReport is returned by GET /v1/products/{productId}/stock.
type StockReport struct {
	ProductID string          `json:"product_id"`
	Remaining int             `json:"remaining"`
	Movements []StockMovement `json:"movements"`
}
