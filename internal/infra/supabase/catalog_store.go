package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Products
// ============================================================

type productRow struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	SalePrice decimal.Decimal `json:"sale_price"`
	CreatedAt string          `json:"created_at"`
}

func decodeProducts(body []byte) ([]domain.Product, error) {
	if body == nil {
		return []domain.Product{}, nil
	}
	var rows []productRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode products: %w", err))
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Product{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			Name:      r.Name,
			SKU:       r.SKU,
			SalePrice: r.SalePrice,
			CreatedAt: parseTimestamp(r.CreatedAt),
		})
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, ownerID string, req *domain.ProductRequest) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProduct")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	row := map[string]any{
		"owner_id":   ownerID,
		"name":       req.Name,
		"sku":        req.SKU,
		"sale_price": req.SalePrice.StringFixed(2),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	var product *domain.Product
	err := c.write(ctx, "supabase/products", func() error {
		body, err := c.doPost(ctx, "products", row)
		if err != nil {
			return err
		}
		products, err := decodeProducts(body)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return resilience.Permanent(fmt.Errorf("no result from products insert"))
		}
		product = &products[0]
		return nil
	})
	return product, err
}

func (c *Client) ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProducts")
	defer span.End()

	var products []domain.Product
	err := c.read(ctx, "supabase/products", func() error {
		path := fmt.Sprintf("products?owner_id=%s&order=name.asc", eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		products, err = decodeProducts(body)
		return err
	})
	return products, err
}

func (c *Client) GetProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	var product *domain.Product
	err := c.read(ctx, "supabase/products", func() error {
		path := fmt.Sprintf("products?id=%s&owner_id=%s&limit=1", eq(productID), eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		products, err := decodeProducts(body)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "product", ID: productID})
		}
		product = &products[0]
		return nil
	})
	return product, err
}

// ============================================================
// Purchases
// ============================================================

type purchaseRow struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	ProductID    string          `json:"product_id"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Quantity     int             `json:"quantity"`
	Remaining    int             `json:"remaining"`
	PurchasedAt  string          `json:"purchased_at"`
	CardID       *string         `json:"card_id"`
	Installments int             `json:"installments"`
	Description  string          `json:"description"`
}

func toPurchaseRow(p *domain.Purchase) purchaseRow {
	return purchaseRow{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		ProductID:    p.ProductID,
		UnitCost:     p.UnitCost,
		Quantity:     p.Quantity,
		Remaining:    p.Remaining,
		PurchasedAt:  p.PurchasedAt.UTC().Format(time.RFC3339),
		CardID:       p.CardID,
		Installments: p.Installments,
		Description:  p.Description,
	}
}

func decodePurchases(body []byte) ([]domain.Purchase, error) {
	if body == nil {
		return []domain.Purchase{}, nil
	}
	var rows []purchaseRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode purchases: %w", err))
	}
	out := make([]domain.Purchase, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Purchase{
			ID:           r.ID,
			OwnerID:      r.OwnerID,
			ProductID:    r.ProductID,
			UnitCost:     r.UnitCost,
			Quantity:     r.Quantity,
			Remaining:    r.Remaining,
			PurchasedAt:  parseTimestamp(r.PurchasedAt),
			CardID:       r.CardID,
			Installments: r.Installments,
			Description:  r.Description,
		})
	}
	return out, nil
}

func (c *Client) CreatePurchase(ctx context.Context, purchase *domain.Purchase) (*domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreatePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchase.ID))

	var created *domain.Purchase
	err := c.write(ctx, "supabase/purchases", func() error {
		body, err := c.doPost(ctx, "purchases", toPurchaseRow(purchase))
		if err != nil {
			return err
		}
		purchases, err := decodePurchases(body)
		if err != nil {
			return err
		}
		if len(purchases) == 0 {
			return resilience.Permanent(fmt.Errorf("no result from purchases insert"))
		}
		created = &purchases[0]
		return nil
	})
	return created, err
}

func (c *Client) ListPurchases(ctx context.Context, ownerID string) ([]domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPurchases")
	defer span.End()

	return c.listPurchases(ctx, fmt.Sprintf("purchases?owner_id=%s&order=purchased_at.desc", eq(ownerID)))
}

func (c *Client) ListOpenPurchases(ctx context.Context, ownerID, productID string) ([]domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOpenPurchases")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	return c.listPurchases(ctx, fmt.Sprintf(
		"purchases?owner_id=%s&product_id=%s&remaining=gt.0&order=purchased_at.asc,id.asc",
		eq(ownerID), eq(productID),
	))
}

func (c *Client) listPurchases(ctx context.Context, path string) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := c.read(ctx, "supabase/purchases", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		purchases, err = decodePurchases(body)
		return err
	})
	return purchases, err
}

func (c *Client) UpdatePurchaseRemaining(ctx context.Context, ownerID, purchaseID string, remaining int) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePurchaseRemaining")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	return c.write(ctx, "supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?id=%s&owner_id=%s", eq(purchaseID), eq(ownerID))
		body, err := c.doPatch(ctx, path, map[string]any{"remaining": remaining})
		if err != nil {
			return err
		}
		purchases, err := decodePurchases(body)
		if err != nil {
			return err
		}
		if len(purchases) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "purchase", ID: purchaseID})
		}
		return nil
	})
}

// ============================================================
// Stock movements
// ============================================================

type stockMovementRow struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	ProductID  string `json:"product_id"`
	Kind       string `json:"kind"`
	Quantity   int    `json:"quantity"`
	Reference  string `json:"reference"`
	OccurredAt string `json:"occurred_at"`
}

func (c *Client) InsertStockMovement(ctx context.Context, m *domain.StockMovement) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertStockMovement")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", m.ProductID),
		attribute.String("movement.kind", m.Kind),
	)

	row := stockMovementRow{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		ProductID:  m.ProductID,
		Kind:       m.Kind,
		Quantity:   m.Quantity,
		Reference:  m.Reference,
		OccurredAt: m.OccurredAt.UTC().Format(time.RFC3339),
	}
	return c.write(ctx, "supabase/stock_movements", func() error {
		_, err := c.doPost(ctx, "stock_movements", row)
		return err
	})
}

func (c *Client) ListStockMovements(ctx context.Context, ownerID, productID string) ([]domain.StockMovement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListStockMovements")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	var movements []domain.StockMovement
	err := c.read(ctx, "supabase/stock_movements", func() error {
		path := fmt.Sprintf("stock_movements?owner_id=%s&product_id=%s&order=occurred_at.asc", eq(ownerID), eq(productID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		movements = []domain.StockMovement{}
		if body == nil {
			return nil
		}
		var rows []stockMovementRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode stock_movements: %w", err))
		}
		for _, r := range rows {
			movements = append(movements, domain.StockMovement{
				ID:         r.ID,
				OwnerID:    r.OwnerID,
				ProductID:  r.ProductID,
				Kind:       r.Kind,
				Quantity:   r.Quantity,
				Reference:  r.Reference,
				OccurredAt: parseTimestamp(r.OccurredAt),
			})
		}
		return nil
	})
	return movements, err
}
