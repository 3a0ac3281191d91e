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
// Clients
// ============================================================

type clientRow struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

func decodeClients(body []byte) ([]domain.Client, error) {
	if body == nil {
		return []domain.Client{}, nil
	}
	var rows []clientRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode clients: %w", err))
	}
	out := make([]domain.Client, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Client{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			Name:      r.Name,
			Email:     r.Email,
			Phone:     r.Phone,
			CreatedAt: parseTimestamp(r.CreatedAt),
		})
	}
	return out, nil
}

func (c *Client) CreateClient(ctx context.Context, ownerID string, req *domain.ClientRequest) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateClient")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	row := map[string]any{
		"owner_id":   ownerID,
		"name":       req.Name,
		"email":      req.Email,
		"phone":      req.Phone,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	var client *domain.Client
	err := c.write(ctx, "supabase/clients", func() error {
		body, err := c.doPost(ctx, "clients", row)
		if err != nil {
			return err
		}
		clients, err := decodeClients(body)
		if err != nil {
			return err
		}
		if len(clients) == 0 {
			return resilience.Permanent(fmt.Errorf("no result from clients insert"))
		}
		client = &clients[0]
		return nil
	})
	return client, err
}

func (c *Client) ListClients(ctx context.Context, ownerID string) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClients")
	defer span.End()

	var clients []domain.Client
	err := c.read(ctx, "supabase/clients", func() error {
		path := fmt.Sprintf("clients?owner_id=%s&order=name.asc", eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		clients, err = decodeClients(body)
		return err
	})
	return clients, err
}

func (c *Client) GetClient(ctx context.Context, ownerID, clientID string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var client *domain.Client
	err := c.read(ctx, "supabase/clients", func() error {
		path := fmt.Sprintf("clients?id=%s&owner_id=%s&limit=1", eq(clientID), eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		clients, err := decodeClients(body)
		if err != nil {
			return err
		}
		if len(clients) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "client", ID: clientID})
		}
		client = &clients[0]
		return nil
	})
	return client, err
}

// ============================================================
// Sales
// ============================================================

type saleRow struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	ClientID  *string         `json:"client_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	SoldAt    string          `json:"sold_at"`
}

func decodeSales(body []byte) ([]domain.Sale, error) {
	if body == nil {
		return []domain.Sale{}, nil
	}
	var rows []saleRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode sales: %w", err))
	}
	out := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Sale{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			ClientID:  r.ClientID,
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Total:     r.Total,
			SoldAt:    parseTimestamp(r.SoldAt),
		})
	}
	return out, nil
}

func (c *Client) CreateSale(ctx context.Context, sale *domain.Sale) (*domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateSale")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", sale.ProductID))

	row := saleRow{
		ID:        sale.ID,
		OwnerID:   sale.OwnerID,
		ClientID:  sale.ClientID,
		ProductID: sale.ProductID,
		Quantity:  sale.Quantity,
		UnitPrice: sale.UnitPrice,
		Total:     sale.Total,
		SoldAt:    sale.SoldAt.UTC().Format(time.RFC3339),
	}

	var created *domain.Sale
	err := c.write(ctx, "supabase/sales", func() error {
		body, err := c.doPost(ctx, "sales", row)
		if err != nil {
			return err
		}
		sales, err := decodeSales(body)
		if err != nil {
			return err
		}
		if len(sales) == 0 {
			return resilience.Permanent(fmt.Errorf("no result from sales insert"))
		}
		created = &sales[0]
		return nil
	})
	return created, err
}

func (c *Client) ListSales(ctx context.Context, ownerID string) ([]domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListSales")
	defer span.End()

	var sales []domain.Sale
	err := c.read(ctx, "supabase/sales", func() error {
		path := fmt.Sprintf("sales?owner_id=%s&order=sold_at.desc", eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		sales, err = decodeSales(body)
		return err
	})
	return sales, err
}
