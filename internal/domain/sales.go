package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a customer that sales can be attributed to.
type Client struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientRequest is the payload to create a client.
type ClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Sale is units of a product sold, optionally to a client.
type Sale struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	ClientID  *string         `json:"client_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	SoldAt    time.Time       `json:"sold_at"`
}

// SaleRequest is the payload to register a sale. A zero UnitPrice means the
// product's sale price.
type SaleRequest struct {
	ClientID  string          `json:"client_id,omitempty"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	SoldAt    time.Time       `json:"sold_at"`
}
