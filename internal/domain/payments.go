package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was settled.
type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "transfer"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodCash, MethodTransfer:
		return true
	}
	return false
}

// Payment is one money movement. Each installment of a purchase is its own
// Payment; there is no row holding the purchase total.
type Payment struct {
	ID                     string          `json:"id"`
	OwnerID                string          `json:"owner_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Description            string          `json:"description"`
	OccurredAt             time.Time       `json:"occurred_at"`
	Method                 PaymentMethod   `json:"method"`
	CardID                 *string         `json:"card_id"`
	PurchaseID             *string         `json:"purchase_id,omitempty"`
	CycleClose             *time.Time      `json:"cycle_close"`
	IsInstallment          bool            `json:"is_installment"`
	InstallmentCount       int             `json:"installment_count"`
	CurrentInstallment     int             `json:"current_installment"`
	OriginalPaymentGroupID *string         `json:"original_payment_group_id"`
	PaymentIntentID        string          `json:"payment_intent_id"`
}

// ExpenseRequest records a payment that is not tied to a product purchase.
type ExpenseRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Method       PaymentMethod   `json:"method,omitempty"`
	CardID       string          `json:"card_id,omitempty"`
	Installments int             `json:"installments,omitempty"`

	// IdempotencyKey seeds the payment intent ids. Taken from the
	// Idempotency-Key header, never from the body.
	IdempotencyKey string `json:"-"`
}

// ============================================================
// Aggregation views
// ============================================================

// PaymentDetail is one line inside a CardGroup.
type PaymentDetail struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CardGroup is the subtotal of one card within a month.
type CardGroup struct {
	CardID    string          `json:"card_id"`
	Alias     string          `json:"alias"`
	TotalCard decimal.Decimal `json:"total_card"`
	Payments  []PaymentDetail `json:"payments"`
}

// MonthGroup is the total of all card payments closing in one month.
type MonthGroup struct {
	Month      string          `json:"month"` // YYYY-MM
	TotalMonth decimal.Decimal `json:"total_month"`
	ByCard     []CardGroup     `json:"desglosePorTarjeta"`
}
