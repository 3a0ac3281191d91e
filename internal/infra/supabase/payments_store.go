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
// Payments (one row per installment)
// ============================================================

// paymentRow mirrors the payments table. cycle_close is a DATE column and
// stays a string here so malformed values can be told apart from NULL.
type paymentRow struct {
	ID                     string          `json:"id"`
	OwnerID                string          `json:"owner_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Description            string          `json:"description"`
	OccurredAt             string          `json:"occurred_at"`
	Method                 string          `json:"method"`
	CardID                 *string         `json:"card_id"`
	PurchaseID             *string         `json:"purchase_id"`
	CycleClose             *string         `json:"cycle_close"`
	IsInstallment          bool            `json:"is_installment"`
	InstallmentCount       int             `json:"installment_count"`
	CurrentInstallment     int             `json:"current_installment"`
	OriginalPaymentGroupID *string         `json:"original_payment_group_id"`
	PaymentIntentID        string          `json:"payment_intent_id"`
}

func toPaymentRow(p domain.Payment) paymentRow {
	return paymentRow{
		ID:                     p.ID,
		OwnerID:                p.OwnerID,
		Amount:                 p.Amount,
		Description:            p.Description,
		OccurredAt:             p.OccurredAt.UTC().Format(time.RFC3339),
		Method:                 string(p.Method),
		CardID:                 p.CardID,
		PurchaseID:             p.PurchaseID,
		CycleClose:             formatDatePtr(p.CycleClose),
		IsInstallment:          p.IsInstallment,
		InstallmentCount:       p.InstallmentCount,
		CurrentInstallment:     p.CurrentInstallment,
		OriginalPaymentGroupID: p.OriginalPaymentGroupID,
		PaymentIntentID:        p.PaymentIntentID,
	}
}

func (r paymentRow) toDomain() domain.Payment {
	return domain.Payment{
		ID:                     r.ID,
		OwnerID:                r.OwnerID,
		Amount:                 r.Amount,
		Description:            r.Description,
		OccurredAt:             parseTimestamp(r.OccurredAt),
		Method:                 domain.PaymentMethod(r.Method),
		CardID:                 r.CardID,
		PurchaseID:             r.PurchaseID,
		CycleClose:             parseDatePtr(r.CycleClose),
		IsInstallment:          r.IsInstallment,
		InstallmentCount:       r.InstallmentCount,
		CurrentInstallment:     r.CurrentInstallment,
		OriginalPaymentGroupID: r.OriginalPaymentGroupID,
		PaymentIntentID:        r.PaymentIntentID,
	}
}

func decodePayments(body []byte) ([]domain.Payment, error) {
	if body == nil {
		return []domain.Payment{}, nil
	}
	var rows []paymentRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode payments: %w", err))
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// InsertPayments stores every row in a single bulk insert. The unique index
// on (owner_id, payment_intent_id) turns a replayed batch into a 409, which
// surfaces as *domain.ErrDuplicate.
func (c *Client) InsertPayments(ctx context.Context, payments []domain.Payment) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertPayments")
	defer span.End()
	span.SetAttributes(attribute.Int("payments.count", len(payments)))

	if len(payments) == 0 {
		return []domain.Payment{}, nil
	}

	rows := make([]paymentRow, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, toPaymentRow(p))
	}

	var stored []domain.Payment
	err := c.write(ctx, "supabase/payments", func() error {
		body, err := c.doPost(ctx, "payments", rows)
		if err != nil {
			return err
		}
		stored, err = decodePayments(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (c *Client) ListPayments(ctx context.Context, ownerID string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPayments")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	var payments []domain.Payment
	err := c.read(ctx, "supabase/payments", func() error {
		path := fmt.Sprintf("payments?owner_id=%s&order=occurred_at.asc,current_installment.asc", eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		payments, err = decodePayments(body)
		return err
	})
	return payments, err
}
