package port

import (
	"context"

	"github.com/boddenberg/stockledger-go/internal/domain"
)

// CardStore handles card data operations.
type CardStore interface {
	CreateCard(ctx context.Context, ownerID string, req *domain.CardRequest) (*domain.Card, error)
	ListCards(ctx context.Context, ownerID string) ([]domain.Card, error)
	GetCard(ctx context.Context, ownerID, cardID string) (*domain.Card, error)
	UpdateCard(ctx context.Context, ownerID, cardID string, req *domain.CardRequest) (*domain.Card, error)
}

// PaymentStore handles payment rows.
type PaymentStore interface {
	// InsertPayments stores all rows or none. A payment_intent_id that is
	// already stored fails the whole batch with *domain.ErrDuplicate.
	InsertPayments(ctx context.Context, payments []domain.Payment) ([]domain.Payment, error)
	ListPayments(ctx context.Context, ownerID string) ([]domain.Payment, error)
}
