package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/memstore"
	"github.com/boddenberg/stockledger-go/internal/port"

	"github.com/shopspring/decimal"
)

var _ port.LedgerStore = (*memstore.Store)(nil)

func TestInsertPayments_AllOrNothing(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	first := []domain.Payment{
		{OwnerID: "o", Amount: decimal.NewFromInt(10), PaymentIntentID: "k-1"},
		{OwnerID: "o", Amount: decimal.NewFromInt(10), PaymentIntentID: "k-2"},
	}
	stored, err := s.InsertPayments(ctx, first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range stored {
		if p.ID == "" {
			t.Error("expected generated id")
		}
	}

	replay := []domain.Payment{
		{OwnerID: "o", Amount: decimal.NewFromInt(10), PaymentIntentID: "k-3"},
		{OwnerID: "o", Amount: decimal.NewFromInt(10), PaymentIntentID: "k-2"},
	}
	_, err = s.InsertPayments(ctx, replay)
	var dup *domain.ErrDuplicate
	if !errors.As(err, &dup) || dup.Key != "k-2" {
		t.Fatalf("expected duplicate k-2, got %v", err)
	}

	all, _ := s.ListPayments(ctx, "o")
	if len(all) != 2 {
		t.Errorf("expected the failed batch to store nothing, got %d rows", len(all))
	}
}

func TestInsertPayments_DuplicateInsideBatch(t *testing.T) {
	s := memstore.New()
	_, err := s.InsertPayments(context.Background(), []domain.Payment{
		{OwnerID: "o", PaymentIntentID: "same"},
		{OwnerID: "o", PaymentIntentID: "same"},
	})
	var dup *domain.ErrDuplicate
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestInsertPayments_IntentScopedToOwner(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	if _, err := s.InsertPayments(ctx, []domain.Payment{{OwnerID: "owner-a", PaymentIntentID: "order-1-1"}}); err != nil {
		t.Fatalf("owner-a: unexpected error: %v", err)
	}
	if _, err := s.InsertPayments(ctx, []domain.Payment{{OwnerID: "owner-b", PaymentIntentID: "order-1-1"}}); err != nil {
		t.Fatalf("owner-b: same intent id should be accepted, got %v", err)
	}
	_, err := s.InsertPayments(ctx, []domain.Payment{{OwnerID: "owner-a", PaymentIntentID: "order-1-1"}})
	var dup *domain.ErrDuplicate
	if !errors.As(err, &dup) {
		t.Fatalf("owner-a replay: expected duplicate error, got %v", err)
	}
}

func TestListOpenPurchases_OldestFirst(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	_, _ = s.CreatePurchase(ctx, &domain.Purchase{ID: "late", OwnerID: "o", ProductID: "p", Quantity: 5, Remaining: 5, PurchasedAt: day(10)})
	_, _ = s.CreatePurchase(ctx, &domain.Purchase{ID: "empty", OwnerID: "o", ProductID: "p", Quantity: 5, Remaining: 0, PurchasedAt: day(1)})
	_, _ = s.CreatePurchase(ctx, &domain.Purchase{ID: "early", OwnerID: "o", ProductID: "p", Quantity: 5, Remaining: 2, PurchasedAt: day(3)})
	_, _ = s.CreatePurchase(ctx, &domain.Purchase{ID: "other", OwnerID: "o", ProductID: "q", Quantity: 5, Remaining: 5, PurchasedAt: day(2)})

	open, err := s.ListOpenPurchases(ctx, "o", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 2 || open[0].ID != "early" || open[1].ID != "late" {
		t.Fatalf("unexpected open purchases: %+v", open)
	}

	if err := s.UpdatePurchaseRemaining(ctx, "o", "early", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	open, _ = s.ListOpenPurchases(ctx, "o", "p")
	if len(open) != 1 || open[0].ID != "late" {
		t.Fatalf("expected only late purchase open, got %+v", open)
	}

	var nf *domain.ErrNotFound
	if err := s.UpdatePurchaseRemaining(ctx, "intruder", "late", 0); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	if open, _ = s.ListOpenPurchases(ctx, "o", "p"); open[0].Remaining != 5 {
		t.Errorf("another owner changed remaining to %d", open[0].Remaining)
	}
}

func TestOwnerScoping(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	card, _ := s.CreateCard(ctx, "alice", &domain.CardRequest{Alias: "Visa", ClosingDay: 10, DueDay: 20})
	if _, err := s.GetCard(ctx, "bob", card.ID); err == nil {
		t.Fatal("expected bob not to see alice's card")
	}
	cards, _ := s.ListCards(ctx, "bob")
	if len(cards) != 0 {
		t.Errorf("expected no cards for bob, got %d", len(cards))
	}

	updated, err := s.UpdateCard(ctx, "alice", card.ID, &domain.CardRequest{Alias: "Visa Gold", ClosingDay: 5, DueDay: 15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Alias != "Visa Gold" || updated.ClosingDay != 5 {
		t.Errorf("unexpected card %+v", updated)
	}
}
