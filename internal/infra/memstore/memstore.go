// Package memstore is an in-memory ledger store for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"

	"github.com/google/uuid"
)

// Store keeps every table in memory behind one mutex.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	cards     []domain.Card
	products  []domain.Product
	purchases []domain.Purchase
	payments  []domain.Payment
	intents   map[intentKey]struct{}
	movements []domain.StockMovement
	clients   []domain.Client
	sales     []domain.Sale
}

// intentKey scopes payment intent ids to their owner.
type intentKey struct {
	owner  string
	intent string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:     time.Now,
		intents: make(map[intentKey]struct{}),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }

// ============================================================
// Cards
// ============================================================

func (s *Store) CreateCard(_ context.Context, ownerID string, req *domain.CardRequest) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card := domain.Card{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Alias:      req.Alias,
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		CreatedAt:  s.now().UTC(),
	}
	s.cards = append(s.cards, card)
	return &card, nil
}

func (s *Store) ListCards(_ context.Context, ownerID string) ([]domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Card{}
	for _, c := range s.cards {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetCard(_ context.Context, ownerID, cardID string) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cards {
		if c.ID == cardID && c.OwnerID == ownerID {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "card", ID: cardID}
}

func (s *Store) UpdateCard(_ context.Context, ownerID, cardID string, req *domain.CardRequest) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cards {
		c := &s.cards[i]
		if c.ID == cardID && c.OwnerID == ownerID {
			c.Alias = req.Alias
			c.ClosingDay = req.ClosingDay
			c.DueDay = req.DueDay
			updated := *c
			return &updated, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "card", ID: cardID}
}

// ============================================================
// Products, purchases and stock
// ============================================================

func (s *Store) CreateProduct(_ context.Context, ownerID string, req *domain.ProductRequest) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := domain.Product{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      req.Name,
		SKU:       req.SKU,
		SalePrice: req.SalePrice,
		CreatedAt: s.now().UTC(),
	}
	s.products = append(s.products, p)
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, ownerID string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Product{}
	for _, p := range s.products {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, ownerID, productID string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.ID == productID && p.OwnerID == ownerID {
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "product", ID: productID}
}

func (s *Store) CreatePurchase(_ context.Context, purchase *domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *purchase
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.purchases = append(s.purchases, p)
	return &p, nil
}

func (s *Store) ListPurchases(_ context.Context, ownerID string) ([]domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Purchase{}
	for _, p := range s.purchases {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (s *Store) ListOpenPurchases(_ context.Context, ownerID, productID string) ([]domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Purchase{}
	for _, p := range s.purchases {
		if p.OwnerID == ownerID && p.ProductID == productID && p.Remaining > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchasedAt.Before(out[j].PurchasedAt) })
	return out, nil
}

func (s *Store) UpdatePurchaseRemaining(_ context.Context, ownerID, purchaseID string, remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.purchases {
		if s.purchases[i].ID == purchaseID && s.purchases[i].OwnerID == ownerID {
			s.purchases[i].Remaining = remaining
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "purchase", ID: purchaseID}
}

func (s *Store) InsertStockMovement(_ context.Context, m *domain.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mv := *m
	if mv.ID == "" {
		mv.ID = uuid.NewString()
	}
	s.movements = append(s.movements, mv)
	return nil
}

func (s *Store) ListStockMovements(_ context.Context, ownerID, productID string) ([]domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.StockMovement{}
	for _, m := range s.movements {
		if m.OwnerID == ownerID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ============================================================
// Payments
// ============================================================

// InsertPayments checks every (owner, intent id) pair before storing
// anything, so a batch with one duplicate leaves the store untouched.
func (s *Store) InsertPayments(_ context.Context, payments []domain.Payment) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[intentKey]struct{}, len(payments))
	for _, p := range payments {
		k := intentKey{owner: p.OwnerID, intent: p.PaymentIntentID}
		if _, ok := s.intents[k]; ok {
			return nil, &domain.ErrDuplicate{Key: p.PaymentIntentID}
		}
		if _, ok := batch[k]; ok {
			return nil, &domain.ErrDuplicate{Key: p.PaymentIntentID}
		}
		batch[k] = struct{}{}
	}

	stored := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.intents[intentKey{owner: p.OwnerID, intent: p.PaymentIntentID}] = struct{}{}
		s.payments = append(s.payments, p)
		stored = append(stored, p)
	}
	return stored, nil
}

func (s *Store) ListPayments(_ context.Context, ownerID string) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Payment{}
	for _, p := range s.payments {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ============================================================
// Clients and sales
// ============================================================

func (s *Store) CreateClient(_ context.Context, ownerID string, req *domain.ClientRequest) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.Client{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: s.now().UTC(),
	}
	s.clients = append(s.clients, c)
	return &c, nil
}

func (s *Store) ListClients(_ context.Context, ownerID string) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Client{}
	for _, c := range s.clients {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetClient(_ context.Context, ownerID, clientID string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.clients {
		if c.ID == clientID && c.OwnerID == ownerID {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "client", ID: clientID}
}

func (s *Store) CreateSale(_ context.Context, sale *domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := *sale
	if sl.ID == "" {
		sl.ID = uuid.NewString()
	}
	s.sales = append(s.sales, sl)
	return &sl, nil
}

func (s *Store) ListSales(_ context.Context, ownerID string) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Sale{}
	for _, sl := range s.sales {
		if sl.OwnerID == ownerID {
			out = append(out, sl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SoldAt.After(out[j].SoldAt) })
	return out, nil
}
