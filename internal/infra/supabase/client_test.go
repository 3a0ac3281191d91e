package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/resilience"
	"github.com/boddenberg/stockledger-go/internal/infra/supabase"
	"github.com/boddenberg/stockledger-go/internal/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ port.LedgerStore = (*supabase.Client)(nil)

func newTestClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return supabase.NewClient(srv.Client(), srv.URL, "anon", "service", resilience.NewCircuitBreaker("test"), cfg, zap.NewNop())
}

func TestListPayments_ParsesRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("owner_id"); got != "eq.owner-1" {
			t.Errorf("expected owner filter, got %q", got)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer service" {
			t.Error("missing auth headers")
		}
		_, _ = io.WriteString(w, `[
			{"id":"p1","owner_id":"owner-1","amount":"33.33","description":"tv (Cuota 1/3)","occurred_at":"2024-03-02T10:00:00Z",
			 "method":"card","card_id":"c1","cycle_close":"2024-03-15","is_installment":true,"installment_count":3,
			 "current_installment":1,"payment_intent_id":"k-1"},
			{"id":"p2","owner_id":"owner-1","amount":50,"description":"cash","occurred_at":"2024-03-02","method":"cash",
			 "cycle_close":null,"installment_count":1,"current_installment":1,"payment_intent_id":"k2-1"},
			{"id":"p3","owner_id":"owner-1","amount":"1","description":"broken","occurred_at":"2024-03-02","method":"card",
			 "card_id":"c1","cycle_close":"not-a-date","installment_count":1,"current_installment":1,"payment_intent_id":"k3-1"}
		]`)
	})

	payments, err := c.ListPayments(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(payments))
	}

	p1 := payments[0]
	if !p1.Amount.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("expected 33.33, got %s", p1.Amount)
	}
	if p1.CycleClose == nil || p1.CycleClose.Format("2006-01-02") != "2024-03-15" {
		t.Errorf("unexpected cycle close %v", p1.CycleClose)
	}
	if p1.CardID == nil || *p1.CardID != "c1" {
		t.Error("expected card id c1")
	}
	if payments[1].CycleClose != nil {
		t.Error("expected nil cycle close for cash payment")
	}
	if payments[2].CycleClose == nil || !payments[2].CycleClose.IsZero() {
		t.Error("expected malformed cycle close to parse as zero time")
	}
}

func TestInsertPayments_BulkAndConflict(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var rows []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			t.Errorf("expected JSON array body: %v", err)
			return
		}
		if rows[0]["payment_intent_id"] == "dup-1" {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value"}`)
			return
		}
		if rows[0]["cycle_close"] != "2024-04-15" {
			t.Errorf("expected date-only cycle close, got %v", rows[0]["cycle_close"])
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rows)
	})

	cycle := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	card := "c1"
	in := []domain.Payment{
		{ID: "a", OwnerID: "o", Amount: decimal.NewFromInt(50), Method: domain.MethodCard, CardID: &card, CycleClose: &cycle, InstallmentCount: 2, CurrentInstallment: 1, IsInstallment: true, PaymentIntentID: "seed-1"},
		{ID: "b", OwnerID: "o", Amount: decimal.NewFromInt(50), Method: domain.MethodCard, CardID: &card, CycleClose: &cycle, InstallmentCount: 2, CurrentInstallment: 2, IsInstallment: true, PaymentIntentID: "seed-2"},
	}

	stored, err := c.InsertPayments(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 2 || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one bulk request storing 2 rows, got %d rows in %d calls", len(stored), calls)
	}

	in[0].PaymentIntentID = "dup-1"
	_, err = c.InsertPayments(context.Background(), in)
	var dup *domain.ErrDuplicate
	if !errors.As(err, &dup) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("conflict must not be retried, got %d calls", calls)
	}
}

func TestGetCard_NotFound(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetCard(context.Background(), "owner-1", "missing")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("not found must not be retried, got %d calls", calls)
	}
}

func TestListCards_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"c1","owner_id":"o","alias":"Visa","closing_day":15,"due_day":25,"created_at":"2024-01-01T00:00:00Z"}]`)
	})

	cards, err := c.ListCards(context.Background(), "o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 1 || cards[0].ClosingDay != 15 || cards[0].Alias != "Visa" {
		t.Errorf("unexpected cards %+v", cards)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestListSales_ExternalError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ListSales(context.Background(), "o")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if !strings.HasPrefix(ext.Service, "supabase/") {
		t.Errorf("unexpected service %q", ext.Service)
	}
}

func TestClient_CircuitOpens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	var err error
	for i := 0; i < 10; i++ {
		_, err = c.ListClients(context.Background(), "o")
	}
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}

func TestUpdatePurchaseRemaining_Patches(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "eq.pu1" {
			t.Errorf("unexpected id filter %q", got)
		}
		if got := r.URL.Query().Get("owner_id"); got != "eq.o1" {
			t.Errorf("unexpected owner filter %q", got)
		}
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["remaining"] != 4 {
			t.Errorf("expected remaining 4, got %d", body["remaining"])
		}
		_, _ = io.WriteString(w, `[{"id":"pu1","remaining":4,"quantity":10,"unit_cost":"2.5","purchased_at":"2024-01-01T00:00:00Z"}]`)
	})

	if err := c.UpdatePurchaseRemaining(context.Background(), "o1", "pu1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
