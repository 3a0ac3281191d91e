package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/memstore"
	"github.com/boddenberg/stockledger-go/internal/infra/observability"
	"github.com/boddenberg/stockledger-go/internal/service"

	"go.uber.org/zap"
)

func (f *fixture) stockIn(t *testing.T, productID string, qty int, cost string, day int) {
	t.Helper()
	_, err := f.svc.CreatePurchase(context.Background(), owner, &domain.PurchaseRequest{
		ProductID: productID, UnitCost: dec(cost), Quantity: qty,
		PurchasedAt: date(2024, 3, day), Method: domain.MethodCash,
	})
	if err != nil {
		t.Fatalf("stock in: %v", err)
	}
}

func TestCreateSale_ConsumesOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "Mug", "15")
	f.stockIn(t, product.ID, 3, "7", 5)
	f.stockIn(t, product.ID, 2, "6", 1)

	client, err := f.svc.CreateClient(ctx, owner, &domain.ClientRequest{Name: "Ana"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	sale, err := f.svc.CreateSale(ctx, owner, &domain.SaleRequest{ClientID: client.ID, ProductID: product.ID, Quantity: 4})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.UnitPrice.Equal(dec("15")) || !sale.Total.Equal(dec("60")) {
		t.Errorf("sale price/total = %s/%s, want 15/60", sale.UnitPrice, sale.Total)
	}
	if sale.ClientID == nil || *sale.ClientID != client.ID {
		t.Errorf("sale not attributed to client")
	}
	if !sale.SoldAt.Equal(fixedNow) {
		t.Errorf("sold_at = %v, want %v", sale.SoldAt, fixedNow)
	}

	purchases, _ := f.svc.ListPurchases(ctx, owner)
	remaining := map[string]int{}
	for _, p := range purchases {
		remaining[p.UnitCost.String()] = p.Remaining
	}
	if remaining["6"] != 0 || remaining["7"] != 1 {
		t.Errorf("remaining by cost = %v, want 6:0 7:1", remaining)
	}

	stock, err := f.svc.GetStock(ctx, owner, product.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Remaining != 1 || len(stock.Movements) != 3 {
		t.Errorf("stock = %d with %d movements", stock.Remaining, len(stock.Movements))
	}
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "Mug", "15")
	f.stockIn(t, product.ID, 2, "6", 1)

	_, err := f.svc.CreateSale(ctx, owner, &domain.SaleRequest{ProductID: product.ID, Quantity: 3})
	var insufficient *domain.ErrInsufficientStock
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if insufficient.Available != 2 || insufficient.Required != 3 {
		t.Errorf("error = %+v", insufficient)
	}

	sales, _ := f.svc.ListSales(ctx, owner)
	stock, _ := f.svc.GetStock(ctx, owner, product.ID)
	if len(sales) != 0 || stock.Remaining != 2 {
		t.Errorf("failed sale changed state: sales=%d remaining=%d", len(sales), stock.Remaining)
	}
}

func TestCreateSale_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "Mug", "15")
	f.stockIn(t, product.ID, 5, "6", 1)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CreateSale(ctx, owner, &domain.SaleRequest{ProductID: product.ID, Quantity: 1}); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if sold != 5 {
		t.Errorf("sold %d units from a stock of 5", sold)
	}
	stock, _ := f.svc.GetStock(ctx, owner, product.ID)
	if stock.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", stock.Remaining)
	}
}

func TestCreateSale_UnknownClient(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "Mug", "15")
	f.stockIn(t, product.ID, 1, "6", 1)

	_, err := f.svc.CreateSale(context.Background(), owner, &domain.SaleRequest{ClientID: "ghost", ProductID: product.ID, Quantity: 1})
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Resource != "client" {
		t.Fatalf("expected client not found, got %v", err)
	}
}

func TestCreateClient_RequiresName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateClient(context.Background(), owner, &domain.ClientRequest{Name: " "})
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// saleRejectingStore accepts everything except the sale row itself.
type saleRejectingStore struct {
	*memstore.Store
}

func (saleRejectingStore) CreateSale(context.Context, *domain.Sale) (*domain.Sale, error) {
	return nil, &domain.ErrExternalService{Service: "supabase", Err: errors.New("connection reset")}
}

func TestCreateSale_FailedSaleRestoresStock(t *testing.T) {
	store := memstore.New()
	svc := service.NewLedgerService(
		saleRejectingStore{store},
		newCache(t),
		observability.NewMetrics(),
		zap.NewNop(),
	)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, owner, &domain.ProductRequest{Name: "Mug", SalePrice: dec("15")})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	for _, day := range []int{1, 2} {
		_, err := svc.CreatePurchase(ctx, owner, &domain.PurchaseRequest{
			ProductID: product.ID, UnitCost: dec("5"), Quantity: 2,
			PurchasedAt: date(2024, 3, day), Method: domain.MethodCash,
		})
		if err != nil {
			t.Fatalf("create purchase: %v", err)
		}
	}

	_, err = svc.CreateSale(ctx, owner, &domain.SaleRequest{ProductID: product.ID, Quantity: 3})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}

	open, _ := store.ListOpenPurchases(ctx, owner, product.ID)
	total := 0
	for _, p := range open {
		total += p.Remaining
	}
	if len(open) != 2 || total != 4 {
		t.Errorf("stock after failed sale = %d across %d purchases, want 4 across 2", total, len(open))
	}
}
