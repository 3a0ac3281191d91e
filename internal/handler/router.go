package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/observability"
	"github.com/boddenberg/stockledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware. auth
// guards every /v1 route.
func NewRouter(
	svc *service.LedgerService,
	auth func(http.Handler) http.Handler,
	store Pinger,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler(store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth)

		r.Get("/metrics/ledger", ledgerMetricsHandler(svc))

		// Cards
		r.Get("/cards", listCardsHandler(svc, logger))
		r.Post("/cards", createCardHandler(svc, logger))
		r.Get("/cards/{cardId}", getCardHandler(svc, logger))
		r.Put("/cards/{cardId}", updateCardHandler(svc, logger))
		r.Get("/cards/{cardId}/cycle", previewCycleHandler(svc, logger))

		// Catalog & stock
		r.Get("/products", listProductsHandler(svc, logger))
		r.Post("/products", createProductHandler(svc, logger))
		r.Get("/products/{productId}", getProductHandler(svc, logger))
		r.Get("/products/{productId}/stock", getStockHandler(svc, logger))

		// Purchases & payments
		r.Get("/purchases", listPurchasesHandler(svc, logger))
		r.Post("/purchases", createPurchaseHandler(svc, logger))
		r.Get("/payments", listPaymentsHandler(svc, logger))
		r.Post("/payments", createExpenseHandler(svc, logger))

		// Clients & sales
		r.Get("/clients", listClientsHandler(svc, logger))
		r.Post("/clients", createClientHandler(svc, logger))
		r.Get("/sales", listSalesHandler(svc, logger))
		r.Post("/sales", createSaleHandler(svc, logger))

		// Reports
		r.Get("/reports/future-payments", futurePaymentsHandler(svc, logger))
		r.Get("/reports/next-cycle", nextCycleHandler(svc, logger))
		r.Get("/reports/summary", summaryHandler(svc, logger))
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "ledger-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("readyz: store unreachable", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(svc *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Metrics())
	}
}
