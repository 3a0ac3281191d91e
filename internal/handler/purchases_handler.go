package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Purchases & payments
// ============================================================

// idempotencyHeader seeds the payment intent ids of a write.
const idempotencyHeader = "Idempotency-Key"

func listPurchasesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchases")
		defer span.End()

		purchases, err := svc.ListPurchases(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	}
}

func createPurchaseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/purchases")
		defer span.End()

		var req domain.PurchaseRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))

		result, err := svc.CreatePurchase(ctx, OwnerIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func listPaymentsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payments")
		defer span.End()

		payments, err := svc.ListPayments(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
	}
}

// createExpenseHandler stores a payment that is not tied to a product.
func createExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments")
		defer span.End()

		var req domain.ExpenseRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))

		payments, err := svc.CreateExpense(ctx, OwnerIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"payments": payments})
	}
}
