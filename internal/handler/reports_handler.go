package handler

import (
	"net/http"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Reports
// ============================================================

// All reports take ?today=YYYY-MM-DD and default to the current UTC date.

func futurePaymentsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/future-payments")
		defer span.End()

		day, err := dateParam(r, "today", today())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		groups, err := svc.FuturePayments(ctx, OwnerIDFromContext(ctx), day)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"today":  day.Format(billing.DateLayout),
			"months": groups,
		})
	}
}

func nextCycleHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/next-cycle")
		defer span.End()

		day, err := dateParam(r, "today", today())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		scope, err := billing.ParseDueScope(r.URL.Query().Get("scope"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		due, err := svc.NextCycleDue(ctx, OwnerIDFromContext(ctx), day, scope)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, due)
	}
}

func summaryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/summary")
		defer span.End()

		day, err := dateParam(r, "today", today())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		summary, err := svc.Summary(ctx, OwnerIDFromContext(ctx), day)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
