package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions
// ============================================================

// GET /v1/transactions?startDate=&endDate=&type=&category=
func listTransactionsHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		f, err := domain.ParseFilter(r.URL.Query())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("filter", f.Key()))

		snap, err := ledger.Transactions.Resolve(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, listingResponse{
			Filter:       toFilterDTO(f),
			Transactions: p.transactions(snap),
			FromCache:    snap.FromCache,
			ResolvedAt:   snap.ResolvedAt,
		})
	}
}

func createTransactionHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var draft domain.TransactionDraft
		if !decodeJSON(w, r, &draft) {
			return
		}
		submit(w, r.WithContext(ctx), ledger, p, logger, http.StatusCreated, service.Mutation{
			Kind: service.KindTransaction, Op: service.OpCreate, Transaction: &draft,
		})
	}
}

func updateTransactionHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		var draft domain.TransactionDraft
		if !decodeJSON(w, r, &draft) {
			return
		}
		submit(w, r.WithContext(ctx), ledger, p, logger, http.StatusOK, service.Mutation{
			Kind: service.KindTransaction, Op: service.OpUpdate, ID: id, Transaction: &draft,
		})
	}
}

func deleteTransactionHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		submit(w, r.WithContext(ctx), ledger, p, logger, http.StatusOK, service.Mutation{
			Kind: service.KindTransaction, Op: service.OpDelete, ID: id,
		})
	}
}
