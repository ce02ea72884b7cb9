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
// Categories
// ============================================================

func listCategoriesHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		cats, err := ledger.Categories.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

func createCategoryHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var draft domain.CategoryDraft
		if !decodeJSON(w, r, &draft) {
			return
		}
		submit(w, r.WithContext(ctx), ledger, p, logger, http.StatusCreated, service.Mutation{
			Kind: service.KindCategory, Op: service.OpCreate, Category: &draft,
		})
	}
}

func updateCategoryHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/categories/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("category.id", id))

		var draft domain.CategoryDraft
		if !decodeJSON(w, r, &draft) {
			return
		}
		submit(w, r.WithContext(ctx), ledger, p, logger, http.StatusOK, service.Mutation{
			Kind: service.KindCategory, Op: service.OpUpdate, ID: id, Category: &draft,
		})
	}
}

func deleteCategoryHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("category.id", id))

		submit(w, r.WithContext(ctx), ledger, p, logger, http.StatusOK, service.Mutation{
			Kind: service.KindCategory, Op: service.OpDelete, ID: id,
		})
	}
}
