package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Summary & current view
// ============================================================

// GET /v1/summary?startDate=&endDate=&type=&category=
// Stateless: does not touch the current view.
func summaryHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summary")
		defer span.End()

		f, err := domain.ParseFilter(r.URL.Query())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		snap, err := ledger.Transactions.Resolve(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p.summary(f, snap.Aggregate()))
	}
}

// GET /v1/view returns the current aggregate. A view that was never applied
// starts from the empty filter; a stale one is refreshed first.
func getViewHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/view")
		defer span.End()

		st, ok := ledger.View.Current()
		var err error
		switch {
		case !ok:
			st, err = ledger.View.Apply(ctx, ledger.View.Filter())
		case st.Stale:
			st, err = ledger.View.Refresh(ctx)
		}
		if err != nil && !errors.Is(err, service.ErrSuperseded) {
			if _, have := ledger.View.Current(); !have {
				handleServiceError(w, err, logger)
				return
			}
			logger.Warn("serving previous view", zap.Error(err))
		}
		if st.Snapshot == nil {
			// Superseded before anything was applied.
			handleServiceError(w, service.ErrSuperseded, logger)
			return
		}
		writeJSON(w, http.StatusOK, p.view(st))
	}
}

// PUT /v1/view/filter {"startDate","endDate","type","category"}
func setViewFilterHandler(ledger *service.Ledger, p presenter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/view/filter")
		defer span.End()

		var body filterDTO
		if !decodeJSON(w, r, &body) {
			return
		}
		f, err := domain.ParseFilter(body.values())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("filter", f.Key()))

		st, err := ledger.View.Apply(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p.view(st))
	}
}

// ============================================================
// Mutations
// ============================================================

func submit(w http.ResponseWriter, r *http.Request, ledger *service.Ledger, p presenter, logger *zap.Logger, status int, m service.Mutation) {
	res, err := ledger.Coordinator.Submit(r.Context(), m)
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}
	var cats domain.Categories
	if res.Transaction != nil {
		// The view snapshot may hold no categories (empty range), so look
		// them up directly.
		if cats, err = ledger.Categories.Lookup(r.Context()); err != nil {
			logger.Warn("categories unavailable for mutation response", zap.Error(err))
		}
	}
	writeJSON(w, status, p.mutation(m.Key(), res, cats))
}

// GET /v1/mutations/{kind}/{id}; id "new" asks about an in-flight create.
func mutationStatusHandler(ledger *service.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := service.ParseEntityKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id := chi.URLParam(r, "id")
		if id == "new" {
			id = ""
		}
		writeJSON(w, http.StatusOK, ledger.Coordinator.Status(kind, id))
	}
}
