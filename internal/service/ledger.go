package service

import (
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/port"

	"go.uber.org/zap"
)

// LedgerConfig holds the cache lifetimes of the ledger core.
type LedgerConfig struct {
	ResolveTTL  time.Duration
	CategoryTTL time.Duration
	SettledTTL  time.Duration
}

// Ledger wires the stores, the view and the coordinator over one API.
type Ledger struct {
	Categories   *CategoryStore
	Transactions *TransactionStore
	View         *View
	Coordinator  *Coordinator

	closers []func()
}

// NewLedger builds the ledger core with in-memory caches.
func NewLedger(api port.LedgerAPI, cfg LedgerConfig, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	catCache := cache.New[[]domain.Category](cfg.CategoryTTL)
	resCache := cache.New[Resolution](cfg.ResolveTTL)
	settledCache := cache.New[MutationStatus](cfg.SettledTTL)

	categories := NewCategoryStore(api, catCache, metrics, logger.Named("categories"))
	transactions := NewTransactionStore(api, categories, resCache, metrics, logger.Named("transactions"))
	view := NewView(transactions, metrics, logger.Named("view"))
	coordinator := NewCoordinator(categories, transactions, view, settledCache, metrics, logger.Named("coordinator"))

	return &Ledger{
		Categories:   categories,
		Transactions: transactions,
		View:         view,
		Coordinator:  coordinator,
		closers:      []func(){catCache.Close, resCache.Close, settledCache.Close},
	}
}

// Close stops the cache janitors.
func (l *Ledger) Close() {
	for _, c := range l.closers {
		c()
	}
}
