package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const cacheResolutions = "resolutions"

// Resolve sources, used as the metrics label.
const (
	sourceCache  = "cache"
	sourceRemote = "remote"
	sourceEmpty  = "empty"
)

// Resolution is what the transaction store caches per filter. Category names
// are not part of it; they are attached from the category store on every
// read so a rename never shows an old name.
type Resolution struct {
	Filter       domain.Filter
	Transactions []domain.Transaction
	ResolvedAt   time.Time
}

// Contains reports whether the resolution holds the transaction id.
func (r Resolution) Contains(id string) bool {
	for _, tx := range r.Transactions {
		if tx.ID == id {
			return true
		}
	}
	return false
}

// Snapshot is an immutable resolved subset. Callers own the slice.
type Snapshot struct {
	Filter       domain.Filter
	Transactions []domain.Transaction
	Categories   domain.Categories
	ResolvedAt   time.Time
	FromCache    bool
}

// Aggregate reduces the snapshot.
func (s *Snapshot) Aggregate() domain.AggregateResult {
	return domain.Aggregate(s.Transactions, s.Categories)
}

// Listing annotates the snapshot with category names.
func (s *Snapshot) Listing() []domain.ListedTransaction {
	return domain.Listing(s.Transactions, s.Categories)
}

// TransactionStore resolves filters against the ledger API and owns the
// resolution cache. Invalidation is targeted: a write drops only the cached
// filters the written record could appear in.
type TransactionStore struct {
	api        port.TransactionAPI
	categories *CategoryStore
	cache      port.Cache[Resolution]
	metrics    *observability.Metrics
	logger     *zap.Logger

	flight singleflight.Group

	// mu orders cache writes against invalidations. A resolve that began
	// before an invalidation sees a newer generation and skips its write.
	mu         sync.Mutex
	generation uint64
}

// NewTransactionStore creates the transaction store and subscribes it to
// category changes.
func NewTransactionStore(
	api port.TransactionAPI,
	categories *CategoryStore,
	cache port.Cache[Resolution],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransactionStore {
	s := &TransactionStore{
		api:        api,
		categories: categories,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
	categories.Subscribe(s)
	return s
}

// Resolve returns the transactions selected by f, newest first with ties
// broken by ID. A degenerate date range resolves to an empty snapshot without
// calling the API.
func (s *TransactionStore) Resolve(ctx context.Context, f domain.Filter) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "TransactionStore.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("filter", f.Key()))

	start := time.Now()

	if f.Degenerate() {
		s.metrics.RecordResolveDuration(sourceEmpty, time.Since(start))
		return &Snapshot{
			Filter:       f,
			Transactions: []domain.Transaction{},
			Categories:   domain.Categories{},
			ResolvedAt:   start,
		}, nil
	}

	if cached, ok := s.cache.Get(f.Key()); ok {
		s.metrics.IncrCacheHit(cacheResolutions)
		cats, err := s.categories.Lookup(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordResolveDuration(sourceCache, time.Since(start))
		return &Snapshot{
			Filter:       f,
			Transactions: cloneTransactions(cached.Transactions),
			Categories:   cats,
			ResolvedAt:   cached.ResolvedAt,
			FromCache:    true,
		}, nil
	}
	s.metrics.IncrCacheMiss(cacheResolutions)

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	type fetched struct {
		res  Resolution
		cats domain.Categories
	}

	v, err, _ := s.flight.Do(fmt.Sprintf("%s#%d", f.Key(), gen), func() (any, error) {
		var (
			txs  []domain.Transaction
			cats domain.Categories
		)

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			c, err := s.categories.Lookup(gCtx)
			if err != nil {
				return err
			}
			cats = c
			return nil
		})
		g.Go(func() error {
			t, err := s.api.ListTransactions(gCtx, f)
			if err != nil {
				s.recordFailure("list_transactions", err)
				return fmt.Errorf("transactions fetch: %w", err)
			}
			txs = t
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// The API filters too; re-applying keeps the cached subset
		// consistent with what invalidation matches against.
		subset := make([]domain.Transaction, 0, len(txs))
		for _, tx := range txs {
			if f.Matches(tx, cats) {
				subset = append(subset, tx)
			}
		}
		domain.SortTransactions(subset)

		res := Resolution{Filter: f, Transactions: subset, ResolvedAt: time.Now()}
		s.mu.Lock()
		if s.generation == gen {
			s.cache.Set(f.Key(), res)
		}
		s.mu.Unlock()
		return fetched{res: res, cats: cats}, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := v.(fetched)
	s.metrics.RecordResolveDuration(sourceRemote, time.Since(start))
	return &Snapshot{
		Filter:       f,
		Transactions: cloneTransactions(out.res.Transactions),
		Categories:   out.cats,
		ResolvedAt:   out.res.ResolvedAt,
	}, nil
}

// Create records a new transaction. Cached filters the new record matches
// are dropped.
func (s *TransactionStore) Create(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionStore.Create")
	defer span.End()

	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}

	tx, err := s.api.CreateTransaction(ctx, draft)
	if err != nil {
		s.recordFailure("create_transaction", err)
		return nil, err
	}

	matches := s.matcher(ctx)
	s.dropWhere(func(r Resolution) bool {
		return matches(r.Filter, *tx)
	})
	return tx, nil
}

// Update replaces a transaction. Cached filters holding the old record or
// matching the new one are dropped.
func (s *TransactionStore) Update(ctx context.Context, id string, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionStore.Update")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if id == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}

	tx, err := s.api.UpdateTransaction(ctx, id, draft)
	if err != nil {
		s.recordFailure("update_transaction", err)
		if domain.IsStale(err) {
			s.dropContaining(id)
		}
		return nil, err
	}

	matches := s.matcher(ctx)
	s.dropWhere(func(r Resolution) bool {
		return r.Contains(id) || matches(r.Filter, *tx)
	})
	return tx, nil
}

// Delete removes a transaction. Cached filters holding it are dropped.
func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TransactionStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if id == "" {
		return &domain.ErrValidation{Field: "id", Message: "required"}
	}

	if err := s.api.DeleteTransaction(ctx, id); err != nil {
		s.recordFailure("delete_transaction", err)
		if domain.IsStale(err) {
			s.dropContaining(id)
		}
		return err
	}
	s.dropContaining(id)
	return nil
}

// InvalidateCategory drops resolutions whose filter names one of refs. With
// no refs every category-filtered resolution is dropped.
func (s *TransactionStore) InvalidateCategory(refs ...string) int {
	if len(refs) == 0 {
		return s.dropWhere(func(r Resolution) bool {
			_, ok := r.Filter.Category()
			return ok
		})
	}
	return s.dropWhere(func(r Resolution) bool {
		return r.Filter.ReferencesCategory(refs...)
	})
}

func (s *TransactionStore) dropContaining(id string) int {
	return s.dropWhere(func(r Resolution) bool {
		return r.Contains(id)
	})
}

func (s *TransactionStore) dropWhere(match func(Resolution) bool) int {
	s.mu.Lock()
	s.generation++
	n := s.cache.DeleteFunc(func(_ string, r Resolution) bool {
		return match(r)
	})
	s.mu.Unlock()

	s.metrics.AddInvalidations(cacheResolutions, n)
	if n > 0 {
		s.logger.Debug("resolutions invalidated", zap.Int("count", n))
	}
	return n
}

// matcher returns a filter predicate for invalidation. Without categories a
// name constraint cannot be evaluated, so the category dimension is ignored
// and more filters are dropped rather than fewer.
func (s *TransactionStore) matcher(ctx context.Context) func(domain.Filter, domain.Transaction) bool {
	cats, err := s.categories.Lookup(ctx)
	if err != nil {
		s.logger.Warn("categories unavailable for invalidation", zap.Error(err))
		return func(f domain.Filter, tx domain.Transaction) bool {
			return f.WithCategory("").Matches(tx, nil)
		}
	}
	return func(f domain.Filter, tx domain.Transaction) bool {
		return f.Matches(tx, cats)
	}
}

func (s *TransactionStore) recordFailure(op string, err error) {
	if domain.IsTransport(err) {
		s.metrics.IncrExternalError(op)
		s.logger.Error("ledger API call failed", zap.String("op", op), zap.Error(err))
		return
	}
	s.logger.Debug("ledger API rejected call", zap.String("op", op), zap.Error(err))
}

func cloneTransactions(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	return out
}
