package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/ledger")

const (
	categoriesKey   = "categories"
	cacheCategories = "categories"
)

// CategoryStore owns the category collection. The list is cached as a whole;
// writes drop it and notify subscribers so resolutions filtered by the
// affected category are re-fetched.
type CategoryStore struct {
	api     port.CategoryAPI
	cache   port.Cache[[]domain.Category]
	metrics *observability.Metrics
	logger  *zap.Logger

	flight singleflight.Group

	mu          sync.Mutex
	generation  uint64
	subscribers []port.CategoryInvalidator
}

// NewCategoryStore creates the category store with all dependencies injected.
func NewCategoryStore(
	api port.CategoryAPI,
	cache port.Cache[[]domain.Category],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CategoryStore {
	return &CategoryStore{
		api:     api,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Subscribe registers inv for category change notifications.
func (s *CategoryStore) Subscribe(inv port.CategoryInvalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, inv)
}

// List returns every category ordered by name, then ID. The returned slice
// is the caller's own copy.
func (s *CategoryStore) List(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryStore.List")
	defer span.End()

	if cached, ok := s.cache.Get(categoriesKey); ok {
		s.metrics.IncrCacheHit(cacheCategories)
		return cloneCategories(cached), nil
	}
	s.metrics.IncrCacheMiss(cacheCategories)

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	v, err, _ := s.flight.Do(fmt.Sprintf("%s:%d", categoriesKey, gen), func() (any, error) {
		list, err := s.api.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		domain.SortCategories(list)

		s.mu.Lock()
		if s.generation == gen {
			s.cache.Set(categoriesKey, list)
		}
		s.mu.Unlock()
		return list, nil
	})
	if err != nil {
		s.recordFailure("list_categories", err)
		return nil, fmt.Errorf("categories fetch: %w", err)
	}
	return cloneCategories(v.([]domain.Category)), nil
}

// Lookup returns the categories indexed by ID.
func (s *CategoryStore) Lookup(ctx context.Context) (domain.Categories, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.IndexCategories(list), nil
}

// Create adds a category. Invalid drafts never reach the API; a duplicate
// name comes back as *domain.ErrConflict with the API's message.
func (s *CategoryStore) Create(ctx context.Context, draft domain.CategoryDraft) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryStore.Create")
	defer span.End()

	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}

	cat, err := s.api.CreateCategory(ctx, draft)
	if err != nil {
		if domain.IsStale(err) {
			s.invalidate(draft.Name)
		}
		s.recordFailure("create_category", err)
		return nil, err
	}
	s.invalidate(cat.ID, cat.Name)
	return cat, nil
}

// Update renames or retypes a category. Cached resolutions filtered by the
// old name, the new name or the ID are dropped.
func (s *CategoryStore) Update(ctx context.Context, id string, draft domain.CategoryDraft) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryStore.Update")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	if id == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}
	oldName, known := s.cachedName(id)

	cat, err := s.api.UpdateCategory(ctx, id, draft)
	if err != nil {
		if domain.IsStale(err) {
			s.invalidateChanged(known, id, oldName, draft.Name)
		}
		s.recordFailure("update_category", err)
		return nil, err
	}
	s.invalidateChanged(known, id, oldName, cat.Name)
	return cat, nil
}

// Delete removes a category. Transactions that reference it are kept and
// show up in the unknown-category bucket.
func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CategoryStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	if id == "" {
		return &domain.ErrValidation{Field: "id", Message: "required"}
	}
	oldName, known := s.cachedName(id)

	if err := s.api.DeleteCategory(ctx, id); err != nil {
		if domain.IsStale(err) {
			s.invalidateChanged(known, id, oldName)
		}
		s.recordFailure("delete_category", err)
		return err
	}
	s.invalidateChanged(known, id, oldName)
	return nil
}

// cachedName reads the current name from the cached list without fetching.
func (s *CategoryStore) cachedName(id string) (string, bool) {
	list, ok := s.cache.Get(categoriesKey)
	if !ok {
		return "", false
	}
	for _, c := range list {
		if c.ID == id {
			return c.Name, true
		}
	}
	return "", false
}

// invalidateChanged drops resolutions referencing refs. When the old name was
// not known locally every category-filtered resolution is dropped instead,
// since a filter may name the category by a name this store never saw.
func (s *CategoryStore) invalidateChanged(oldNameKnown bool, refs ...string) {
	if !oldNameKnown {
		s.invalidate()
		return
	}
	s.invalidate(refs...)
}

func (s *CategoryStore) invalidate(refs ...string) {
	s.mu.Lock()
	s.generation++
	s.cache.Delete(categoriesKey)
	subs := append([]port.CategoryInvalidator(nil), s.subscribers...)
	s.mu.Unlock()

	s.metrics.AddInvalidations(cacheCategories, 1)
	dropped := 0
	for _, sub := range subs {
		dropped += sub.InvalidateCategory(refs...)
	}
	s.logger.Debug("categories invalidated",
		zap.Strings("refs", refs),
		zap.Int("resolutions_dropped", dropped),
	)
}

func (s *CategoryStore) recordFailure(op string, err error) {
	if domain.IsTransport(err) {
		s.metrics.IncrExternalError(op)
		s.logger.Error("ledger API call failed", zap.String("op", op), zap.Error(err))
		return
	}
	s.logger.Debug("ledger API rejected call", zap.String("op", op), zap.Error(err))
}

func cloneCategories(list []domain.Category) []domain.Category {
	out := make([]domain.Category, len(list))
	copy(out, list)
	return out
}
