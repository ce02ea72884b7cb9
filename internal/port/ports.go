// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
)

// CategoryAPI is the category half of the remote ledger API.
type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, draft domain.CategoryDraft) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, draft domain.CategoryDraft) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// TransactionAPI is the transaction half of the remote ledger API.
// ListTransactions applies the same AND semantics as domain.Filter.Matches.
type TransactionAPI interface {
	ListTransactions(ctx context.Context, filter domain.Filter) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, draft domain.TransactionDraft) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// LedgerAPI is the whole remote ledger boundary.
type LedgerAPI interface {
	CategoryAPI
	TransactionAPI
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// DeleteFunc removes every entry for which match returns true and
	// reports how many were removed.
	DeleteFunc(match func(key string, value T) bool) int
}

// CategoryInvalidator is notified when categories change so cached
// resolutions filtered by a category can be dropped. refs are category IDs or
// names; no refs means every category-filtered resolution.
type CategoryInvalidator interface {
	InvalidateCategory(refs ...string) int
}
