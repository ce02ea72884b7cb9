package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
)

const resourceCategory = "category"

// ListCategories fetches every category of the authenticated user.
func (c *LedgerClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var wire []wireCategory
	if err := c.do(ctx, request{
		op:       "ListCategories",
		method:   http.MethodGet,
		path:     "/categories",
		resource: resourceCategory,
	}, &wire); err != nil {
		return nil, err
	}

	out := make([]domain.Category, 0, len(wire))
	for _, w := range wire {
		cat, err := w.toDomain()
		if err != nil {
			return nil, c.malformed("ListCategories", err)
		}
		out = append(out, cat)
	}
	return out, nil
}

// CreateCategory posts a new category. A duplicate name comes back as
// *domain.ErrConflict carrying the API's message.
func (c *LedgerClient) CreateCategory(ctx context.Context, draft domain.CategoryDraft) (*domain.Category, error) {
	return c.writeCategory(ctx, "CreateCategory", http.MethodPost, "/categories", "", draft)
}

// UpdateCategory replaces a category's name and type.
func (c *LedgerClient) UpdateCategory(ctx context.Context, id string, draft domain.CategoryDraft) (*domain.Category, error) {
	return c.writeCategory(ctx, "UpdateCategory", http.MethodPut, "/categories/"+url.PathEscape(id), id, draft)
}

// DeleteCategory removes a category. Transactions referencing it are left
// alone by the API.
func (c *LedgerClient) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op:       "DeleteCategory",
		method:   http.MethodDelete,
		path:     "/categories/" + url.PathEscape(id),
		resource: resourceCategory,
		id:       id,
	}, nil)
}

func (c *LedgerClient) writeCategory(ctx context.Context, op, method, path, id string, draft domain.CategoryDraft) (*domain.Category, error) {
	var wire wireCategory
	if err := c.do(ctx, request{
		op:       op,
		method:   method,
		path:     path,
		body:     categoryBody{Name: draft.Name, Type: string(draft.Type)},
		resource: resourceCategory,
		id:       id,
	}, &wire); err != nil {
		return nil, err
	}
	cat, err := wire.toDomain()
	if err != nil {
		return nil, c.malformed(op, err)
	}
	return &cat, nil
}

func (c *LedgerClient) malformed(op string, err error) error {
	return &domain.ErrTransport{Service: serviceName, Op: op, Err: fmt.Errorf("malformed response: %v", err)}
}
