package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
)

const resourceTransaction = "transaction"

// ListTransactions fetches the transactions selected by filter. The API
// applies the same AND composition as domain.Filter.Matches.
func (c *LedgerClient) ListTransactions(ctx context.Context, filter domain.Filter) ([]domain.Transaction, error) {
	var wire []wireTransaction
	if err := c.do(ctx, request{
		op:       "ListTransactions",
		method:   http.MethodGet,
		path:     "/transactions",
		query:    filter.Query(),
		resource: resourceTransaction,
	}, &wire); err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(wire))
	for _, w := range wire {
		tx, err := w.toDomain(c.currency)
		if err != nil {
			return nil, c.malformed("ListTransactions", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// CreateTransaction posts a new transaction.
func (c *LedgerClient) CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	return c.writeTransaction(ctx, "CreateTransaction", http.MethodPost, "/transactions", "", draft)
}

// UpdateTransaction replaces the full record.
func (c *LedgerClient) UpdateTransaction(ctx context.Context, id string, draft domain.TransactionDraft) (*domain.Transaction, error) {
	return c.writeTransaction(ctx, "UpdateTransaction", http.MethodPut, "/transactions/"+url.PathEscape(id), id, draft)
}

// DeleteTransaction removes a transaction.
func (c *LedgerClient) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op:       "DeleteTransaction",
		method:   http.MethodDelete,
		path:     "/transactions/" + url.PathEscape(id),
		resource: resourceTransaction,
		id:       id,
	}, nil)
}

func (c *LedgerClient) writeTransaction(ctx context.Context, op, method, path, id string, draft domain.TransactionDraft) (*domain.Transaction, error) {
	var wire wireTransaction
	if err := c.do(ctx, request{
		op:       op,
		method:   method,
		path:     path,
		body:     newTransactionBody(draft, c.currency),
		resource: resourceTransaction,
		id:       id,
	}, &wire); err != nil {
		return nil, err
	}
	tx, err := wire.toDomain(c.currency)
	if err != nil {
		return nil, c.malformed(op, err)
	}
	return &tx, nil
}
