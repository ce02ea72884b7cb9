package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/client"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idr = domain.Currency{Code: "IDR", Scale: 2}

func newClient(t *testing.T, h http.HandlerFunc) *client.LedgerClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	cb := resilience.NewCircuitBreaker("test", domain.IsDomain)
	return client.NewLedgerClient(&http.Client{Timeout: 2 * time.Second}, srv.URL, "secret", idr, cb, cfg)
}

func TestListTransactions_SendsFilterAndDecodes(t *testing.T) {
	var gotQuery, gotAuth string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"_id":"t1","type":"income","amount":1500,"category":{"_id":"cat-salary","name":"Salary","type":"income"},"date":"2024-01-05T00:00:00.000Z","description":"pay"},
			{"id":"t2","type":"expense","amount":"500.25","category":"cat-food","date":"2024-01-10"}
		]`))
	})

	f := domain.Filter{}.WithStart(domain.NewDate(2024, 1, 1)).WithType(domain.Income)
	txs, err := c.ListTransactions(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, "startDate=2024-01-01&type=income", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.Transaction{
		ID: "t1", Type: domain.Income, Amount: 150000, CategoryID: "cat-salary",
		Date: domain.NewDate(2024, 1, 5), Description: "pay",
	}, txs[0])
	assert.Equal(t, domain.Amount(50025), txs[1].Amount)
	assert.Equal(t, "cat-food", txs[1].CategoryID)
}

func TestListTransactions_MalformedAmountIsTransport(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"t1","type":"income","amount":-3,"category":"c","date":"2024-01-05"}]`))
	})

	_, err := c.ListTransactions(context.Background(), domain.Filter{})
	var transport *domain.ErrTransport
	require.ErrorAs(t, err, &transport)
	assert.False(t, domain.IsDomain(err))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{http.StatusNotFound, ``, func(t *testing.T, err error) {
			var nf *domain.ErrNotFound
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, "category", nf.Resource)
			assert.Equal(t, "c1", nf.ID)
		}},
		{http.StatusConflict, `{"message":"Category already exists"}`, func(t *testing.T, err error) {
			var conflict *domain.ErrConflict
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, "Category already exists", conflict.Error())
		}},
		{http.StatusBadRequest, `{"message":"Invalid category type"}`, func(t *testing.T, err error) {
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), "Invalid category type")
		}},
	}

	for _, tc := range cases {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		_, err := c.UpdateCategory(context.Background(), "c1", domain.CategoryDraft{Name: "Food", Type: domain.Expense})
		tc.check(t, err)
	}
}

func TestReads_RetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"_id":"c1","name":"Food","type":"expense"}]`))
	})

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{{ID: "c1", Name: "Food", Type: domain.Expense}}, cats)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReads_DoNotRetryDomainErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.ListCategories(context.Background())
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWrites_NotRetriedAndCarryIdempotencyKey(t *testing.T) {
	var calls atomic.Int32
	var key string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		key = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.CreateTransaction(context.Background(), domain.TransactionDraft{
		Type: domain.Expense, Amount: 1000, CategoryID: "c1", Date: domain.NewDate(2024, 1, 1),
	})
	var transport *domain.ErrTransport
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "CreateTransaction", transport.Op)
	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, key)
}

func TestCreateTransaction_Body(t *testing.T) {
	var body map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"t9","type":"expense","amount":10.5,"category":"c1","date":"2024-03-01","description":"lunch"}`))
	})

	tx, err := c.CreateTransaction(context.Background(), domain.TransactionDraft{
		Type: domain.Expense, Amount: 1050, CategoryID: "c1", Date: domain.NewDate(2024, 3, 1), Description: "lunch",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type": "expense", "amount": 10.5, "category": "c1", "date": "2024-03-01", "description": "lunch",
	}, body)
	assert.Equal(t, "t9", tx.ID)
	assert.Equal(t, domain.Amount(1050), tx.Amount)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	cfg := resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxConcurrency: 1}
	c := client.NewLedgerClient(http.DefaultClient, srv.URL, "", idr, resilience.NewCircuitBreaker("down", domain.IsDomain), cfg)

	err := c.DeleteTransaction(context.Background(), "t1")
	assert.True(t, domain.IsTransport(err))
}
