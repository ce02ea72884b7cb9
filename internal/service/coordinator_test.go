package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

// blockingAPI holds every write until release is closed.
type blockingAPI struct {
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	writes int
}

func newBlockingAPI() *blockingAPI {
	return &blockingAPI{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingAPI) hold(ctx context.Context) error {
	b.mu.Lock()
	b.writes++
	b.mu.Unlock()
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingAPI) ListCategories(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: "c1", Name: "Food", Type: domain.Expense}}, nil
}

func (b *blockingAPI) CreateCategory(ctx context.Context, d domain.CategoryDraft) (*domain.Category, error) {
	if err := b.hold(ctx); err != nil {
		return nil, err
	}
	return &domain.Category{ID: "c2", Name: d.Name, Type: d.Type}, nil
}

func (b *blockingAPI) UpdateCategory(ctx context.Context, id string, d domain.CategoryDraft) (*domain.Category, error) {
	if err := b.hold(ctx); err != nil {
		return nil, err
	}
	return &domain.Category{ID: id, Name: d.Name, Type: d.Type}, nil
}

func (b *blockingAPI) DeleteCategory(ctx context.Context, _ string) error {
	return b.hold(ctx)
}

func (b *blockingAPI) ListTransactions(context.Context, domain.Filter) ([]domain.Transaction, error) {
	return []domain.Transaction{}, nil
}

func (b *blockingAPI) CreateTransaction(ctx context.Context, d domain.TransactionDraft) (*domain.Transaction, error) {
	if err := b.hold(ctx); err != nil {
		return nil, err
	}
	return &domain.Transaction{ID: "t-new", Type: d.Type, Amount: d.Amount, CategoryID: d.CategoryID, Date: d.Date}, nil
}

func (b *blockingAPI) UpdateTransaction(ctx context.Context, id string, d domain.TransactionDraft) (*domain.Transaction, error) {
	if err := b.hold(ctx); err != nil {
		return nil, err
	}
	return &domain.Transaction{ID: id, Type: d.Type, Amount: d.Amount, CategoryID: d.CategoryID, Date: d.Date}, nil
}

func (b *blockingAPI) DeleteTransaction(ctx context.Context, _ string) error {
	return b.hold(ctx)
}

func newBlockingLedger(t *testing.T) (*service.Ledger, *blockingAPI, *observability.Metrics) {
	t.Helper()
	api := newBlockingAPI()
	metrics := observability.NewMetrics()
	ledger := service.NewLedger(api, service.LedgerConfig{SettledTTL: time.Minute}, metrics, zap.NewNop())
	t.Cleanup(ledger.Close)
	return ledger, api, metrics
}

func updateTx(id string) service.Mutation {
	return service.Mutation{
		Kind: service.KindTransaction, Op: service.OpUpdate, ID: id,
		Transaction: &domain.TransactionDraft{
			Type: domain.Expense, Amount: 500, CategoryID: "c1", Date: domain.NewDate(2024, 1, 2),
		},
	}
}

// --- Tests ---

func TestCoordinator_SecondSubmitForSameKeyIsBusy(t *testing.T) {
	ledger, api, metrics := newBlockingLedger(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := ledger.Coordinator.Submit(ctx, updateTx("t1"))
		done <- err
	}()
	<-api.entered

	assert.Equal(t, service.StateInFlight, ledger.Coordinator.Status(service.KindTransaction, "t1").State)

	_, err := ledger.Coordinator.Submit(ctx, updateTx("t1"))
	var busy *domain.ErrBusy
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "transaction:t1", busy.Key)

	close(api.release)
	require.NoError(t, <-done)

	api.mu.Lock()
	assert.Equal(t, 1, api.writes, "the busy submit never reached the API")
	api.mu.Unlock()
	assert.Equal(t, int64(1), metrics.Snapshot().BusyRejections)

	st := ledger.Coordinator.Status(service.KindTransaction, "t1")
	assert.Equal(t, service.StateSettled, st.State)
	assert.Equal(t, service.OutcomeSuccess, st.Outcome)
}

func TestCoordinator_DifferentKeysRunConcurrently(t *testing.T) {
	ledger, api, _ := newBlockingLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"t1", "t2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := ledger.Coordinator.Submit(ctx, updateTx(id))
			errs <- err
		}(id)
	}
	<-api.entered
	<-api.entered
	close(api.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCoordinator_CreatesShareOneKey(t *testing.T) {
	ledger, api, _ := newBlockingLedger(t)
	ctx := context.Background()
	create := service.Mutation{
		Kind: service.KindCategory, Op: service.OpCreate,
		Category: &domain.CategoryDraft{Name: "Travel", Type: domain.Expense},
	}

	done := make(chan error, 1)
	go func() {
		_, err := ledger.Coordinator.Submit(ctx, create)
		done <- err
	}()
	<-api.entered

	_, err := ledger.Coordinator.Submit(ctx, create)
	var busy *domain.ErrBusy
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "category:new", busy.Key)

	close(api.release)
	require.NoError(t, <-done)
	assert.Equal(t, service.StateSettled, ledger.Coordinator.Status(service.KindCategory, "c2").State)
}

func TestCoordinator_LockReleasedAfterFailure(t *testing.T) {
	ledger, api, _ := newBlockingLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ledger.Coordinator.Submit(ctx, updateTx("t1"))
		done <- err
	}()
	<-api.entered
	cancel()
	require.Error(t, <-done)

	close(api.release)
	_, err := ledger.Coordinator.Submit(context.Background(), updateTx("t1"))
	assert.NoError(t, err)
}

func TestCoordinator_RefreshesViewBeforeReturning(t *testing.T) {
	ledger, api, _ := newBlockingLedger(t)
	close(api.release)
	ctx := context.Background()

	_, err := ledger.View.Apply(ctx, domain.Filter{}.WithType(domain.Expense))
	require.NoError(t, err)
	before, _ := ledger.View.Current()

	res, err := ledger.Coordinator.Submit(ctx, service.Mutation{
		Kind: service.KindTransaction, Op: service.OpDelete, ID: "t1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.View)
	assert.Greater(t, res.View.Seq, before.Seq)
	assert.False(t, res.View.Stale)
	assert.Equal(t, domain.Filter{}.WithType(domain.Expense), res.View.Filter)
}

func TestCoordinator_NoRefreshWithoutAppliedView(t *testing.T) {
	ledger, api, _ := newBlockingLedger(t)
	close(api.release)

	res, err := ledger.Coordinator.Submit(context.Background(), service.Mutation{
		Kind: service.KindTransaction, Op: service.OpDelete, ID: "t1",
	})
	require.NoError(t, err)
	assert.Nil(t, res.View)
	assert.NoError(t, res.RefreshErr)

	_, ok := ledger.View.Current()
	assert.False(t, ok)
}

func TestMutation_ShapeValidation(t *testing.T) {
	ledger, _, _ := newBlockingLedger(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		m     service.Mutation
		field string
	}{
		{"unknown kind", service.Mutation{Kind: "budget", Op: service.OpDelete, ID: "x"}, "kind"},
		{"unknown op", service.Mutation{Kind: service.KindCategory, Op: "patch", ID: "x"}, "op"},
		{"update without id", service.Mutation{Kind: service.KindCategory, Op: service.OpUpdate, Category: &domain.CategoryDraft{}}, "id"},
		{"create with id", service.Mutation{Kind: service.KindCategory, Op: service.OpCreate, ID: "x", Category: &domain.CategoryDraft{}}, "id"},
		{"missing payload", service.Mutation{Kind: service.KindTransaction, Op: service.OpCreate}, "transaction"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Coordinator.Submit(ctx, tc.m)
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
