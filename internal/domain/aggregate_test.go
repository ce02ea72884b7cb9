package domain_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func januaryScenario() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t1", Type: domain.Income, Amount: 150000, CategoryID: "cat-salary", Date: domain.NewDate(2024, 1, 5)},
		{ID: "t2", Type: domain.Expense, Amount: 50000, CategoryID: "cat-food", Date: domain.NewDate(2024, 1, 10)},
		{ID: "t3", Type: domain.Expense, Amount: 20000, CategoryID: "cat-food", Date: domain.NewDate(2024, 2, 1)},
	}
}

func TestAggregate_Empty(t *testing.T) {
	res := domain.Aggregate(nil, nil)

	assert.Equal(t, domain.Amount(0), res.TotalIncome)
	assert.Equal(t, domain.Amount(0), res.TotalExpense)
	assert.Equal(t, domain.Amount(0), res.Net)
	assert.Empty(t, res.ByCategory)
	assert.Empty(t, res.ByMonth)
	assert.Equal(t, []domain.SeriesPoint{{Label: "Income"}, {Label: "Expense"}}, res.Series)
}

func TestAggregate_JanuaryScenario(t *testing.T) {
	f := domain.Filter{}.WithStart(domain.NewDate(2024, 1, 1)).WithEnd(domain.NewDate(2024, 1, 31))

	var subset []domain.Transaction
	for _, tx := range januaryScenario() {
		if f.Matches(tx, nil) {
			subset = append(subset, tx)
		}
	}
	require.Len(t, subset, 2)

	res := domain.Aggregate(subset, sampleCategories())
	assert.Equal(t, domain.Amount(150000), res.TotalIncome)
	assert.Equal(t, domain.Amount(50000), res.TotalExpense)
	assert.Equal(t, domain.Amount(100000), res.Net)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []domain.MonthTotal{{Month: "2024-01", Income: 150000, Expense: 50000, Net: 100000}}, res.ByMonth)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cats := sampleCategories()

	for round := 0; round < 50; round++ {
		n := rng.Intn(20)
		txs := make([]domain.Transaction, n)
		for i := range txs {
			typ := domain.Income
			if rng.Intn(2) == 0 {
				typ = domain.Expense
			}
			catID := []string{"cat-food", "cat-salary", "cat-gone"}[rng.Intn(3)]
			txs[i] = domain.Transaction{
				ID:         string(rune('a' + i)),
				Type:       typ,
				Amount:     domain.Amount(rng.Int63n(1_000_000) + 1),
				CategoryID: catID,
				Date:       domain.NewDate(2024, time.Month(1+rng.Intn(12)), 1+rng.Intn(28)),
			}
		}

		want := domain.Aggregate(txs, cats)
		assert.GreaterOrEqual(t, int64(want.TotalIncome), int64(0))
		assert.GreaterOrEqual(t, int64(want.TotalExpense), int64(0))

		shuffled := append([]domain.Transaction(nil), txs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, domain.Aggregate(shuffled, cats))
	}
}

func TestAggregate_OrphanedCategoryBucket(t *testing.T) {
	cats := sampleCategories()
	txs := []domain.Transaction{
		{ID: "1", Type: domain.Expense, Amount: 300, CategoryID: "cat-food", Date: domain.NewDate(2024, 1, 1)},
		{ID: "2", Type: domain.Expense, Amount: 200, CategoryID: "cat-deleted-a", Date: domain.NewDate(2024, 1, 1)},
		{ID: "3", Type: domain.Income, Amount: 50, CategoryID: "cat-deleted-b", Date: domain.NewDate(2024, 1, 1)},
	}

	res := domain.Aggregate(txs, cats)
	assert.Equal(t, domain.Amount(50), res.TotalIncome)
	assert.Equal(t, domain.Amount(500), res.TotalExpense)

	require.Len(t, res.ByCategory, 2)
	assert.Equal(t, domain.CategoryTotal{CategoryID: "cat-food", Name: "Food", Known: true, Expense: 300, Count: 1}, res.ByCategory[0])
	assert.Equal(t, domain.CategoryTotal{Name: domain.UnknownCategoryName, Income: 50, Expense: 200, Count: 2}, res.ByCategory[1])
}

func TestAggregate_TypeIndependentOfCategoryType(t *testing.T) {
	// An income booked against an expense category still counts as income.
	txs := []domain.Transaction{
		{ID: "1", Type: domain.Income, Amount: 700, CategoryID: "cat-food", Date: domain.NewDate(2024, 3, 1)},
	}
	res := domain.Aggregate(txs, sampleCategories())
	assert.Equal(t, domain.Amount(700), res.TotalIncome)
	assert.Equal(t, domain.Amount(0), res.TotalExpense)
}

func TestListing_MarksUnknownCategory(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "1", Type: domain.Expense, Amount: 1, CategoryID: "cat-food", Date: domain.NewDate(2024, 1, 1)},
		{ID: "2", Type: domain.Expense, Amount: 1, CategoryID: "cat-gone", Date: domain.NewDate(2024, 1, 1)},
	}
	rows := domain.Listing(txs, sampleCategories())

	require.Len(t, rows, 2)
	assert.Equal(t, "Food", rows[0].CategoryName)
	assert.False(t, rows[0].UnknownCategory)
	assert.Equal(t, domain.UnknownCategoryName, rows[1].CategoryName)
	assert.True(t, rows[1].UnknownCategory)
}

func TestSortTransactions(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "b", Date: domain.NewDate(2024, 1, 1)},
		{ID: "c", Date: domain.NewDate(2024, 2, 1)},
		{ID: "a", Date: domain.NewDate(2024, 1, 1)},
	}
	domain.SortTransactions(txs)

	assert.Equal(t, []string{"c", "a", "b"}, []string{txs[0].ID, txs[1].ID, txs[2].ID})
}

func TestAggregate_HugeAmountsNeverGoNegative(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "a", Type: domain.Income, Amount: 9223372036854775800, CategoryID: "cat-salary", Date: domain.NewDate(2024, 1, 1)},
		{ID: "b", Type: domain.Income, Amount: 9223372036854775800, CategoryID: "cat-salary", Date: domain.NewDate(2024, 1, 2)},
		{ID: "c", Type: domain.Expense, Amount: 10, CategoryID: "cat-food", Date: domain.NewDate(2024, 1, 3)},
	}

	res := domain.Aggregate(txs, sampleCategories())
	assert.GreaterOrEqual(t, res.TotalIncome, domain.Amount(0))
	assert.GreaterOrEqual(t, res.Net, domain.Amount(0))
	for _, m := range res.ByMonth {
		assert.GreaterOrEqual(t, m.Income, domain.Amount(0))
	}
	for _, c := range res.ByCategory {
		assert.GreaterOrEqual(t, c.Income, domain.Amount(0))
	}
}
