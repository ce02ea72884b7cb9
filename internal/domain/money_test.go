package domain_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurrency(t *testing.T) {
	usd, err := domain.NewCurrency("usd")
	require.NoError(t, err)
	assert.Equal(t, domain.Currency{Code: "USD", Scale: 2}, usd)

	jpy, err := domain.NewCurrency("JPY")
	require.NoError(t, err)
	assert.Equal(t, int32(0), jpy.Scale)

	_, err = domain.NewCurrency("XXXX")
	assert.Error(t, err)
}

func TestAmountFromDecimal(t *testing.T) {
	cases := []struct {
		in      string
		scale   int32
		want    domain.Amount
		wantErr bool
	}{
		{"1500", 2, 150000, false},
		{"1500.25", 2, 150025, false},
		{"0.1", 2, 10, false},
		{"12.345", 2, 0, true},
		{"150000", 0, 150000, false},
		{"1.5", 0, 0, true},
		{"90071992547409.92", 2, domain.MaxAmount, false},
		{"90071992547409.93", 2, 0, true},
		{"92233720368547758.07", 2, 0, true},
	}
	for _, tc := range cases {
		got, err := domain.AmountFromDecimal(decimal.RequireFromString(tc.in), tc.scale)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestAmount_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 in float64 is 0.30000000000000004.
	a, err := domain.ParseAmount("0.1", 2)
	require.NoError(t, err)
	b, err := domain.ParseAmount("0,2", 2)
	require.NoError(t, err)

	assert.Equal(t, domain.Amount(30), a+b)
	assert.Equal(t, "USD 0.30", (a + b).Format(domain.Currency{Code: "USD", Scale: 2}))
}

func TestAmount_Format(t *testing.T) {
	idr := domain.DefaultCurrency
	assert.Equal(t, "IDR 1500.00", domain.Amount(150000).Format(idr))
	assert.Equal(t, "-IDR 20.05", domain.Amount(-2005).Format(idr))
	assert.Equal(t, "IDR 0.00", domain.Amount(0).Format(idr))
	assert.Equal(t, "JPY 1200", domain.Amount(1200).Format(domain.Currency{Code: "JPY"}))
}

func TestParseAmount_Invalid(t *testing.T) {
	_, err := domain.ParseAmount("abc", 2)
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)
}

func TestDate_ParseAndJSON(t *testing.T) {
	d, err := domain.ParseDate("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 1, 5), d)

	ts, err := domain.ParseDate("2024-01-05T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, 0, d.Compare(ts))

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-01-05"`, string(b))

	var back domain.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	var empty domain.Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())
}

func TestDraftNormalize(t *testing.T) {
	_, err := domain.CategoryDraft{Name: "  ", Type: domain.Expense}.Normalize()
	assert.Error(t, err)

	cd, err := domain.CategoryDraft{Name: " Food ", Type: "EXPENSE"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryDraft{Name: "Food", Type: domain.Expense}, cd)

	_, err = domain.TransactionDraft{Type: domain.Income, Amount: 0, CategoryID: "c", Date: domain.NewDate(2024, 1, 1)}.Normalize()
	assert.Error(t, err)

	_, err = domain.TransactionDraft{Type: domain.Income, Amount: -5, CategoryID: "c", Date: domain.NewDate(2024, 1, 1)}.Normalize()
	assert.Error(t, err)

	_, err = domain.TransactionDraft{Type: domain.Income, Amount: domain.MaxAmount + 1, CategoryID: "c", Date: domain.NewDate(2024, 1, 1)}.Normalize()
	assert.Error(t, err)

	td, err := domain.TransactionDraft{Type: domain.Income, Amount: 5, CategoryID: " c ", Date: domain.NewDate(2024, 1, 1)}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "c", td.CategoryID)
}

func TestAmount_AddSaturates(t *testing.T) {
	assert.Equal(t, domain.Amount(7), domain.Amount(3).Add(4))
	assert.Equal(t, domain.Amount(math.MaxInt64), domain.Amount(math.MaxInt64-1).Add(5))
	assert.Equal(t, domain.Amount(math.MinInt64), domain.Amount(math.MinInt64+1).Add(-5))
}
