package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Amount is a quantity of money in minor units (e.g. cents).
// Sums are integer additions, never floating point.
type Amount int64

// Currency pairs an ISO 4217 code with the number of minor digits.
type Currency struct {
	Code  string
	Scale int32
}

// DefaultCurrency is the ledger's home currency.
var DefaultCurrency = Currency{Code: "IDR", Scale: 2}

// NewCurrency resolves the minor-unit scale of an ISO 4217 code.
func NewCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return Currency{}, &ErrValidation{Field: "currency", Message: "unknown ISO 4217 code " + code}
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Currency{Code: unit.String(), Scale: int32(scale)}, nil
}

// MaxAmount bounds a single amount in minor units. 2^53 survives a round
// trip through a JSON number exactly.
const MaxAmount Amount = 1 << 53

var maxAmount = decimal.NewFromInt(int64(MaxAmount))

// AmountFromDecimal converts a major-unit decimal (1500.25) into minor units.
// Values with more precision than the currency carries are rejected rather
// than rounded.
func AmountFromDecimal(d decimal.Decimal, scale int32) (Amount, error) {
	minor := d.Shift(scale)
	if !minor.IsInteger() {
		return 0, &ErrValidation{Field: "amount", Message: "more decimal places than the currency allows"}
	}
	if minor.Abs().GreaterThan(maxAmount) {
		return 0, &ErrValidation{Field: "amount", Message: "out of range"}
	}
	return Amount(minor.IntPart()), nil
}

// Add sums two amounts, saturating at the int64 bounds instead of wrapping.
func (a Amount) Add(b Amount) Amount {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt64
	case b < 0 && sum > a:
		return math.MinInt64
	}
	return sum
}

// ParseAmount parses a major-unit string such as "1500.25" or "1500,25".
func ParseAmount(s string, scale int32) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ErrValidation{Field: "amount", Message: "not a number"}
	}
	return AmountFromDecimal(d, scale)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(a), -scale)
}

// Format renders the amount as "IDR 1500.00"; negative values get a leading "-".
func (a Amount) Format(c Currency) string {
	s := a.Decimal(c.Scale).Abs().StringFixed(c.Scale)
	if a < 0 {
		return "-" + c.Code + " " + s
	}
	return c.Code + " " + s
}
