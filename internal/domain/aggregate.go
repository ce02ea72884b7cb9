package domain

import "sort"

// AggregateResult holds the figures derived from a transaction subset.
// It is never persisted.
type AggregateResult struct {
	TotalIncome  Amount          `json:"total_income"`
	TotalExpense Amount          `json:"total_expense"`
	Net          Amount          `json:"net"`
	Count        int             `json:"count"`
	ByCategory   []CategoryTotal `json:"by_category"`
	ByMonth      []MonthTotal    `json:"by_month"`
	Series       []SeriesPoint   `json:"series"`
}

// CategoryTotal is the breakdown for one category. Orphaned references share
// a single bucket with an empty CategoryID and Known=false.
type CategoryTotal struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Known      bool   `json:"known"`
	Income     Amount `json:"income"`
	Expense    Amount `json:"expense"`
	Count      int    `json:"count"`
}

// MonthTotal shows income and expenses for one "2006-01" month.
type MonthTotal struct {
	Month   string `json:"month"`
	Income  Amount `json:"income"`
	Expense Amount `json:"expense"`
	Net     Amount `json:"net"`
}

// SeriesPoint is one slice of the income/expense chart.
type SeriesPoint struct {
	Label string `json:"label"`
	Value Amount `json:"value"`
}

// Chart labels.
const (
	SeriesIncome  = "Income"
	SeriesExpense = "Expense"
)

type totals struct {
	income  Amount
	expense Amount
	count   int
}

func (t *totals) add(tx Transaction) {
	if tx.Type == Income {
		t.income = t.income.Add(tx.Amount)
	} else {
		t.expense = t.expense.Add(tx.Amount)
	}
	t.count++
}

// Aggregate folds txs into totals in a single pass. It is pure and
// deterministic: any permutation of txs yields an identical result, and an
// empty input yields zeros.
func Aggregate(txs []Transaction, cats Categories) AggregateResult {
	var all totals
	byCat := map[string]*totals{}
	byMonth := map[string]*totals{}

	for _, tx := range txs {
		all.add(tx)

		catKey := tx.CategoryID
		if _, ok := cats[catKey]; !ok {
			catKey = ""
		}
		bucket(byCat, catKey).add(tx)
		bucket(byMonth, tx.Date.Month()).add(tx)
	}

	res := AggregateResult{
		TotalIncome:  all.income,
		TotalExpense: all.expense,
		Net:          all.income - all.expense,
		Count:        all.count,
		ByCategory:   make([]CategoryTotal, 0, len(byCat)),
		ByMonth:      make([]MonthTotal, 0, len(byMonth)),
		Series: []SeriesPoint{
			{Label: SeriesIncome, Value: all.income},
			{Label: SeriesExpense, Value: all.expense},
		},
	}

	for id, t := range byCat {
		ct := CategoryTotal{CategoryID: id, Name: UnknownCategoryName, Income: t.income, Expense: t.expense, Count: t.count}
		if id != "" {
			ct.Name = cats[id].Name
			ct.Known = true
		}
		res.ByCategory = append(res.ByCategory, ct)
	}
	sort.Slice(res.ByCategory, func(i, j int) bool {
		a, b := res.ByCategory[i], res.ByCategory[j]
		if at, bt := a.Income+a.Expense, b.Income+b.Expense; at != bt {
			return at > bt
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CategoryID < b.CategoryID
	})

	for month, t := range byMonth {
		res.ByMonth = append(res.ByMonth, MonthTotal{Month: month, Income: t.income, Expense: t.expense, Net: t.income - t.expense})
	}
	sort.Slice(res.ByMonth, func(i, j int) bool { return res.ByMonth[i].Month < res.ByMonth[j].Month })

	return res
}

func bucket(m map[string]*totals, key string) *totals {
	t, ok := m[key]
	if !ok {
		t = &totals{}
		m[key] = t
	}
	return t
}
