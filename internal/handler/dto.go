package handler

import (
	"net/url"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"
)

// ============================================================
// Response shapes. Amounts are minor units plus a display string.
// ============================================================

type money struct {
	Minor   domain.Amount `json:"minor"`
	Display string        `json:"display"`
}

type presenter struct {
	currency domain.Currency
}

func (p presenter) money(a domain.Amount) money {
	return money{Minor: a, Display: a.Format(p.currency)}
}

type filterDTO struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
}

func toFilterDTO(f domain.Filter) filterDTO {
	q := f.Query()
	return filterDTO{
		StartDate: q.Get(domain.ParamStartDate),
		EndDate:   q.Get(domain.ParamEndDate),
		Type:      q.Get(domain.ParamType),
		Category:  q.Get(domain.ParamCategory),
	}
}

func (d filterDTO) values() url.Values {
	return url.Values{
		domain.ParamStartDate: {d.StartDate},
		domain.ParamEndDate:   {d.EndDate},
		domain.ParamType:      {d.Type},
		domain.ParamCategory:  {d.Category},
	}
}

type transactionDTO struct {
	ID              string           `json:"id"`
	Type            domain.EntryType `json:"type"`
	Amount          money            `json:"amount"`
	CategoryID      string           `json:"category_id"`
	CategoryName    string           `json:"category_name"`
	UnknownCategory bool             `json:"unknown_category"`
	Date            domain.Date      `json:"date"`
	Description     string           `json:"description,omitempty"`
}

func (p presenter) transaction(lt domain.ListedTransaction) transactionDTO {
	return transactionDTO{
		ID:              lt.ID,
		Type:            lt.Type,
		Amount:          p.money(lt.Amount),
		CategoryID:      lt.CategoryID,
		CategoryName:    lt.CategoryName,
		UnknownCategory: lt.UnknownCategory,
		Date:            lt.Date,
		Description:     lt.Description,
	}
}

func (p presenter) transactions(snap *service.Snapshot) []transactionDTO {
	listing := snap.Listing()
	out := make([]transactionDTO, 0, len(listing))
	for _, lt := range listing {
		out = append(out, p.transaction(lt))
	}
	return out
}

type listingResponse struct {
	Filter       filterDTO        `json:"filter"`
	Transactions []transactionDTO `json:"transactions"`
	FromCache    bool             `json:"from_cache"`
	ResolvedAt   time.Time        `json:"resolved_at"`
}

type categoryTotalDTO struct {
	CategoryID string `json:"category_id,omitempty"`
	Name       string `json:"name"`
	Known      bool   `json:"known"`
	Income     money  `json:"income"`
	Expense    money  `json:"expense"`
	Count      int    `json:"count"`
}

type monthTotalDTO struct {
	Month   string `json:"month"`
	Income  money  `json:"income"`
	Expense money  `json:"expense"`
	Net     money  `json:"net"`
}

type seriesDTO struct {
	Label string `json:"label"`
	Value money  `json:"value"`
}

type summaryResponse struct {
	Filter       filterDTO          `json:"filter"`
	Currency     string             `json:"currency"`
	TotalIncome  money              `json:"total_income"`
	TotalExpense money              `json:"total_expense"`
	Net          money              `json:"net"`
	Count        int                `json:"count"`
	ByCategory   []categoryTotalDTO `json:"by_category"`
	ByMonth      []monthTotalDTO    `json:"by_month"`
	Series       []seriesDTO        `json:"series"`
}

func (p presenter) summary(f domain.Filter, agg domain.AggregateResult) summaryResponse {
	resp := summaryResponse{
		Filter:       toFilterDTO(f),
		Currency:     p.currency.Code,
		TotalIncome:  p.money(agg.TotalIncome),
		TotalExpense: p.money(agg.TotalExpense),
		Net:          p.money(agg.Net),
		Count:        agg.Count,
		ByCategory:   make([]categoryTotalDTO, 0, len(agg.ByCategory)),
		ByMonth:      make([]monthTotalDTO, 0, len(agg.ByMonth)),
		Series:       make([]seriesDTO, 0, len(agg.Series)),
	}
	for _, c := range agg.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryTotalDTO{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Known:      c.Known,
			Income:     p.money(c.Income),
			Expense:    p.money(c.Expense),
			Count:      c.Count,
		})
	}
	for _, m := range agg.ByMonth {
		resp.ByMonth = append(resp.ByMonth, monthTotalDTO{
			Month:   m.Month,
			Income:  p.money(m.Income),
			Expense: p.money(m.Expense),
			Net:     p.money(m.Net),
		})
	}
	for _, s := range agg.Series {
		resp.Series = append(resp.Series, seriesDTO{Label: s.Label, Value: p.money(s.Value)})
	}
	return resp
}

type viewResponse struct {
	Seq          uint64           `json:"seq"`
	Stale        bool             `json:"stale"`
	AppliedAt    time.Time        `json:"applied_at"`
	Summary      summaryResponse  `json:"summary"`
	Transactions []transactionDTO `json:"transactions"`
}

func (p presenter) view(st service.ViewState) viewResponse {
	return viewResponse{
		Seq:          st.Seq,
		Stale:        st.Stale,
		AppliedAt:    st.AppliedAt,
		Summary:      p.summary(st.Filter, st.Aggregate),
		Transactions: p.transactions(st.Snapshot),
	}
}

type mutationResponse struct {
	Key          string           `json:"key"`
	Category     *domain.Category `json:"category,omitempty"`
	Transaction  *transactionDTO  `json:"transaction,omitempty"`
	View         *viewResponse    `json:"view,omitempty"`
	RefreshError string           `json:"refresh_error,omitempty"`
}

// mutation renders a settled write. cats names the written transaction's
// category.
func (p presenter) mutation(key string, res *service.Result, cats domain.Categories) mutationResponse {
	resp := mutationResponse{Key: key, Category: res.Category}
	if res.Transaction != nil {
		tx := p.transaction(domain.Listing([]domain.Transaction{*res.Transaction}, cats)[0])
		resp.Transaction = &tx
	}
	if res.View != nil && res.View.Snapshot != nil {
		v := p.view(*res.View)
		resp.View = &v
	}
	if res.RefreshErr != nil {
		resp.RefreshError = res.RefreshErr.Error()
	}
	return resp
}
