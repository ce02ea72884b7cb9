package domain

import (
	"net/url"
	"strings"
)

// Filter selects a subset of transactions. Every dimension is optional and
// an absent dimension places no constraint. Present dimensions combine with
// AND. Filter is an immutable value: the With* methods return copies.
type Filter struct {
	start    Date
	end      Date
	typ      EntryType
	category string
}

// Query parameter names shared with the ledger API.
const (
	ParamStartDate = "startDate"
	ParamEndDate   = "endDate"
	ParamType      = "type"
	ParamCategory  = "category"
)

// WithStart constrains the first included date. A zero date clears it.
func (f Filter) WithStart(d Date) Filter { f.start = d; return f }

// WithEnd constrains the last included date. A zero date clears it.
func (f Filter) WithEnd(d Date) Filter { f.end = d; return f }

// WithType constrains the entry type. An empty type clears it.
func (f Filter) WithType(t EntryType) Filter { f.typ = t; return f }

// WithCategory constrains the category by ID or name. Blank clears it.
func (f Filter) WithCategory(ref string) Filter {
	f.category = strings.TrimSpace(ref)
	return f
}

func (f Filter) Start() (Date, bool)      { return f.start, !f.start.IsZero() }
func (f Filter) End() (Date, bool)        { return f.end, !f.end.IsZero() }
func (f Filter) Type() (EntryType, bool)  { return f.typ, f.typ != "" }
func (f Filter) Category() (string, bool) { return f.category, f.category != "" }

// Unconstrained reports whether the filter selects everything.
func (f Filter) Unconstrained() bool {
	return f.start.IsZero() && f.end.IsZero() && f.typ == "" && f.category == ""
}

// Degenerate reports a start date after the end date. Such a filter selects
// nothing; it is not an error.
func (f Filter) Degenerate() bool {
	return !f.start.IsZero() && !f.end.IsZero() && f.start.After(f.end)
}

// Matches is the AND of all present dimensions. cats resolves category names
// when the category constraint is a name rather than an ID.
func (f Filter) Matches(tx Transaction, cats Categories) bool {
	if !f.start.IsZero() && tx.Date.Before(f.start) {
		return false
	}
	if !f.end.IsZero() && tx.Date.After(f.end) {
		return false
	}
	if f.typ != "" && tx.Type != f.typ {
		return false
	}
	if f.category != "" && tx.CategoryID != f.category {
		cat, ok := cats[tx.CategoryID]
		if !ok || cat.Name != f.category {
			return false
		}
	}
	return true
}

// ReferencesCategory reports whether the category constraint equals any of
// refs (IDs or names).
func (f Filter) ReferencesCategory(refs ...string) bool {
	if f.category == "" {
		return false
	}
	for _, r := range refs {
		if r != "" && r == f.category {
			return true
		}
	}
	return false
}

// Query renders the present dimensions as query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if !f.start.IsZero() {
		q.Set(ParamStartDate, f.start.String())
	}
	if !f.end.IsZero() {
		q.Set(ParamEndDate, f.end.String())
	}
	if f.typ != "" {
		q.Set(ParamType, string(f.typ))
	}
	if f.category != "" {
		q.Set(ParamCategory, f.category)
	}
	return q
}

// Key is a canonical cache key: equal filters have equal keys.
func (f Filter) Key() string {
	if f.Unconstrained() {
		return "*"
	}
	return f.Query().Encode()
}

func (f Filter) String() string { return f.Key() }

// ParseFilter reads a filter from query parameters. Empty values mean "no
// constraint", never "match nothing".
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter
	if s := strings.TrimSpace(q.Get(ParamStartDate)); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return Filter{}, &ErrValidation{Field: ParamStartDate, Message: "expected YYYY-MM-DD"}
		}
		f.start = d
	}
	if s := strings.TrimSpace(q.Get(ParamEndDate)); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return Filter{}, &ErrValidation{Field: ParamEndDate, Message: "expected YYYY-MM-DD"}
		}
		f.end = d
	}
	if s := strings.TrimSpace(q.Get(ParamType)); s != "" {
		t, err := ParseEntryType(s)
		if err != nil {
			return Filter{}, err
		}
		f.typ = t
	}
	f.category = strings.TrimSpace(q.Get(ParamCategory))
	return f, nil
}
