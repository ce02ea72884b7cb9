package domain

import (
	"sort"
	"strings"
)

// ============================================================
// Entry type
// ============================================================

// EntryType is the direction of money: income or expense.
type EntryType string

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// Valid reports whether t is one of the two known types.
func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// ParseEntryType parses "income" or "expense", case-insensitively.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	return t, nil
}

// ============================================================
// Categories
// ============================================================

// UnknownCategoryName labels transactions whose category no longer resolves.
const UnknownCategoryName = "Unknown category"

// Category is a user-defined label for transactions.
type Category struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Type EntryType `json:"type"`
}

// CategoryDraft is the payload of a category create or update.
type CategoryDraft struct {
	Name string    `json:"name"`
	Type EntryType `json:"type"`
}

// Normalize trims the draft and validates it.
func (d CategoryDraft) Normalize() (CategoryDraft, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return d, &ErrValidation{Field: "name", Message: "required"}
	}
	t, err := ParseEntryType(string(d.Type))
	if err != nil {
		return d, err
	}
	d.Type = t
	return d, nil
}

// Categories indexes categories by ID.
type Categories map[string]Category

// IndexCategories builds an index from a list.
func IndexCategories(list []Category) Categories {
	idx := make(Categories, len(list))
	for _, c := range list {
		idx[c.ID] = c
	}
	return idx
}

// NameOf returns the category name, or UnknownCategoryName when the
// reference is orphaned.
func (c Categories) NameOf(id string) string {
	if cat, ok := c[id]; ok {
		return cat.Name
	}
	return UnknownCategoryName
}

// SortCategories orders by name, then ID.
func SortCategories(list []Category) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

// ============================================================
// Transactions
// ============================================================

// Transaction is a single income or expense record. The category is held by
// ID only so renames never leave stale names behind.
type Transaction struct {
	ID          string    `json:"id"`
	Type        EntryType `json:"type"`
	Amount      Amount    `json:"amount"`
	CategoryID  string    `json:"category_id"`
	Date        Date      `json:"date"`
	Description string    `json:"description,omitempty"`
}

// TransactionDraft is the full record sent on create or update.
// The type is deliberately not checked against the category's type.
type TransactionDraft struct {
	Type        EntryType `json:"type"`
	Amount      Amount    `json:"amount"`
	CategoryID  string    `json:"category_id"`
	Date        Date      `json:"date"`
	Description string    `json:"description,omitempty"`
}

// Normalize trims the draft and validates it.
func (d TransactionDraft) Normalize() (TransactionDraft, error) {
	t, err := ParseEntryType(string(d.Type))
	if err != nil {
		return d, err
	}
	d.Type = t
	if d.Amount <= 0 {
		return d, &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if d.Amount > MaxAmount {
		return d, &ErrValidation{Field: "amount", Message: "out of range"}
	}
	d.CategoryID = strings.TrimSpace(d.CategoryID)
	if d.CategoryID == "" {
		return d, &ErrValidation{Field: "category", Message: "required"}
	}
	if d.Date.IsZero() {
		return d, &ErrValidation{Field: "date", Message: "required"}
	}
	d.Description = strings.TrimSpace(d.Description)
	return d, nil
}

// SortTransactions orders newest first; same-day records by ID ascending.
func SortTransactions(txs []Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if c := txs[i].Date.Compare(txs[j].Date); c != 0 {
			return c > 0
		}
		return txs[i].ID < txs[j].ID
	})
}

// ListedTransaction is a transaction annotated for display.
type ListedTransaction struct {
	Transaction
	CategoryName    string `json:"category_name"`
	UnknownCategory bool   `json:"unknown_category"`
}

// Listing annotates each transaction with its current category name.
func Listing(txs []Transaction, cats Categories) []ListedTransaction {
	out := make([]ListedTransaction, 0, len(txs))
	for _, tx := range txs {
		_, known := cats[tx.CategoryID]
		out = append(out, ListedTransaction{
			Transaction:     tx,
			CategoryName:    cats.NameOf(tx.CategoryID),
			UnknownCategory: !known,
		})
	}
	return out
}
