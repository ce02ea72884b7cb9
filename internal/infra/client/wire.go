package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// Wire formats of the ledger API. IDs come as "_id" (document stores) or
// "id"; amounts are major-unit decimals; a transaction's category is either
// an ID string or an embedded category document.

type wireCategory struct {
	ID      string `json:"id,omitempty"`
	MongoID string `json:"_id,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}

func (w wireCategory) id() string {
	if w.ID != "" {
		return w.ID
	}
	return w.MongoID
}

func (w wireCategory) toDomain() (domain.Category, error) {
	t, err := domain.ParseEntryType(w.Type)
	if err != nil {
		return domain.Category{}, fmt.Errorf("category %q: %v", w.id(), err)
	}
	if w.id() == "" {
		return domain.Category{}, fmt.Errorf("category %q without id", w.Name)
	}
	return domain.Category{ID: w.id(), Name: w.Name, Type: t}, nil
}

type wireCategoryRef struct {
	id string
}

func (r *wireCategoryRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.id)
	}
	var embedded wireCategory
	if err := json.Unmarshal(b, &embedded); err != nil {
		return err
	}
	r.id = embedded.id()
	return nil
}

type wireTransaction struct {
	ID          string          `json:"id,omitempty"`
	MongoID     string          `json:"_id,omitempty"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    wireCategoryRef `json:"category"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

func (w wireTransaction) toDomain(cur domain.Currency) (domain.Transaction, error) {
	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	if id == "" {
		return domain.Transaction{}, fmt.Errorf("transaction without id")
	}
	t, err := domain.ParseEntryType(w.Type)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %v", id, err)
	}
	amount, err := domain.AmountFromDecimal(w.Amount, cur.Scale)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %v", id, err)
	}
	if amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("transaction %s: non-positive amount %s", id, w.Amount)
	}
	date, err := domain.ParseDate(w.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %v", id, err)
	}
	return domain.Transaction{
		ID:          id,
		Type:        t,
		Amount:      amount,
		CategoryID:  w.Category.id,
		Date:        date,
		Description: w.Description,
	}, nil
}

// transactionBody is the outgoing create/update payload. Amount is a bare
// JSON number in major units.
type transactionBody struct {
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Date        string      `json:"date"`
	Description string      `json:"description,omitempty"`
}

func newTransactionBody(d domain.TransactionDraft, cur domain.Currency) transactionBody {
	return transactionBody{
		Type:        string(d.Type),
		Amount:      json.Number(d.Amount.Decimal(cur.Scale).StringFixed(cur.Scale)),
		Category:    d.CategoryID,
		Date:        d.Date.String(),
		Description: d.Description,
	}
}

type categoryBody struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
