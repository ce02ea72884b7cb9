// Package fakeledger is an in-memory Remote Ledger API for local runs and
// end-to-end tests. It speaks the same wire format as the real backend:
// "_id" identifiers, major-unit decimal amounts and, when the category still
// exists, an embedded category document on each transaction.
package fakeledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Server holds the ledger state.
type Server struct {
	currency domain.Currency
	token    string

	mu           sync.Mutex
	categories   map[string]domain.Category
	transactions map[string]domain.Transaction
	failNext     []int
	requests     int
}

// New creates an empty ledger. A non-empty token is required as a bearer
// credential on every request.
func New(currency domain.Currency, token string) *Server {
	return &Server{
		currency:     currency,
		token:        token,
		categories:   make(map[string]domain.Category),
		transactions: make(map[string]domain.Transaction),
	}
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)
	r.Use(s.auth)
	r.Use(s.injectFailures)

	r.Get("/categories", s.listCategories)
	r.Post("/categories", s.createCategory)
	r.Put("/categories/{id}", s.updateCategory)
	r.Delete("/categories/{id}", s.deleteCategory)

	r.Get("/transactions", s.listTransactions)
	r.Post("/transactions", s.createTransaction)
	r.Put("/transactions/{id}", s.updateTransaction)
	r.Delete("/transactions/{id}", s.deleteTransaction)
	return r
}

// FailNext makes the next requests answer with the given statuses, one per
// request, before normal handling resumes.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, statuses...)
}

// Requests reports how many requests were received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// SeedCategory inserts a category with a fixed ID.
func (s *Server) SeedCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

// SeedTransaction inserts a transaction with a fixed ID.
func (s *Server) SeedTransaction(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
}

// ============================================================
// Middleware
// ============================================================

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeMessage(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		if len(s.failNext) > 0 {
			status, s.failNext = s.failNext[0], s.failNext[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			writeMessage(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================
// Categories
// ============================================================

type categoryDoc struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func toCategoryDoc(c domain.Category) categoryDoc {
	return categoryDoc{ID: c.ID, Name: c.Name, Type: string(c.Type)}
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		list = append(list, c)
	}
	s.mu.Unlock()

	domain.SortCategories(list)
	docs := make([]categoryDoc, 0, len(list))
	for _, c := range list {
		docs = append(docs, toCategoryDoc(c))
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeCategory(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(draft.Name, "") {
		writeMessage(w, http.StatusConflict, "Category already exists")
		return
	}
	c := domain.Category{ID: uuid.NewString(), Name: draft.Name, Type: draft.Type}
	s.categories[c.ID] = c
	writeJSON(w, http.StatusCreated, toCategoryDoc(c))
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	draft, ok := decodeCategory(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Category not found")
		return
	}
	if s.nameTaken(draft.Name, id) {
		writeMessage(w, http.StatusConflict, "Category already exists")
		return
	}
	c := domain.Category{ID: id, Name: draft.Name, Type: draft.Type}
	s.categories[id] = c
	writeJSON(w, http.StatusOK, toCategoryDoc(c))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Category not found")
		return
	}
	// Referencing transactions are kept.
	delete(s.categories, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category removed"})
}

func (s *Server) nameTaken(name, exceptID string) bool {
	for _, c := range s.categories {
		if c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func decodeCategory(w http.ResponseWriter, r *http.Request) (domain.CategoryDraft, bool) {
	var body categoryDoc
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return domain.CategoryDraft{}, false
	}
	draft, err := domain.CategoryDraft{Name: body.Name, Type: domain.EntryType(body.Type)}.Normalize()
	if err != nil {
		writeValidation(w, err)
		return domain.CategoryDraft{}, false
	}
	return draft, true
}

// ============================================================
// Transactions
// ============================================================

type transactionDoc struct {
	ID          string          `json:"_id"`
	Type        string          `json:"type"`
	Amount      json.Number     `json:"amount"`
	Category    json.RawMessage `json:"category"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
}

type transactionInput struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

// toDoc renders tx; must be called with s.mu held.
func (s *Server) toDoc(tx domain.Transaction) transactionDoc {
	ref, _ := json.Marshal(tx.CategoryID)
	if c, ok := s.categories[tx.CategoryID]; ok {
		ref, _ = json.Marshal(toCategoryDoc(c))
	}
	return transactionDoc{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      json.Number(tx.Amount.Decimal(s.currency.Scale).String()),
		Category:    ref,
		Date:        tx.Date.Time().Format(time.RFC3339Nano),
		Description: tx.Description,
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := domain.ParseFilter(r.URL.Query())
	if err != nil {
		writeValidation(w, err)
		return
	}

	s.mu.Lock()
	cats := make(domain.Categories, len(s.categories))
	for id, c := range s.categories {
		cats[id] = c
	}
	var subset []domain.Transaction
	if !f.Degenerate() {
		for _, tx := range s.transactions {
			if f.Matches(tx, cats) {
				subset = append(subset, tx)
			}
		}
	}
	domain.SortTransactions(subset)
	docs := make([]transactionDoc, 0, len(subset))
	for _, tx := range subset {
		docs = append(docs, s.toDoc(tx))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.decodeTransaction(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := fromDraft(uuid.NewString(), draft)
	s.transactions[tx.ID] = tx
	writeJSON(w, http.StatusCreated, s.toDoc(tx))
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	draft, ok := s.decodeTransaction(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Transaction not found")
		return
	}
	tx := fromDraft(id, draft)
	s.transactions[id] = tx
	writeJSON(w, http.StatusOK, s.toDoc(tx))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Transaction not found")
		return
	}
	delete(s.transactions, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction removed"})
}

func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (domain.TransactionDraft, bool) {
	var in transactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return domain.TransactionDraft{}, false
	}
	amount, err := domain.AmountFromDecimal(in.Amount, s.currency.Scale)
	if err != nil {
		writeValidation(w, err)
		return domain.TransactionDraft{}, false
	}
	var date domain.Date
	if in.Date != "" {
		if date, err = domain.ParseDate(in.Date); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid date")
			return domain.TransactionDraft{}, false
		}
	}
	draft, err := domain.TransactionDraft{
		Type:        domain.EntryType(in.Type),
		Amount:      amount,
		CategoryID:  in.Category,
		Date:        date,
		Description: in.Description,
	}.Normalize()
	if err != nil {
		writeValidation(w, err)
		return domain.TransactionDraft{}, false
	}
	return draft, true
}

func fromDraft(id string, d domain.TransactionDraft) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		Type:        d.Type,
		Amount:      d.Amount,
		CategoryID:  d.CategoryID,
		Date:        d.Date,
		Description: d.Description,
	}
}

// ============================================================
// Responses
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeValidation(w http.ResponseWriter, err error) {
	var verr *domain.ErrValidation
	if errors.As(err, &verr) {
		writeMessage(w, http.StatusBadRequest, verr.Error())
		return
	}
	writeMessage(w, http.StatusBadRequest, err.Error())
}
