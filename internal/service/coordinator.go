package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EntityKind names what a mutation writes.
type EntityKind string

const (
	KindCategory    EntityKind = "category"
	KindTransaction EntityKind = "transaction"
)

// ParseEntityKind parses a kind from a path segment.
func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case KindCategory, KindTransaction:
		return k, nil
	}
	return "", &domain.ErrValidation{Field: "kind", Message: "must be category or transaction"}
}

// Operation is the write performed.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// newEntityID stands in for the ID of an entity that does not exist yet.
const newEntityID = "new"

// Mutation outcomes, used in metrics and settled status.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Mutation is one write request. Exactly one payload matching Kind is set
// for creates and updates; deletes carry none.
type Mutation struct {
	Kind        EntityKind
	ID          string
	Op          Operation
	Category    *domain.CategoryDraft
	Transaction *domain.TransactionDraft
}

// Key identifies the entity being written. Creates share "kind:new".
func (m Mutation) Key() string {
	return mutationKey(m.Kind, m.ID)
}

func mutationKey(kind EntityKind, id string) string {
	if id == "" {
		id = newEntityID
	}
	return string(kind) + ":" + id
}

func (m Mutation) validate() error {
	if _, err := ParseEntityKind(string(m.Kind)); err != nil {
		return err
	}
	switch m.Op {
	case OpCreate:
		if m.ID != "" {
			return &domain.ErrValidation{Field: "id", Message: "must be empty on create"}
		}
	case OpUpdate, OpDelete:
		if m.ID == "" {
			return &domain.ErrValidation{Field: "id", Message: "required"}
		}
	default:
		return &domain.ErrValidation{Field: "op", Message: "must be create, update or delete"}
	}
	if m.Op == OpDelete {
		return nil
	}
	switch {
	case m.Kind == KindCategory && m.Category == nil:
		return &domain.ErrValidation{Field: "category", Message: "payload required"}
	case m.Kind == KindTransaction && m.Transaction == nil:
		return &domain.ErrValidation{Field: "transaction", Message: "payload required"}
	}
	return nil
}

// MutationState is the coordinator's per-key state.
type MutationState string

const (
	StateIdle     MutationState = "idle"
	StateInFlight MutationState = "in_flight"
	StateSettled  MutationState = "settled"
)

// MutationStatus describes a key's state. Outcome and Error are set once
// settled.
type MutationStatus struct {
	Key       string        `json:"key"`
	State     MutationState `json:"state"`
	Op        Operation     `json:"op,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Result carries the written entity and the refreshed view. A failed
// refresh does not fail the write; it is reported in RefreshErr.
type Result struct {
	Category    *domain.Category
	Transaction *domain.Transaction
	View        *ViewState
	RefreshErr  error
}

// Coordinator serialises writes per entity. A second submit for a key that is
// in flight is rejected with *domain.ErrBusy. After a successful write the
// stores have dropped the affected resolutions and the view is re-resolved
// before Submit returns.
type Coordinator struct {
	categories   *CategoryStore
	transactions *TransactionStore
	view         *View
	settled      port.Cache[MutationStatus]
	metrics      *observability.Metrics
	logger       *zap.Logger

	mu       sync.Mutex
	inFlight map[string]MutationStatus
}

// NewCoordinator creates the mutation coordinator. settled keeps the last
// outcome per key for Status.
func NewCoordinator(
	categories *CategoryStore,
	transactions *TransactionStore,
	view *View,
	settled port.Cache[MutationStatus],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		categories:   categories,
		transactions: transactions,
		view:         view,
		settled:      settled,
		metrics:      metrics,
		logger:       logger,
		inFlight:     make(map[string]MutationStatus),
	}
}

// Submit runs m unless a write for the same key is in flight.
func (c *Coordinator) Submit(ctx context.Context, m Mutation) (*Result, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Submit")
	defer span.End()
	key := m.Key()
	span.SetAttributes(
		attribute.String("mutation.key", key),
		attribute.String("mutation.op", string(m.Op)),
	)

	if !c.acquire(key, m.Op) {
		c.metrics.IncrBusy(string(m.Kind))
		c.logger.Info("mutation rejected: busy", zap.String("key", key))
		return nil, &domain.ErrBusy{Key: key}
	}

	res, err := c.execute(ctx, m)
	outcome := outcomeOf(err)
	c.metrics.IncrMutation(string(m.Kind), string(m.Op), outcome)

	switch {
	case err == nil:
		// Nothing to refresh until a filter has been applied.
		if _, ok := c.view.Current(); !ok {
			break
		}
		c.view.MarkStale()
		state, rerr := c.view.Refresh(ctx)
		res.View = &state
		if rerr != nil && !errors.Is(rerr, ErrSuperseded) {
			res.RefreshErr = rerr
			c.logger.Warn("view refresh after write failed", zap.String("key", key), zap.Error(rerr))
		}
	case domain.IsStale(err):
		// The stores dropped what they knew about the entity; the next
		// read of the view re-resolves.
		c.view.MarkStale()
	}

	c.release(key, m, res, outcome, err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

// Status reports the state of an entity key.
func (c *Coordinator) Status(kind EntityKind, id string) MutationStatus {
	key := mutationKey(kind, id)

	c.mu.Lock()
	st, busy := c.inFlight[key]
	c.mu.Unlock()
	if busy {
		return st
	}
	if st, ok := c.settled.Get(key); ok {
		return st
	}
	return MutationStatus{Key: key, State: StateIdle}
}

func (c *Coordinator) acquire(key string, op Operation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return false
	}
	c.inFlight[key] = MutationStatus{Key: key, State: StateInFlight, Op: op, UpdatedAt: time.Now()}
	return true
}

func (c *Coordinator) release(key string, m Mutation, res *Result, outcome string, err error) {
	st := MutationStatus{Key: key, State: StateSettled, Op: m.Op, Outcome: outcome, UpdatedAt: time.Now()}
	if err != nil {
		st.Error = err.Error()
	}
	c.settled.Set(key, st)
	if id := createdID(res); m.Op == OpCreate && id != "" {
		byID := st
		byID.Key = mutationKey(m.Kind, id)
		c.settled.Set(byID.Key, byID)
	}

	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()
}

func (c *Coordinator) execute(ctx context.Context, m Mutation) (*Result, error) {
	res := &Result{}
	var err error
	switch m.Kind {
	case KindCategory:
		switch m.Op {
		case OpCreate:
			res.Category, err = c.categories.Create(ctx, *m.Category)
		case OpUpdate:
			res.Category, err = c.categories.Update(ctx, m.ID, *m.Category)
		case OpDelete:
			err = c.categories.Delete(ctx, m.ID)
		}
	case KindTransaction:
		switch m.Op {
		case OpCreate:
			res.Transaction, err = c.transactions.Create(ctx, *m.Transaction)
		case OpUpdate:
			res.Transaction, err = c.transactions.Update(ctx, m.ID, *m.Transaction)
		case OpDelete:
			err = c.transactions.Delete(ctx, m.ID)
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func createdID(res *Result) string {
	switch {
	case res == nil:
		return ""
	case res.Category != nil:
		return res.Category.ID
	case res.Transaction != nil:
		return res.Transaction.ID
	}
	return ""
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case domain.IsDomain(err):
		return OutcomeRejected
	}
	return OutcomeFailed
}
