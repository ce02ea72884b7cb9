package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrSuperseded is returned by View.Apply when a newer filter was issued
// while the resolve was outstanding. The response was discarded.
var ErrSuperseded = errors.New("resolution superseded by a newer filter")

// Resolver resolves a filter into a snapshot.
type Resolver interface {
	Resolve(ctx context.Context, f domain.Filter) (*Snapshot, error)
}

// ViewState is the most recently applied resolution and its aggregate.
type ViewState struct {
	Filter    domain.Filter
	Snapshot  *Snapshot
	Aggregate domain.AggregateResult
	// Stale is set after a write settled and until the refresh lands.
	Stale     bool
	Seq       uint64
	AppliedAt time.Time
}

// View holds the presentation's current filter and the aggregate derived
// from its latest resolution. Responses are applied last-filter-wins: each
// Apply is tagged and only the latest tag may replace the state.
type View struct {
	resolver Resolver
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	issued  uint64
	latest  domain.Filter
	hasCur  bool
	current ViewState
}

// NewView creates an empty view.
func NewView(resolver Resolver, metrics *observability.Metrics, logger *zap.Logger) *View {
	return &View{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Apply issues f as the current filter and resolves it. On failure the prior
// state is kept. If a newer Apply was issued meanwhile the response is
// dropped and ErrSuperseded is returned along with the state in place.
func (v *View) Apply(ctx context.Context, f domain.Filter) (ViewState, error) {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	v.latest = f
	v.mu.Unlock()
	return v.resolve(ctx, f, seq)
}

// Refresh re-resolves the latest issued filter. The filter is read and the
// new tag issued under one lock, so a concurrent Apply either lands first and
// is the filter refreshed, or lands after and supersedes the refresh.
func (v *View) Refresh(ctx context.Context) (ViewState, error) {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	f := v.latest
	v.mu.Unlock()
	return v.resolve(ctx, f, seq)
}

func (v *View) resolve(ctx context.Context, f domain.Filter, seq uint64) (ViewState, error) {
	ctx, span := tracer.Start(ctx, "View.Apply")
	defer span.End()
	span.SetAttributes(attribute.Int64("view.seq", int64(seq)))

	snap, err := v.resolver.Resolve(ctx, f)

	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.issued {
		v.metrics.IncrDiscarded()
		v.logger.Debug("discarded superseded resolution",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", v.issued),
			zap.String("filter", f.Key()),
		)
		return v.current, ErrSuperseded
	}
	if err != nil {
		return v.current, err
	}

	v.current = ViewState{
		Filter:    f,
		Snapshot:  snap,
		Aggregate: snap.Aggregate(),
		Seq:       seq,
		AppliedAt: time.Now(),
	}
	v.hasCur = true
	return v.current, nil
}

// MarkStale flags the current state as out of date.
func (v *View) MarkStale() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hasCur {
		v.current.Stale = true
	}
}

// Current returns the last applied state. ok is false until the first
// successful Apply.
func (v *View) Current() (ViewState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.hasCur
}

// Filter returns the latest issued filter.
func (v *View) Filter() domain.Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest
}
