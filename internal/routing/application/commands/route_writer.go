package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	sharedApplication "github.com/felixgeelhaar/convoy/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/locking"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// DefaultLockTTL bounds how long one command may hold a route.
const DefaultLockTTL = 10 * time.Second

// Options tune command behaviour.
type Options struct {
	// AutoCompleteRoutes completes an in-progress route once every stop is terminal.
	AutoCompleteRoutes bool
	LockTTL            time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{AutoCompleteRoutes: true, LockTTL: DefaultLockTTL}
}

// RouteWriter runs a mutation against one route: per-route lock, unit of
// work, optional version check, save and outbox write. Every route command
// goes through it.
type RouteWriter struct {
	routes  domain.RouteRepository
	outbox  outbox.Repository
	uow     sharedApplication.UnitOfWork
	locker  locking.Locker
	opts    Options
	clock   func() time.Time
	logger  *slog.Logger
	metrics observability.Metrics
}

// RouteWriterOption configures a RouteWriter.
type RouteWriterOption func(*RouteWriter)

func WithOptions(opts Options) RouteWriterOption {
	return func(w *RouteWriter) { w.opts = opts }
}

func WithClock(clock func() time.Time) RouteWriterOption {
	return func(w *RouteWriter) { w.clock = clock }
}

func WithLogger(logger *slog.Logger) RouteWriterOption {
	return func(w *RouteWriter) { w.logger = logger }
}

func WithMetrics(metrics observability.Metrics) RouteWriterOption {
	return func(w *RouteWriter) { w.metrics = metrics }
}

// NewRouteWriter creates a RouteWriter.
func NewRouteWriter(
	routes domain.RouteRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	locker locking.Locker,
	opts ...RouteWriterOption,
) *RouteWriter {
	w := &RouteWriter{
		routes:  routes,
		outbox:  outboxRepo,
		uow:     uow,
		locker:  locker,
		opts:    DefaultOptions(),
		clock:   time.Now,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.opts.LockTTL <= 0 {
		w.opts.LockTTL = DefaultLockTTL
	}
	return w
}

// Routes exposes the repository to handlers that need lookups outside a mutation.
func (w *RouteWriter) Routes() domain.RouteRepository { return w.routes }

// Options returns the effective options.
func (w *RouteWriter) Options() Options { return w.opts }

// Now is the command clock.
func (w *RouteWriter) Now() time.Time { return w.clock().UTC() }

// mutation is the body of a command. It runs with the route loaded inside
// the unit of work and must leave the route unchanged when it fails.
type mutation func(ctx context.Context, route *domain.Route, now time.Time) error

// store persists the route after a successful mutation.
type store func(ctx context.Context, route *domain.Route) error

type target struct {
	command         string
	routeID         uuid.UUID
	actor           uuid.UUID
	expectedVersion *int
}

// Update applies fn and saves the route.
func (w *RouteWriter) Update(ctx context.Context, t target, fn mutation) (*domain.Route, error) {
	return w.run(ctx, t, fn, w.routes.Save)
}

// Remove applies fn and deletes the route.
func (w *RouteWriter) Remove(ctx context.Context, t target, fn mutation) (*domain.Route, error) {
	return w.run(ctx, t, fn, func(ctx context.Context, route *domain.Route) error {
		return w.routes.Delete(ctx, route.ID())
	})
}

// Create saves a brand new route. No lock is needed because nobody else can
// reference it yet.
func (w *RouteWriter) Create(ctx context.Context, command string, actor uuid.UUID, route *domain.Route) error {
	if actor == uuid.Nil {
		return domain.ErrActorRequired
	}
	err := sharedApplication.WithUnitOfWork(ctx, w.uow, func(txCtx context.Context) error {
		events := route.PullDomainEvents()
		if err := w.routes.Save(txCtx, route); err != nil {
			return err
		}
		return w.enqueue(txCtx, actor, events)
	})
	w.record(command, err)
	return err
}

func (w *RouteWriter) run(ctx context.Context, t target, fn mutation, persist store) (*domain.Route, error) {
	if t.actor == uuid.Nil {
		return nil, domain.ErrActorRequired
	}
	ctx = observability.WithRouteID(ctx, t.routeID.String())
	ctx = observability.WithOperatorID(ctx, t.actor.String())
	ctx = observability.WithOperation(ctx, t.command)

	var route *domain.Route
	err := locking.WithLock(ctx, w.locker, locking.RouteKey(t.routeID), w.opts.LockTTL, func(ctx context.Context) error {
		return sharedApplication.WithUnitOfWork(ctx, w.uow, func(txCtx context.Context) error {
			loaded, err := w.routes.FindByID(txCtx, t.routeID)
			if err != nil {
				return err
			}
			if t.expectedVersion != nil && *t.expectedVersion != loaded.Version() {
				return fmt.Errorf("%w: expected version %d, found %d",
					domain.ErrConcurrentModification, *t.expectedVersion, loaded.Version())
			}
			if err := fn(txCtx, loaded, w.Now()); err != nil {
				return err
			}

			events := loaded.PullDomainEvents()
			if len(events) == 0 {
				route = loaded
				return nil
			}
			if err := persist(txCtx, loaded); err != nil {
				return err
			}
			if err := w.enqueue(txCtx, t.actor, events); err != nil {
				return err
			}
			route = loaded
			return nil
		})
	}, locking.OnReleaseFailure(func(releaseErr error) {
		w.metrics.Counter(observability.MetricLockLost, 1, observability.T("command", t.command))
		w.logger.WarnContext(ctx, "route lock expired before release; change was committed",
			"command", t.command, "error", releaseErr)
	}))
	if errors.Is(err, locking.ErrLockBusy) {
		w.metrics.Counter(observability.MetricLockContention, 1, observability.T("command", t.command))
		err = fmt.Errorf("%w: %w", domain.ErrConcurrentModification, err)
	}
	w.record(t.command, err)
	if err != nil {
		w.logger.DebugContext(ctx, "route command failed", "command", t.command, "error", err)
		return nil, err
	}
	return route, nil
}

func (w *RouteWriter) enqueue(ctx context.Context, actor uuid.UUID, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, actor))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	return w.outbox.SaveBatch(ctx, msgs)
}

func (w *RouteWriter) record(command string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConcurrentModification):
		outcome = "conflict"
		w.metrics.Counter(observability.MetricVersionConflict, 1, observability.T("command", command))
	case errors.Is(err, domain.ErrRouteExists):
		outcome = "exists"
	case errors.Is(err, domain.ErrPreconditionFailed):
		outcome = "precondition_failed"
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	w.metrics.Counter(observability.MetricRouteCommands, 1,
		observability.T("command", command), observability.T("outcome", outcome))
}

// routeForStop resolves the owning route of a stop without locking.
func (w *RouteWriter) routeForStop(ctx context.Context, stopID uuid.UUID) (uuid.UUID, error) {
	return w.routes.RouteIDForStop(ctx, stopID)
}
