package subscribers_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/subscribers"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/infrastructure/persistence"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/locking"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

var serviceDay = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

type harness struct {
	routes  *persistence.RouteRepository
	outbox  *outbox.SQLRepository
	bus     *eventbus.InProcessEventBus
	metrics *observability.InMemoryMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "convoy.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))

	h := &harness{
		routes:  persistence.NewRouteRepository(conn),
		outbox:  outbox.NewSQLRepository(conn),
		bus:     eventbus.NewInProcessEventBus(nil),
		metrics: observability.NewInMemoryMetrics(),
	}
	writer := commands.NewRouteWriter(h.routes, h.outbox, database.NewUnitOfWork(conn), locking.NewInMemoryLocker(),
		commands.WithMetrics(h.metrics))
	h.bus.RegisterConsumer(subscribers.NewAbsenceSubscriber(
		commands.NewPropagateAbsenceCancellationHandler(writer), nil, h.metrics))
	return h
}

// cancelledRoute stores a planned route whose only stop was cancelled by an absence.
func (h *harness) cancelledRoute(t *testing.T) *domain.Route {
	t.Helper()
	driver := uuid.New()
	route, err := domain.NewRoute(domain.RoutePlan{
		Name:           "Morning run",
		ServiceDate:    serviceDay,
		DriverID:       &driver,
		EstimatedStart: serviceDay.Add(7 * time.Hour),
		EstimatedEnd:   serviceDay.Add(9 * time.Hour),
		Stops: []domain.StopSpec{{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          domain.StopTypePickup,
			Position:      1,
			Address:       domain.Address{Line1: "Rua Augusta 100", City: "Lisboa"},
			EstimatedTime: serviceDay.Add(7*time.Hour + 30*time.Minute),
		}},
	}, serviceDay)
	require.NoError(t, err)
	_, err = route.CancelStop(route.Stops()[0].ID(), "absence", uuid.New(), serviceDay.Add(6*time.Hour))
	require.NoError(t, err)
	route.ClearDomainEvents()
	require.NoError(t, h.routes.Save(context.Background(), route))
	return route
}

func envelope(t *testing.T, payload any) *eventbus.ConsumedEvent {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &eventbus.ConsumedEvent{
		EventID:       uuid.New(),
		AggregateID:   uuid.New(),
		AggregateType: "Absence",
		RoutingKey:    domain.RoutingKeyAbsenceCancelled,
		OccurredAt:    serviceDay,
		Payload:       body,
	}
}

func TestAbsenceSubscriber_FlagsCancelledStops(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	route := h.cancelledRoute(t)
	stop := route.Stops()[0]

	event := envelope(t, domain.AbsenceCancelled{
		AbsenceID:          uuid.New(),
		ChildID:            stop.ChildID(),
		CancelledBy:        uuid.New(),
		CancelledAt:        serviceDay.Add(6 * time.Hour),
		AffectedRouteStops: []domain.StopRef{{RouteID: route.ID(), StopID: stop.ID()}},
	})

	require.NoError(t, h.bus.PublishConsumedEvent(ctx, event))
	// Redelivery does not raise a second flag.
	require.NoError(t, h.bus.PublishConsumedEvent(ctx, event))

	stored, err := h.routes.FindByID(ctx, route.ID())
	require.NoError(t, err)
	require.Len(t, stored.ReviewFlags(), 1)
	flag := stored.ReviewFlags()[0]
	assert.True(t, flag.IsOpen())
	assert.Equal(t, stop.ID(), flag.StopID())
	assert.True(t, stored.Stops()[0].IsCancelled())

	pending, err := h.outbox.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.RoutingKeyStopFlagged, pending[0].RoutingKey)
	assert.Equal(t, int64(2), h.metrics.GetCounter(observability.MetricEventsConsumed,
		observability.T("routing_key", domain.RoutingKeyAbsenceCancelled)))
}

func TestAbsenceSubscriber_MalformedPayloadIsPermanent(t *testing.T) {
	h := newHarness(t)
	event := envelope(t, nil)
	event.Payload = json.RawMessage(`{"absence_id": 7}`)

	consumer := subscribers.NewAbsenceSubscriber(nil, nil, nil)
	err := consumer.Handle(context.Background(), event)

	assert.True(t, eventbus.IsPermanent(err))
	// The bus discards permanent failures instead of retrying them.
	assert.NoError(t, h.bus.PublishConsumedEvent(context.Background(), event))
}

func TestAbsenceSubscriber_MissingActorIsPermanent(t *testing.T) {
	h := newHarness(t)
	route := h.cancelledRoute(t)

	event := envelope(t, domain.AbsenceCancelled{
		AbsenceID:          uuid.New(),
		AffectedRouteStops: []domain.StopRef{{RouteID: route.ID(), StopID: route.Stops()[0].ID()}},
	})
	consumer := subscribers.NewAbsenceSubscriber(
		commands.NewPropagateAbsenceCancellationHandler(commands.NewRouteWriter(h.routes, h.outbox,
			nopUnitOfWork{}, locking.NewInMemoryLocker())), nil, nil)

	err := consumer.Handle(context.Background(), event)

	assert.True(t, eventbus.IsPermanent(err))
	assert.ErrorIs(t, err, domain.ErrActorRequired)
}

type nopUnitOfWork struct{}

func (nopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (nopUnitOfWork) Commit(context.Context) error                       { return nil }
func (nopUnitOfWork) Rollback(context.Context) error                     { return nil }

func TestAbsenceSubscriber_EventTypes(t *testing.T) {
	consumer := subscribers.NewAbsenceSubscriber(nil, nil, nil)
	assert.Equal(t, []string{"absences.absence.cancelled"}, consumer.EventTypes())
}
