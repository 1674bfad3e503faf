package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/locking"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

var serviceDay = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return serviceDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type mockRouteRepo struct {
	mock.Mock
}

func (m *mockRouteRepo) Save(ctx context.Context, r *domain.Route) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRouteRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Route, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Route), args.Error(1)
}

func (m *mockRouteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRouteRepo) FindByStopID(ctx context.Context, stopID uuid.UUID) (*domain.Route, error) {
	args := m.Called(ctx, stopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Route), args.Error(1)
}

func (m *mockRouteRepo) FindByDate(ctx context.Context, date time.Time) ([]*domain.Route, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Route), args.Error(1)
}

func (m *mockRouteRepo) RouteIDForStop(ctx context.Context, stopID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, stopID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type mockSeriesRepo struct {
	mock.Mock
}

func (m *mockSeriesRepo) Save(ctx context.Context, s *domain.Series) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSeriesRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Series, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Series), args.Error(1)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return ctx, args.Error(0)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// expectCommit prepares the unit of work for a successful command.
func (m *mockUnitOfWork) expectCommit() {
	m.On("Begin", mock.Anything).Return(nil)
	m.On("Commit", mock.Anything).Return(nil)
}

// expectRollback prepares the unit of work for a failing command.
func (m *mockUnitOfWork) expectRollback() {
	m.On("Begin", mock.Anything).Return(nil)
	m.On("Rollback", mock.Anything).Return(nil)
}

type stubDirectory struct {
	drivers  map[uuid.UUID]*fleetDomain.Driver
	vehicles map[uuid.UUID]*fleetDomain.Vehicle
}

func (s stubDirectory) GetDriver(_ context.Context, id uuid.UUID) (*fleetDomain.Driver, error) {
	if d, ok := s.drivers[id]; ok {
		return d, nil
	}
	return nil, fleetDomain.ErrDriverNotFound
}

func (s stubDirectory) GetVehicle(_ context.Context, id uuid.UUID) (*fleetDomain.Vehicle, error) {
	if v, ok := s.vehicles[id]; ok {
		return v, nil
	}
	return nil, fleetDomain.ErrVehicleNotFound
}

type fixture struct {
	routes  *mockRouteRepo
	uow     *mockUnitOfWork
	outbox  *outbox.InMemoryRepository
	locker  *locking.InMemoryLocker
	metrics *observability.InMemoryMetrics
	writer  *RouteWriter
	present *queries.Presenter
	dir     stubDirectory
	actor   uuid.UUID
}

func newFixture(opts ...RouteWriterOption) *fixture {
	f := &fixture{
		routes:  new(mockRouteRepo),
		uow:     new(mockUnitOfWork),
		outbox:  outbox.NewInMemoryRepository(),
		locker:  locking.NewInMemoryLocker(),
		metrics: observability.NewInMemoryMetrics(),
		dir: stubDirectory{
			drivers:  map[uuid.UUID]*fleetDomain.Driver{},
			vehicles: map[uuid.UUID]*fleetDomain.Vehicle{},
		},
		actor: uuid.New(),
	}
	clock := func() time.Time { return at(7, 0) }
	opts = append([]RouteWriterOption{WithClock(clock), WithMetrics(f.metrics)}, opts...)
	f.writer = NewRouteWriter(f.routes, f.outbox, f.uow, f.locker, opts...)
	f.present = queries.NewPresenter(f.dir, 0, clock, nil)
	return f
}

func (f *fixture) addDriver(active bool) uuid.UUID {
	d := &fleetDomain.Driver{ID: uuid.New(), Name: "Driver", Active: active}
	f.dir.drivers[d.ID] = d
	return d.ID
}

func (f *fixture) addVehicle(active bool) uuid.UUID {
	v := &fleetDomain.Vehicle{ID: uuid.New(), Registration: "1234-ABC", Capacity: 8, Active: active}
	f.dir.vehicles[v.ID] = v
	return v.ID
}

// load makes the repository return route for its id and accept saves.
func (f *fixture) load(route *domain.Route) {
	f.routes.On("FindByID", mock.Anything, route.ID()).Return(route, nil)
	f.routes.On("Save", mock.Anything, route).Return(nil).Maybe()
	for _, s := range route.Stops() {
		f.routes.On("RouteIDForStop", mock.Anything, s.ID()).Return(route.ID(), nil).Maybe()
	}
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, msg := range f.outbox.All() {
		out = append(out, msg.RoutingKey)
	}
	return out
}

func stopSpecs(n int) []domain.StopSpec {
	specs := make([]domain.StopSpec, n)
	for i := range specs {
		specs[i] = domain.StopSpec{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          domain.StopTypePickup,
			Position:      i + 1,
			Address:       domain.Address{Line1: "Calle de Alcalá 20", City: "Madrid"},
			EstimatedTime: at(7, 30+10*i),
		}
	}
	return specs
}

func plannedRoute(t *testing.T, stops int) *domain.Route {
	t.Helper()
	driver := uuid.New()
	route, err := domain.NewRoute(domain.RoutePlan{
		Name:           "Morning run",
		ServiceDate:    serviceDay,
		DriverID:       &driver,
		EstimatedStart: at(7, 15),
		EstimatedEnd:   at(9, 0),
		Stops:          stopSpecs(stops),
	}, at(6, 0))
	require.NoError(t, err)
	route.ClearDomainEvents()
	return route
}

func inProgressRoute(t *testing.T, stops int) *domain.Route {
	t.Helper()
	route := plannedRoute(t, stops)
	require.NoError(t, route.ChangeStatus(domain.StatusInProgress, at(7, 10)))
	route.ClearDomainEvents()
	return route
}

func intPtr(v int) *int { return &v }
