package queries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
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

type stubDirectory struct {
	driver *fleetDomain.Driver
}

func (s stubDirectory) GetDriver(_ context.Context, id uuid.UUID) (*fleetDomain.Driver, error) {
	if s.driver != nil && s.driver.ID == id {
		return s.driver, nil
	}
	return nil, fleetDomain.ErrDriverNotFound
}

func (s stubDirectory) GetVehicle(context.Context, uuid.UUID) (*fleetDomain.Vehicle, error) {
	return nil, fleetDomain.ErrVehicleNotFound
}

// inProgressRoute has three stops estimated at 07:30, 07:40 and 07:50.
// The first was executed at 07:45, the second cancelled, the third is pending.
func inProgressRoute(t *testing.T, driverID uuid.UUID) *domain.Route {
	t.Helper()
	specs := make([]domain.StopSpec, 3)
	for i := range specs {
		specs[i] = domain.StopSpec{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          domain.StopTypePickup,
			Position:      i + 1,
			Address:       domain.Address{Line1: "Carrer de Mallorca 401", City: "Barcelona"},
			EstimatedTime: at(7, 30+10*i),
		}
	}
	vehicle := uuid.New()
	route, err := domain.NewRoute(domain.RoutePlan{
		Name:           "Morning run",
		ServiceDate:    serviceDay,
		DriverID:       &driverID,
		VehicleID:      &vehicle,
		EstimatedStart: at(7, 15),
		EstimatedEnd:   at(9, 0),
		Stops:          specs,
	}, at(6, 0))
	require.NoError(t, err)
	require.NoError(t, route.ChangeStatus(domain.StatusInProgress, at(7, 10)))

	stops := route.Stops()
	actual := at(7, 45)
	_, err = route.RecordStopOutcome(stops[0].ID(), domain.OutcomeCompleted, uuid.New(), "", &actual, at(7, 45))
	require.NoError(t, err)
	_, err = route.CancelStop(stops[1].ID(), "sick", uuid.New(), at(7, 20))
	require.NoError(t, err)
	_, err = route.FlagStopForReview(stops[1].ID(), uuid.New(), "", at(7, 25))
	require.NoError(t, err)
	route.ClearDomainEvents()
	return route
}

func TestGetRouteHandler_Handle(t *testing.T) {
	driver := &fleetDomain.Driver{ID: uuid.New(), Name: "Ana Silva", Active: true}
	route := inProgressRoute(t, driver.ID)
	repo := new(mockRouteRepo)
	repo.On("FindByID", mock.Anything, route.ID()).Return(route, nil)
	presenter := NewPresenter(stubDirectory{driver: driver}, 0, func() time.Time { return at(8, 0) }, nil)

	dto, err := NewGetRouteHandler(repo, presenter).Handle(context.Background(), GetRouteQuery{RouteID: route.ID()})

	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", dto.Status)
	assert.Equal(t, "2025-03-03", dto.ServiceDate)
	assert.Equal(t, "Ana Silva", dto.DriverName)
	assert.Empty(t, dto.VehicleRegistration)
	require.Len(t, dto.Stops, 3)

	assert.Equal(t, "EXECUTED", dto.Stops[0].State)
	assert.Equal(t, "COMPLETED", dto.Stops[0].Outcome)
	require.NotNil(t, dto.Stops[0].Delay)
	assert.Equal(t, "RETROSPECTIVE", dto.Stops[0].Delay.Type)
	assert.Equal(t, 15, dto.Stops[0].Delay.Minutes)

	assert.Equal(t, "CANCELLED", dto.Stops[1].State)
	assert.Equal(t, "sick", dto.Stops[1].CancellationReason)
	assert.Nil(t, dto.Stops[1].Delay)
	assert.True(t, dto.Stops[1].NeedsReview)

	require.NotNil(t, dto.Stops[2].Delay)
	assert.Equal(t, "PLANNED_TIME_EXCEEDED", dto.Stops[2].Delay.Type)
	assert.Equal(t, 10, dto.Stops[2].Delay.Minutes)

	assert.Equal(t, 2, dto.Delay.DelayedStopCount)
	assert.Equal(t, 15, dto.Delay.MaxDelayMinutes)
	assert.Len(t, dto.ReviewFlags, 1)
	assert.Equal(t, []string{"record_outcome", "change_status", "cancel_stop", "clear_review_flag"}, dto.Capabilities)
	assert.Equal(t, []string{"COMPLETED", "CANCELLED"}, dto.NextStatuses)
}

func TestGetRouteHandler_NotFound(t *testing.T) {
	repo := new(mockRouteRepo)
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, domain.ErrRouteNotFound)

	_, err := NewGetRouteHandler(repo, NewPresenter(nil, 0, nil, nil)).Handle(context.Background(), GetRouteQuery{RouteID: id})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetDelaySummaryHandler_Handle(t *testing.T) {
	route := inProgressRoute(t, uuid.New())
	repo := new(mockRouteRepo)
	repo.On("FindByID", mock.Anything, route.ID()).Return(route, nil)
	presenter := NewPresenter(nil, 12*time.Minute, func() time.Time { return at(8, 0) }, nil)
	handler := NewGetDelaySummaryHandler(repo, presenter)

	summary, err := handler.Handle(context.Background(), GetDelaySummaryQuery{RouteID: route.ID()})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DelayedStopCount)
	assert.Equal(t, 15, summary.MaxDelayMinutes)

	later := at(8, 30)
	summary, err = handler.Handle(context.Background(), GetDelaySummaryQuery{RouteID: route.ID(), At: &later})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DelayedStopCount)
	assert.Equal(t, 40, summary.MaxDelayMinutes)
}

func TestListRoutesByDateHandler_Handle(t *testing.T) {
	route := inProgressRoute(t, uuid.New())
	repo := new(mockRouteRepo)
	repo.On("FindByDate", mock.Anything, serviceDay).Return([]*domain.Route{route}, nil)
	presenter := NewPresenter(nil, 0, func() time.Time { return at(8, 0) }, nil)

	rows, err := NewListRoutesByDateHandler(repo, presenter).Handle(context.Background(), ListRoutesByDateQuery{Date: serviceDay})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].StopCount)
	assert.Equal(t, 1, rows[0].ExecutedStops)
	assert.Equal(t, 1, rows[0].CancelledStops)
	assert.Equal(t, 1, rows[0].OpenFlags)
}

func TestListReviewFlagsHandler_Handle(t *testing.T) {
	route := inProgressRoute(t, uuid.New())
	flag := route.ReviewFlags()[0]
	require.NoError(t, route.ClearReviewFlag(flag.ID(), uuid.New(), at(8, 0)))
	repo := new(mockRouteRepo)
	repo.On("FindByID", mock.Anything, route.ID()).Return(route, nil)
	handler := NewListReviewFlagsHandler(repo)

	open, err := handler.Handle(context.Background(), ListReviewFlagsQuery{RouteID: route.ID()})
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := handler.Handle(context.Background(), ListReviewFlagsQuery{RouteID: route.ID(), IncludeCleared: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Open)
	assert.NotNil(t, all[0].ClearedAt)
}
