package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	serviceDay = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	planTime   = time.Date(2025, 3, 2, 18, 0, 0, 0, time.UTC)
)

func at(hour, minute int) time.Time {
	return serviceDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func stopSpecs(n int) []domain.StopSpec {
	specs := make([]domain.StopSpec, n)
	for i := range specs {
		specs[i] = domain.StopSpec{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          domain.StopTypePickup,
			Position:      i + 1,
			Address:       domain.Address{Line1: "Carrer de Mallorca 401", City: "Barcelona", PostalCode: "08013"},
			Guardian:      domain.GuardianContact{Name: "Guardian", Phone: "+34 600 000 000"},
			EstimatedTime: at(7, 30+10*i),
		}
	}
	return specs
}

func newPlannedRoute(t *testing.T, stops int) *domain.Route {
	t.Helper()
	driver := uuid.New()
	vehicle := uuid.New()
	route, err := domain.NewRoute(domain.RoutePlan{
		Name:           "Morning run",
		ServiceDate:    serviceDay,
		DriverID:       &driver,
		VehicleID:      &vehicle,
		EstimatedStart: at(7, 15),
		EstimatedEnd:   at(9, 0),
		Stops:          stopSpecs(stops),
	}, planTime)
	require.NoError(t, err)
	route.ClearDomainEvents()
	return route
}

func newRouteInStatus(t *testing.T, stops int, status domain.Status) *domain.Route {
	t.Helper()
	route := newPlannedRoute(t, stops)
	switch status {
	case domain.StatusPlanned:
	case domain.StatusDriverMissing:
		require.NoError(t, route.AssignDriver(nil, at(6, 0)))
	case domain.StatusInProgress:
		require.NoError(t, route.ChangeStatus(domain.StatusInProgress, at(7, 10)))
	case domain.StatusCompleted, domain.StatusCancelled:
		require.NoError(t, route.ChangeStatus(status, at(9, 5)))
	}
	route.ClearDomainEvents()
	return route
}

func positions(route *domain.Route) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for _, s := range route.Stops() {
		out[s.ID()] = s.Position()
	}
	return out
}
