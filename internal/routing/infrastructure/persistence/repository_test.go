package persistence_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/infrastructure/persistence"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/migrations"
)

var serviceDay = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return serviceDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// forEachDriver runs fn against SQLite and, when TEST_DATABASE_URL is set, PostgreSQL.
func forEachDriver(t *testing.T, fn func(t *testing.T, conn database.Connection)) {
	t.Run("sqlite", func(t *testing.T) {
		conn, err := database.NewConnection(context.Background(), database.Config{
			Driver:     database.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "convoy.db"),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		require.NoError(t, migrations.Run(context.Background(), conn))
		fn(t, conn)
	})

	t.Run("postgres", func(t *testing.T) {
		url := os.Getenv("TEST_DATABASE_URL")
		if url == "" {
			t.Skip("TEST_DATABASE_URL not set")
		}
		conn, err := database.NewConnection(context.Background(), database.Config{
			Driver:   database.DriverPostgres,
			URL:      url,
			MaxConns: 4,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		require.NoError(t, migrations.Run(context.Background(), conn))
		fn(t, conn)
	})
}

func newRoute(t *testing.T, stops int) *domain.Route {
	t.Helper()
	driver, vehicle := uuid.New(), uuid.New()
	specs := make([]domain.StopSpec, stops)
	for i := range specs {
		specs[i] = domain.StopSpec{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          domain.StopTypePickup,
			Position:      i + 1,
			Address:       domain.Address{Line1: "Calle Mayor 1", City: "Madrid", PostalCode: "28013", Notes: "ramp at rear"},
			Guardian:      domain.GuardianContact{Name: "Ana", Phone: "+34 611 222 333"},
			EstimatedTime: at(7, 30+10*i),
		}
	}
	route, err := domain.NewRoute(domain.RoutePlan{
		Name:           "Route " + uuid.NewString()[:8],
		ServiceDate:    serviceDay,
		DriverID:       &driver,
		VehicleID:      &vehicle,
		EstimatedStart: at(7, 15),
		EstimatedEnd:   at(9, 0),
		Stops:          specs,
	}, at(0, 0).Add(-time.Hour))
	require.NoError(t, err)
	return route
}

func TestRouteRepository_SaveAndFind(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		route := newRoute(t, 3)

		require.NoError(t, repo.Save(ctx, route))
		assert.Equal(t, 1, route.Version())

		found, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)
		assert.Equal(t, route.Name(), found.Name())
		assert.True(t, serviceDay.Equal(found.ServiceDate()))
		assert.Equal(t, *route.DriverID(), *found.DriverID())
		assert.Equal(t, domain.StatusPlanned, found.Status())
		assert.Equal(t, 1, found.Version())
		require.Len(t, found.Stops(), 3)
		for i, stop := range found.Stops() {
			original := route.Stops()[i]
			assert.Equal(t, original.ID(), stop.ID())
			assert.Equal(t, i+1, stop.Position())
			assert.Equal(t, original.Address(), stop.Address())
			assert.Equal(t, original.Guardian(), stop.Guardian())
			assert.WithinDuration(t, original.EstimatedTime(), stop.EstimatedTime(), time.Microsecond)
			assert.Equal(t, domain.StopStatePending, stop.State())
		}
		assert.Empty(t, found.DomainEvents())
	})
}

func TestRouteRepository_PersistsStopStateAndFlags(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		actor := uuid.New()
		route := newRoute(t, 3)
		require.NoError(t, repo.Save(ctx, route))

		stops := route.Stops()
		require.NoError(t, route.ChangeStatus(domain.StatusInProgress, at(7, 10)))
		actual := at(7, 50)
		_, err := route.RecordStopOutcome(stops[0].ID(), domain.OutcomeNoShow, actor, "nobody home", &actual, at(7, 51))
		require.NoError(t, err)
		_, err = route.CancelStop(stops[1].ID(), "sick", actor, at(7, 20))
		require.NoError(t, err)
		absence := uuid.New()
		_, err = route.FlagStopForReview(stops[1].ID(), absence, "", at(7, 30))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, route))
		assert.Equal(t, 2, route.Version())

		found, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, found.Status())
		require.NotNil(t, found.ActualStart())

		executed, err := found.Stop(stops[0].ID())
		require.NoError(t, err)
		require.NotNil(t, executed.Execution())
		assert.Equal(t, domain.OutcomeNoShow, executed.Execution().Outcome)
		assert.Equal(t, actor, executed.Execution().Actor)
		assert.Equal(t, "nobody home", executed.Execution().Notes)
		assert.WithinDuration(t, actual, *executed.ActualTime(), time.Microsecond)

		cancelled, err := found.Stop(stops[1].ID())
		require.NoError(t, err)
		assert.True(t, cancelled.IsCancelled())
		assert.Equal(t, "sick", cancelled.Cancellation().Reason)

		require.Len(t, found.OpenReviewFlags(), 1)
		assert.Equal(t, absence, found.OpenReviewFlags()[0].AbsenceID())
		assert.Equal(t, stops[1].ID(), found.OpenReviewFlags()[0].StopID())
	})
}

func TestRouteRepository_OptimisticLocking(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		route := newRoute(t, 2)
		require.NoError(t, repo.Save(ctx, route))

		first, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)

		s := first.Stops()
		require.NoError(t, first.ReorderStops([]domain.StopPosition{{StopID: s[1].ID(), Position: 1}, {StopID: s[0].ID(), Position: 2}}, at(6, 0)))
		require.NoError(t, repo.Save(ctx, first))

		require.NoError(t, second.ChangeStatus(domain.StatusCancelled, at(6, 1)))
		err = repo.Save(ctx, second)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)

		stored, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPlanned, stored.Status())
		assert.Equal(t, s[1].ID(), stored.Stops()[0].ID())
		assert.Equal(t, 2, stored.Version())
	})
}

func TestRouteRepository_DuplicateCreate(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		route := newRoute(t, 1)
		require.NoError(t, repo.Save(ctx, route))

		duplicate, err := domain.NewRoute(domain.RoutePlan{
			ID:             route.ID(),
			Name:           "Copy",
			ServiceDate:    serviceDay,
			EstimatedStart: at(10, 0),
			EstimatedEnd:   at(11, 0),
		}, at(6, 0))
		require.NoError(t, err)

		err = repo.Save(ctx, duplicate)
		assert.ErrorIs(t, err, domain.ErrRouteExists)
		assert.NotErrorIs(t, err, domain.ErrConcurrentModification)
		assert.Contains(t, err.Error(), route.ID().String())

		stored, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)
		assert.Equal(t, route.Name(), stored.Name())
		assert.Len(t, stored.Stops(), 1)
	})
}

func TestRouteRepository_Lookups(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		route := newRoute(t, 2)
		require.NoError(t, repo.Save(ctx, route))
		stopID := route.Stops()[1].ID()

		routeID, err := repo.RouteIDForStop(ctx, stopID)
		require.NoError(t, err)
		assert.Equal(t, route.ID(), routeID)

		byStop, err := repo.FindByStopID(ctx, stopID)
		require.NoError(t, err)
		assert.Equal(t, route.ID(), byStop.ID())

		_, err = repo.RouteIDForStop(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrStopNotFound)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrRouteNotFound)

		byDate, err := repo.FindByDate(ctx, serviceDay.Add(15*time.Hour))
		require.NoError(t, err)
		var ids []uuid.UUID
		for _, r := range byDate {
			ids = append(ids, r.ID())
		}
		assert.Contains(t, ids, route.ID())

		empty, err := repo.FindByDate(ctx, serviceDay.AddDate(-10, 0, 0))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestRouteRepository_Delete(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		seriesRepo := persistence.NewSeriesRepository(conn)
		route := newRoute(t, 2)
		series, err := domain.NewSeries(route, "FREQ=WEEKLY;COUNT=4", uuid.New(), at(6, 0))
		require.NoError(t, err)
		require.NoError(t, route.AttachSeries(series, at(6, 0)))
		require.NoError(t, seriesRepo.Save(ctx, series))
		require.NoError(t, repo.Save(ctx, route))
		stopID := route.Stops()[0].ID()

		require.NoError(t, repo.Delete(ctx, route.ID()))

		_, err = repo.FindByID(ctx, route.ID())
		assert.ErrorIs(t, err, domain.ErrRouteNotFound)
		_, err = repo.RouteIDForStop(ctx, stopID)
		assert.ErrorIs(t, err, domain.ErrStopNotFound)

		stored, err := seriesRepo.FindByID(ctx, series.ID())
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, stored.TemplateRouteID())

		assert.ErrorIs(t, repo.Delete(ctx, route.ID()), domain.ErrRouteNotFound)
	})
}

func TestRouteRepository_JoinsUnitOfWork(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewRouteRepository(conn)
		uow := database.NewUnitOfWork(conn)
		route := newRoute(t, 1)

		txCtx, err := uow.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Save(txCtx, route))
		_, err = repo.FindByID(txCtx, route.ID())
		require.NoError(t, err)
		require.NoError(t, uow.Rollback(txCtx))

		_, err = repo.FindByID(ctx, route.ID())
		assert.ErrorIs(t, err, domain.ErrRouteNotFound)
	})
}

func TestRouteRepository_EncryptsGuardianPhone(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)
		sealer, err := crypto.NewFieldSealer(base64.StdEncoding.EncodeToString(key))
		require.NoError(t, err)

		repo := persistence.NewRouteRepository(conn, persistence.WithContactEncryption(sealer))
		route := newRoute(t, 1)
		require.NoError(t, repo.Save(ctx, route))

		var stored string
		require.NoError(t, database.On(ctx, conn).
			QueryRow(ctx, `SELECT guardian_phone FROM route_stops WHERE route_id = ?`, route.ID()).
			Scan(&stored))
		assert.True(t, crypto.IsSealed(stored))
		assert.NotContains(t, stored, "611")

		found, err := repo.FindByID(ctx, route.ID())
		require.NoError(t, err)
		assert.Equal(t, "+34 611 222 333", found.Stops()[0].Guardian().Phone)

		_, err = persistence.NewRouteRepository(conn).FindByID(ctx, route.ID())
		assert.ErrorIs(t, err, crypto.ErrNoKey)
	})
}

func TestSeriesRepository_SaveAndFind(t *testing.T) {
	forEachDriver(t, func(t *testing.T, conn database.Connection) {
		ctx := context.Background()
		repo := persistence.NewSeriesRepository(conn)
		route := newRoute(t, 1)
		series, err := domain.NewSeries(route, "FREQ=DAILY;BYDAY=MO,TU,WE,TH,FR", uuid.New(), at(6, 0))
		require.NoError(t, err)

		require.NoError(t, repo.Save(ctx, series))

		found, err := repo.FindByID(ctx, series.ID())
		require.NoError(t, err)
		assert.Equal(t, series.Pattern(), found.Pattern())
		assert.Equal(t, route.ID(), found.TemplateRouteID())
		assert.True(t, series.StartsAt().Equal(found.StartsAt()))
		assert.Len(t, found.NextOccurrences(at(8, 0), 5), 5)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
