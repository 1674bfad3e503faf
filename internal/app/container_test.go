package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/convoy/internal/app"
	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/convoy/pkg/config"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:              "development",
		DatabaseDriver:      "auto",
		SQLitePath:          filepath.Join(t.TempDir(), "convoy.db"),
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxRetries:    5,
		OutboxRetentionDays: 7,
		DelayThreshold:      5 * time.Minute,
		AutoCompleteRoutes:  true,
		RouteLockTTL:        10 * time.Second,
	}
}

func newLocalContainer(t *testing.T) *app.Container {
	t.Helper()
	c, err := app.NewContainer(context.Background(), localConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewContainer_LocalMode(t *testing.T) {
	c := newLocalContainer(t)

	assert.NotNil(t, c.LocalBus)
	assert.Same(t, c.LocalBus, c.Publisher)
	assert.Nil(t, c.RedisClient)
	assert.Equal(t, []string{"database"}, c.Health.Names())

	consumer, err := c.AbsenceConsumer()
	require.NoError(t, err)
	assert.Nil(t, consumer)
}

func TestNewContainer_RejectsBadEncryptionKey(t *testing.T) {
	cfg := localConfig(t)
	cfg.EncryptionKey = "not-a-key"

	_, err := app.NewContainer(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestContainer_AbsenceCancellationFlowsThroughLocalBus(t *testing.T) {
	ctx := context.Background()
	c := newLocalContainer(t)
	actor := uuid.New()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	driver := fleetDomain.Driver{ID: uuid.New(), Name: "Ana", Active: true}
	require.NoError(t, c.FleetStore.SaveDriver(ctx, driver))

	route, err := c.CreateRouteHandler.Handle(ctx, commands.CreateRouteCommand{
		Name:           "Morning run",
		ServiceDate:    day,
		DriverID:       &driver.ID,
		EstimatedStart: day.Add(7 * time.Hour),
		EstimatedEnd:   day.Add(9 * time.Hour),
		Stops: []domain.StopSpec{{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          domain.StopTypePickup,
			Position:      1,
			Address:       domain.Address{Line1: "Rua Augusta 100", City: "Lisboa"},
			EstimatedTime: day.Add(7*time.Hour + 30*time.Minute),
		}},
		Actor: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPlanned), route.Status)
	assert.Equal(t, "Ana", route.DriverName)

	stopID := route.Stops[0].ID
	_, err = c.CancelStopHandler.Handle(ctx, commands.CancelStopCommand{
		StopID: stopID, Reason: "absence", Actor: actor,
	})
	require.NoError(t, err)

	payload, err := json.Marshal(domain.AbsenceCancelled{
		AbsenceID:          uuid.New(),
		ChildID:            route.Stops[0].ChildID,
		CancelledBy:        actor,
		CancelledAt:        day.Add(6 * time.Hour),
		AffectedRouteStops: []domain.StopRef{{RouteID: route.ID, StopID: stopID}},
	})
	require.NoError(t, err)
	require.NoError(t, c.LocalBus.PublishConsumedEvent(ctx, &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: domain.RoutingKeyAbsenceCancelled,
		OccurredAt: day.Add(6 * time.Hour),
		Payload:    payload,
	}))

	flags, err := c.ListReviewFlagsHandler.Handle(ctx, queries.ListReviewFlagsQuery{RouteID: route.ID})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, stopID, flags[0].StopID)
}

func TestContainer_OutboxProcessorDrainsRouteEvents(t *testing.T) {
	ctx := context.Background()
	c := newLocalContainer(t)
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	_, err := c.CreateRouteHandler.Handle(ctx, commands.CreateRouteCommand{
		Name:           "Afternoon run",
		ServiceDate:    day,
		EstimatedStart: day.Add(15 * time.Hour),
		EstimatedEnd:   day.Add(17 * time.Hour),
		Actor:          uuid.New(),
	})
	require.NoError(t, err)

	pending, err := c.OutboxRepo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, pending)

	require.NoError(t, c.OutboxProcessor().ProcessOnce(ctx))

	pending, err = c.OutboxRepo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestContainer_RacingWritersOnOneRoute(t *testing.T) {
	ctx := context.Background()
	c := newLocalContainer(t)
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	driver := fleetDomain.Driver{ID: uuid.New(), Name: "Ana", Active: true}
	require.NoError(t, c.FleetStore.SaveDriver(ctx, driver))

	route, err := c.CreateRouteHandler.Handle(ctx, commands.CreateRouteCommand{
		Name:           "Morning run",
		ServiceDate:    day,
		DriverID:       &driver.ID,
		EstimatedStart: day.Add(7 * time.Hour),
		EstimatedEnd:   day.Add(9 * time.Hour),
		Actor:          uuid.New(),
	})
	require.NoError(t, err)
	version := route.Version

	const writers = 2
	var (
		start sync.WaitGroup
		done  sync.WaitGroup
		errs  = make([]error, writers)
	)
	start.Add(1)
	for i := range writers {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			_, errs[i] = c.ChangeRouteStatusHandler.Handle(ctx, commands.ChangeRouteStatusCommand{
				RouteID:         route.ID,
				Status:          domain.StatusInProgress,
				Actor:           uuid.New(),
				ExpectedVersion: &version,
			})
		}()
	}
	start.Done()
	done.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrConcurrentModification):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, conflicted)

	stored, err := c.GetRouteHandler.Handle(ctx, queries.GetRouteQuery{RouteID: route.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusInProgress), stored.Status)
	assert.Equal(t, version+1, stored.Version)
}
