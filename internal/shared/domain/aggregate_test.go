package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testAggregate struct {
	domain.BaseAggregateRoot
}

type testAggregateEvent struct {
	domain.BaseEvent
}

func newTestAggregateEvent(aggregateID uuid.UUID) *testAggregateEvent {
	return &testAggregateEvent{
		BaseEvent: domain.NewBaseEvent(aggregateID, "TestAggregate", "test.aggregate.changed"),
	}
}

func TestNewBaseAggregateRoot(t *testing.T) {
	agg := domain.NewBaseAggregateRoot()

	assert.NotEqual(t, uuid.Nil, agg.ID())
	assert.Equal(t, 0, agg.Version())
	assert.True(t, agg.IsNew())
	assert.Empty(t, agg.DomainEvents())
}

func TestBaseAggregateRoot_PullDomainEvents(t *testing.T) {
	agg := &testAggregate{BaseAggregateRoot: domain.NewBaseAggregateRoot()}
	agg.AddDomainEvent(newTestAggregateEvent(agg.ID()))
	agg.AddDomainEvent(newTestAggregateEvent(agg.ID()))

	events := agg.PullDomainEvents()

	assert.Len(t, events, 2)
	assert.Empty(t, agg.DomainEvents())
	for _, event := range events {
		assert.Equal(t, agg.ID(), event.AggregateID())
	}
}

func TestBaseAggregateRoot_ClearDomainEvents(t *testing.T) {
	agg := &testAggregate{BaseAggregateRoot: domain.NewBaseAggregateRoot()}
	agg.AddDomainEvent(newTestAggregateEvent(agg.ID()))

	agg.ClearDomainEvents()

	assert.Empty(t, agg.DomainEvents())
}

func TestBaseAggregateRoot_SetVersion(t *testing.T) {
	agg := domain.NewBaseAggregateRoot()

	agg.SetVersion(3)

	assert.Equal(t, 3, agg.Version())
	assert.False(t, agg.IsNew())
}

func TestRehydrateBaseAggregateRoot(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	agg := domain.RehydrateBaseAggregateRoot(domain.RehydrateBaseEntity(id, created, updated), 7)

	assert.Equal(t, id, agg.ID())
	assert.Equal(t, created, agg.CreatedAt())
	assert.Equal(t, updated, agg.UpdatedAt())
	assert.Equal(t, 7, agg.Version())
	assert.Empty(t, agg.DomainEvents())
}

func TestBaseEntity_TouchAt(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	entity := domain.NewBaseEntityAt(uuid.New(), start)

	entity.TouchAt(start.Add(-time.Minute))
	assert.Equal(t, start, entity.UpdatedAt(), "earlier times are ignored")

	entity.TouchAt(start.Add(time.Minute))
	assert.Equal(t, start.Add(time.Minute), entity.UpdatedAt())
	assert.Equal(t, start, entity.CreatedAt())
}

func TestBaseEntity_Equals(t *testing.T) {
	id := uuid.New()
	a := domain.NewBaseEntityAt(id, time.Now())
	b := domain.NewBaseEntityAt(id, time.Now().Add(time.Hour))

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(domain.NewBaseEntity()))
	assert.False(t, a.Equals(nil))
}
