package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payloadEvent struct {
	domain.BaseEvent
	StopID uuid.UUID `json:"stop_id"`
}

func TestNewBaseEventAt(t *testing.T) {
	aggregateID := uuid.New()
	at := time.Date(2025, 3, 1, 8, 15, 0, 0, time.FixedZone("CET", 3600))

	event := domain.NewBaseEventAt(aggregateID, "Route", "routing.route.created", at)

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "Route", event.AggregateType())
	assert.Equal(t, "routing.route.created", event.RoutingKey())
	assert.Equal(t, at.UTC(), event.OccurredAt())
	assert.Equal(t, time.UTC, event.OccurredAt().Location())
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	metadata := domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        uuid.New(),
	}

	event := domain.NewBaseEvent(uuid.New(), "Route", "routing.route.created")
	event.SetMetadata(metadata)

	assert.Equal(t, metadata, event.Metadata())
}

func TestBaseEvent_PayloadExcludesEnvelope(t *testing.T) {
	stopID := uuid.New()
	event := payloadEvent{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "Route", "routing.stop.executed"),
		StopID:    stopID,
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, stopID.String(), decoded["stop_id"])
	assert.Len(t, decoded, 1)
}
