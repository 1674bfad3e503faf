package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
)

func envelope(t *testing.T, routingKey string) ([]byte, *eventbus.ConsumedEvent) {
	t.Helper()
	event := &eventbus.ConsumedEvent{
		EventID:       uuid.New(),
		AggregateID:   uuid.New(),
		AggregateType: "Absence",
		RoutingKey:    routingKey,
		OccurredAt:    time.Now().UTC(),
		Payload:       json.RawMessage(`{"absence_id":"a1"}`),
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body, event
}

func TestInProcessEventBus_Publish(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(quietLogger())
	consumer := &recordingConsumer{eventTypes: []string{absenceCancelled}}
	bus.RegisterConsumer(consumer)
	body, event := envelope(t, absenceCancelled)

	require.NoError(t, bus.Publish(context.Background(), absenceCancelled, body))

	require.Len(t, consumer.events, 1)
	assert.Equal(t, event.EventID, consumer.events[0].EventID)
	assert.JSONEq(t, `{"absence_id":"a1"}`, string(consumer.events[0].Payload))
}

func TestInProcessEventBus_RoutingKeyFallback(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(quietLogger())
	consumer := &recordingConsumer{eventTypes: []string{absenceCancelled}}
	bus.RegisterConsumer(consumer)
	body, _ := envelope(t, "")

	require.NoError(t, bus.Publish(context.Background(), absenceCancelled, body))

	assert.Len(t, consumer.events, 1)
}

func TestInProcessEventBus_MalformedEnvelopeIsDropped(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(quietLogger())
	consumer := &recordingConsumer{eventTypes: []string{absenceCancelled}}
	bus.RegisterConsumer(consumer)

	assert.NoError(t, bus.Publish(context.Background(), absenceCancelled, []byte("not json")))
	assert.Empty(t, consumer.events)
}

func TestInProcessEventBus_FailureHandling(t *testing.T) {
	t.Run("transient failure is returned for retry", func(t *testing.T) {
		bus := eventbus.NewInProcessEventBus(quietLogger())
		bus.RegisterConsumer(&recordingConsumer{eventTypes: []string{absenceCancelled}, err: errors.New("locked")})
		body, _ := envelope(t, absenceCancelled)

		assert.Error(t, bus.Publish(context.Background(), absenceCancelled, body))
	})

	t.Run("permanent failure is swallowed", func(t *testing.T) {
		bus := eventbus.NewInProcessEventBus(quietLogger())
		bus.RegisterConsumer(&recordingConsumer{
			eventTypes: []string{absenceCancelled},
			err:        eventbus.Permanent(errors.New("bad payload")),
		})
		body, _ := envelope(t, absenceCancelled)

		assert.NoError(t, bus.Publish(context.Background(), absenceCancelled, body))
	})
}

func TestNoopPublisher(t *testing.T) {
	p := eventbus.NewNoopPublisher(nil)

	assert.NoError(t, p.Publish(context.Background(), "routing.route.created", []byte("{}")))
	assert.NoError(t, p.Close())
}
