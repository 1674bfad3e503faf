package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

type fakePublisher struct {
	mu         sync.Mutex
	bodies     map[string][][]byte
	failForKey map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{bodies: map[string][][]byte{}, failForKey: map[string]bool{}}
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failForKey[routingKey] {
		return errors.New("broker unavailable")
	}
	p.bodies[routingKey] = append(p.bodies[routingKey], body)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.bodies {
		n += len(b)
	}
	return n
}

func saveEvent(t *testing.T, repo outbox.Repository, routingKey string) *outbox.Message {
	t.Helper()
	msg := &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "Route",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       json.RawMessage(`{"stop_id":"s1"}`),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Save(context.Background(), msg))
	return msg
}

func TestProcessor_PublishesEnvelope(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newFakePublisher()
	metrics := observability.NewInMemoryMetrics()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil).WithMetrics(metrics)
	msg := saveEvent(t, repo, "routing.stop.cancelled")

	require.NoError(t, processor.ProcessOnce(context.Background()))

	require.Len(t, publisher.bodies["routing.stop.cancelled"], 1)
	var envelope eventbus.ConsumedEvent
	require.NoError(t, json.Unmarshal(publisher.bodies["routing.stop.cancelled"][0], &envelope))
	assert.Equal(t, msg.EventID, envelope.EventID)
	assert.Equal(t, msg.AggregateID, envelope.AggregateID)
	assert.Equal(t, "Route", envelope.AggregateType)
	assert.JSONEq(t, `{"stop_id":"s1"}`, string(envelope.Payload))

	pending, err := repo.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, uint64(1), processor.GetStats().PublishedCount)
	assert.Equal(t, int64(1), metrics.GetCounter(outbox.MetricPublished))
}

func TestProcessor_RetriesWithBackoff(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newFakePublisher()
	publisher.failForKey["routing.route.created"] = true
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)
	failing := saveEvent(t, repo, "routing.route.created")
	saveEvent(t, repo, "routing.stop.executed")

	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Equal(t, 1, publisher.count())
	failed, err := repo.GetFailed(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, failing.ID, failed[0].ID)
	assert.Equal(t, 1, failed[0].RetryCount)
	require.NotNil(t, failed[0].NextRetryAt)
	assert.True(t, failed[0].NextRetryAt.After(time.Now()))

	// Not due yet, so the next batch skips it.
	pending, err := repo.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, uint64(1), processor.GetStats().FailedCount)
}

func TestProcessor_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newFakePublisher()
	publisher.failForKey["routing.route.created"] = true
	cfg := outbox.DefaultProcessorConfig()
	cfg.MaxRetries = 1
	processor := outbox.NewProcessor(repo, publisher, cfg, nil)
	saveEvent(t, repo, "routing.route.created")

	require.NoError(t, processor.ProcessOnce(context.Background()))

	dead, err := repo.GetDead(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "broker unavailable", *dead[0].DeadLetterReason)
	assert.Equal(t, uint64(1), processor.GetStats().DeadCount)
}

func TestProcessor_Cleanup(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	processor := outbox.NewProcessor(repo, newFakePublisher(), outbox.DefaultProcessorConfig(), nil)
	msg := saveEvent(t, repo, "routing.route.created")
	require.NoError(t, processor.ProcessOnce(context.Background()))

	deleted, err := processor.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, repo.All(), 1)
	assert.Equal(t, msg.ID, repo.All()[0].ID)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newFakePublisher()
	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	processor := outbox.NewProcessor(repo, publisher, cfg, nil)
	saveEvent(t, repo, "routing.route.created")

	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.IsRunning())

	assert.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 10*time.Millisecond)

	processor.Stop()
	assert.False(t, processor.IsRunning())
}
