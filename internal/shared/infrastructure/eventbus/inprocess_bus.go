package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// InProcessEventBus delivers envelopes synchronously in local mode, where no
// broker runs. It satisfies both Publisher and the registration half of Consumer.
type InProcessEventBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
	mu       sync.Mutex
}

var _ Publisher = (*InProcessEventBus)(nil)

// NewInProcessEventBus creates a bus with an empty registry.
func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{
		registry: NewConsumerRegistry(logger),
		logger:   logger,
	}
}

// RegisterConsumer registers an event consumer.
func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish decodes the envelope and dispatches it. A malformed envelope is
// dropped with a log line; consumer errors other than permanent ones are
// returned so the outbox retries the message.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		b.logger.Error("dropping malformed envelope", "routing_key", routingKey, "error", err)
		return nil
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return b.PublishConsumedEvent(ctx, event)
}

// PublishConsumedEvent dispatches an already decoded envelope.
func (b *InProcessEventBus) PublishConsumedEvent(ctx context.Context, event *ConsumedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	err := b.registry.Dispatch(ctx, event)
	if err != nil && IsPermanent(err) {
		b.logger.Warn("discarding event after permanent failure",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
			"error", err,
		)
		return nil
	}
	if err != nil {
		return err
	}

	b.logger.Debug("event dispatched",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close is a no-op.
func (b *InProcessEventBus) Close() error {
	return nil
}
