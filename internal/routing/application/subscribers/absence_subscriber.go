package subscribers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// AbsenceSubscriber turns absence cancellations into review flags on the
// stops the absence had cancelled.
type AbsenceSubscriber struct {
	handler *commands.PropagateAbsenceCancellationHandler
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewAbsenceSubscriber creates an AbsenceSubscriber.
func NewAbsenceSubscriber(handler *commands.PropagateAbsenceCancellationHandler, logger *slog.Logger, metrics observability.Metrics) *AbsenceSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &AbsenceSubscriber{handler: handler, logger: logger, metrics: metrics}
}

func (s *AbsenceSubscriber) EventTypes() []string {
	return []string{domain.RoutingKeyAbsenceCancelled}
}

// Handle processes one absence cancellation. Malformed events are permanent
// failures. Failures on individual routes are returned as transient so the
// broker redelivers; flags already raised are not duplicated on retry.
func (s *AbsenceSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	s.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))

	var payload domain.AbsenceCancelled
	if err := event.Decode(&payload); err != nil {
		return err
	}
	if payload.CancelledBy == uuid.Nil {
		payload.CancelledBy = event.Metadata.UserID
	}

	result, err := s.handler.Handle(ctx, commands.FromAbsenceCancelled(payload))
	if errors.Is(err, domain.ErrValidation) {
		return eventbus.Permanent(fmt.Errorf("absence %s: %w", payload.AbsenceID, err))
	}
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "absence cancellation handled",
		"event_id", event.EventID,
		"absence_id", payload.AbsenceID,
		"child_id", payload.ChildID,
		"stops", result.Total(),
	)
	return nil
}
