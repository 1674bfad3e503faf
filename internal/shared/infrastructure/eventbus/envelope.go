package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher sends an encoded Envelope to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// EventConsumer handles the routing keys it declares.
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// Consumer runs a subscription until its context ends.
type Consumer interface {
	Start(ctx context.Context) error
	RegisterConsumer(consumer EventConsumer)
	Close() error
}

// ConsumedEvent is the wire envelope shared by publishers and consumers.
// Payload holds the event body; the other fields are routing metadata.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitzero"`
}

// EventMetadata carries tracing identifiers across the broker.
type EventMetadata struct {
	UserID        uuid.UUID `json:"user_id,omitzero"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// Decode unmarshals the payload into v. A payload that does not decode is a
// permanent failure: redelivery cannot fix it.
func (e *ConsumedEvent) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", e.RoutingKey, err))
	}
	return nil
}

// ErrPermanent marks failures that must not be redelivered.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent wraps err so IsPermanent reports true.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// peekEnvelope reads the identifiers a broker needs without decoding the payload.
func peekEnvelope(body []byte) (eventID, correlationID string) {
	var head struct {
		EventID  string `json:"event_id"`
		Metadata struct {
			CorrelationID string `json:"correlation_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return "", ""
	}
	return head.EventID, head.Metadata.CorrelationID
}
