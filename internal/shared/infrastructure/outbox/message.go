package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
)

// Message is one domain event waiting in the outbox.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage serializes a domain event. The payload holds only the event's
// exported fields; identifiers travel in the message columns.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.RoutingKey(), err)
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, fmt.Errorf("marshal %s metadata: %w", event.RoutingKey(), err)
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages converts a batch of events, failing on the first bad one.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Envelope builds the broker envelope consumers decode.
func (m *Message) Envelope() *eventbus.ConsumedEvent {
	return &eventbus.ConsumedEvent{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
		Metadata:      m.envelopeMetadata(),
	}
}

func (m *Message) envelopeMetadata() eventbus.EventMetadata {
	if len(m.Metadata) == 0 {
		return eventbus.EventMetadata{}
	}
	var meta domain.EventMetadata
	if err := json.Unmarshal(m.Metadata, &meta); err != nil {
		return eventbus.EventMetadata{}
	}
	out := eventbus.EventMetadata{UserID: meta.UserID}
	if meta.CorrelationID != uuid.Nil {
		out.CorrelationID = meta.CorrelationID.String()
	}
	if meta.CausationID != uuid.Nil {
		out.CausationID = meta.CausationID.String()
	}
	return out
}

// IsPublished reports whether the broker has accepted the message.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// CanRetry reports whether another attempt is allowed.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount < maxRetries
}
