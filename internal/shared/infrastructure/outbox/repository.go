package outbox

import (
	"context"
	"time"
)

// Repository stores outbox messages. Save and SaveBatch join the caller's
// unit of work so events commit with the aggregate that raised them.
type Repository interface {
	Save(ctx context.Context, msg *Message) error
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns messages due for delivery, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error

	// GetFailed returns messages that failed at least once and may still retry.
	GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error)
	// GetDead returns dead-lettered messages, newest first.
	GetDead(ctx context.Context, limit int) ([]*Message, error)
	// DeleteOld removes published messages older than the retention period.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
