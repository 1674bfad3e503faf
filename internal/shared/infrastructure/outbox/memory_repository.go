package outbox

import (
	"context"
	"slices"
	"sync"
	"time"
)

// InMemoryRepository keeps messages in memory. Tests and the MCP demo mode use it.
type InMemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	messages []*Message
	now      func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

var _ Repository = (*InMemoryRepository)(nil)

func (r *InMemoryRepository) Save(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	r.messages = append(r.messages, msg)
	return nil
}

func (r *InMemoryRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryRepository) GetUnpublished(_ context.Context, limit int) ([]*Message, error) {
	now := r.now()
	return r.filter(limit, func(m *Message) bool {
		return m.PublishedAt == nil && m.DeadLetteredAt == nil &&
			(m.NextRetryAt == nil || !m.NextRetryAt.After(now))
	}), nil
}

func (r *InMemoryRepository) MarkPublished(_ context.Context, id int64) error {
	return r.update(id, func(m *Message) {
		now := r.now()
		m.PublishedAt = &now
		m.NextRetryAt = nil
	})
}

func (r *InMemoryRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return r.update(id, func(m *Message) {
		m.RetryCount++
		m.LastError = &errMsg
		m.NextRetryAt = &nextRetryAt
	})
}

func (r *InMemoryRepository) MarkDead(_ context.Context, id int64, reason string) error {
	return r.update(id, func(m *Message) {
		now := r.now()
		m.RetryCount++
		m.LastError = &reason
		m.DeadLetteredAt = &now
		m.DeadLetterReason = &reason
	})
}

func (r *InMemoryRepository) GetFailed(_ context.Context, maxRetries, limit int) ([]*Message, error) {
	return r.filter(limit, func(m *Message) bool {
		return m.PublishedAt == nil && m.DeadLetteredAt == nil && m.RetryCount > 0 && m.RetryCount < maxRetries
	}), nil
}

func (r *InMemoryRepository) GetDead(_ context.Context, limit int) ([]*Message, error) {
	dead := r.filter(0, func(m *Message) bool { return m.DeadLetteredAt != nil })
	slices.Reverse(dead)
	if limit > 0 && len(dead) > limit {
		dead = dead[:limit]
	}
	return dead, nil
}

func (r *InMemoryRepository) DeleteOld(_ context.Context, olderThanDays int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().AddDate(0, 0, -olderThanDays)
	before := len(r.messages)
	r.messages = slices.DeleteFunc(r.messages, func(m *Message) bool {
		return m.PublishedAt != nil && m.PublishedAt.Before(cutoff)
	})
	return int64(before - len(r.messages)), nil
}

// All returns a snapshot of every stored message.
func (r *InMemoryRepository) All() []*Message {
	return r.filter(0, func(*Message) bool { return true })
}

func (r *InMemoryRepository) filter(limit int, keep func(*Message) bool) []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Message
	for _, m := range r.messages {
		if !keep(m) {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (r *InMemoryRepository) update(id int64, fn func(*Message)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			fn(m)
			return nil
		}
	}
	return nil
}
