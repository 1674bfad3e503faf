package locking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryLocker serializes operations inside one process. Local mode uses it.
type InMemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryLocker creates an empty locker.
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]memoryEntry), clock: time.Now}
}

var _ Locker = (*InMemoryLocker)(nil)

func (l *InMemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, fmt.Errorf("%s: %w", key, ErrLockBusy)
	}
	l.held[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: token}, nil
}

func (l *InMemoryLocker) release(key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	if !ok || entry.token != token {
		return fmt.Errorf("%s: %w", key, ErrLockLost)
	}
	delete(l.held, key)
	return nil
}

type memoryLock struct {
	locker *InMemoryLocker
	key    string
	token  string
}

func (m *memoryLock) Key() string { return m.key }

func (m *memoryLock) Release(context.Context) error {
	return m.locker.release(m.key, m.token)
}
