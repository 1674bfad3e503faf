package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything in the model that is tracked by identity rather than by value.
type Entity interface {
	ID() uuid.UUID
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Equals(other Entity) bool
}

// BaseEntity carries identity and audit timestamps for embedding.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewBaseEntity creates an entity with a fresh ID stamped at the current time.
func NewBaseEntity() BaseEntity {
	return NewBaseEntityAt(uuid.New(), time.Now())
}

// NewBaseEntityAt creates an entity with the given ID, stamped at the given time.
func NewBaseEntityAt(id uuid.UUID, at time.Time) BaseEntity {
	at = at.UTC()
	return BaseEntity{id: id, createdAt: at, updatedAt: at}
}

// RehydrateBaseEntity restores an entity loaded from storage.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{id: id, createdAt: createdAt.UTC(), updatedAt: updatedAt.UTC()}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch moves updatedAt to now.
func (e *BaseEntity) Touch() {
	e.TouchAt(time.Now())
}

// TouchAt moves updatedAt to the given time. Earlier times are ignored.
func (e *BaseEntity) TouchAt(at time.Time) {
	at = at.UTC()
	if at.After(e.updatedAt) {
		e.updatedAt = at
	}
}

// Equals reports whether both entities share an identity.
func (e BaseEntity) Equals(other Entity) bool {
	if other == nil {
		return false
	}
	return e.id == other.ID()
}
