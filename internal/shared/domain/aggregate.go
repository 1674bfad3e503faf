package domain

// AggregateRoot is the consistency boundary that repositories load and save.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	PullDomainEvents() []DomainEvent
	AddDomainEvent(event DomainEvent)
	Version() int
}

// BaseAggregateRoot tracks pending domain events and the persisted version.
//
// Version 0 means the aggregate has never been stored. Repositories compare
// Version against the stored row before writing and call SetVersion with the
// value the store returns.
type BaseAggregateRoot struct {
	BaseEntity
	domainEvents []DomainEvent
	version      int
}

// NewBaseAggregateRoot creates an unsaved aggregate with a fresh identity.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity()}
}

// NewBaseAggregateRootFrom creates an unsaved aggregate around an existing entity.
func NewBaseAggregateRootFrom(entity BaseEntity) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity}
}

// RehydrateBaseAggregateRoot restores an aggregate loaded at the given version.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// DomainEvents returns the events raised since the last pull.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// PullDomainEvents returns the pending events and forgets them.
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.domainEvents
	a.domainEvents = nil
	return events
}

// ClearDomainEvents drops pending events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// AddDomainEvent records an event to be published after the aggregate is saved.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// Version returns the version the aggregate was loaded or last saved at.
func (a *BaseAggregateRoot) Version() int {
	return a.version
}

// SetVersion records the version assigned by the store.
func (a *BaseAggregateRoot) SetVersion(version int) {
	a.version = version
}

// IsNew reports whether the aggregate has never been persisted.
func (a *BaseAggregateRoot) IsNew() bool {
	return a.version == 0
}
