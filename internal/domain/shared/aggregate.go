package shared

// Aggregate is a mutable domain object that owns its pending events.
type Aggregate interface {
	// AggregateID returns the identity the queued events refer to.
	AggregateID() string

	// DrainEvents returns the queued events in order and clears the queue.
	DrainEvents() []Event
}

// AggregateRoot is embedded by every aggregate. Only the owning aggregate adds
// events; only the dispatcher drains them. An aggregate belongs to a single
// use case invocation, so the queue is not synchronized.
type AggregateRoot struct {
	events []Event
}

// AddDomainEvent appends an event to the pending queue.
func (a *AggregateRoot) AddDomainEvent(event Event) {
	a.events = append(a.events, event)
}

// DrainEvents returns the pending events and empties the queue.
func (a *AggregateRoot) DrainEvents() []Event {
	events := a.events
	a.events = nil
	return events
}

// PendingEvents returns how many events are waiting for dispatch.
func (a *AggregateRoot) PendingEvents() int {
	return len(a.events)
}
