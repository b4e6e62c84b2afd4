package shared

import (
	"context"
	"time"
)

// EventType identifies the kind of a domain event. Handlers are registered
// against an EventType, never against a free-form string.
type EventType string

// Domain event types - these drive the audit trail.
const (
	// Assessment events
	EventAssessmentCreated EventType = "assessment.created"
	EventAssessmentUpdated EventType = "assessment.updated"
	EventGradeRemoved      EventType = "assessment.grade_removed"
	EventAssessmentDeleted EventType = "assessment.deleted"

	// Assessment batch events
	EventAssessmentBatchCreated       EventType = "assessment_batch.created"
	EventAssessmentBatchGradesRemoved EventType = "assessment_batch.grades_removed"

	// Student events
	EventEnrollmentStatusChanged EventType = "student.enrollment_status_changed"
	EventStudentBatchCreated     EventType = "student_batch.created"
	EventStudentBatchUpdated     EventType = "student_batch.updated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event was recorded.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// Audit is the payload every audited mutation carries: who did it and from where.
type Audit struct {
	ActorID string `json:"actor_id"`
	ActorIP string `json:"actor_ip"`
}

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish delivers events to subscribers, in order.
	Publish(ctx context.Context, events ...Event)
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// AggregateDispatcher drains an aggregate's pending events and delivers them.
// Repositories call it right after a successful persist.
type AggregateDispatcher interface {
	Dispatch(ctx context.Context, aggregate Aggregate)
}
