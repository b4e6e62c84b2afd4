package assessment

import (
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// Each event carries enough payload for an audit line to be written without
// calling back into the use case that raised it.
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the grade state at one point in time.
type Snapshot struct {
	Grades       Grades  `json:"grades"`
	Average      float64 `json:"average"`
	Status       Status  `json:"status"`
	IsRecovering bool    `json:"is_recovering"`
}

// CreatedEvent - an assessment was recorded.
type CreatedEvent struct {
	shared.BaseEvent
	shared.Audit
	StudentID    string
	CourseID     string
	DisciplineID string
	Snapshot     Snapshot
}

// UpdatedEvent - an assessment's grades were replaced.
type UpdatedEvent struct {
	shared.BaseEvent
	shared.Audit
	StudentID    string
	CourseID     string
	DisciplineID string
	Before       Snapshot
	After        Snapshot
}

// GradeRemovedEvent - one component was cleared.
type GradeRemovedEvent struct {
	shared.BaseEvent
	shared.Audit
	StudentID    string
	CourseID     string
	DisciplineID string
	Component    Component
	Reason       string
	Before       Snapshot
	After        Snapshot
}

// DeletedEvent - an assessment was removed.
type DeletedEvent struct {
	shared.BaseEvent
	shared.Audit
	StudentID    string
	CourseID     string
	DisciplineID string
	Reason       string
	Snapshot     Snapshot
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch events
// ─────────────────────────────────────────────────────────────────────────────

// BatchLine is one child of a batch as seen by audit subscribers.
type BatchLine struct {
	AssessmentID string
	StudentID    string
	DisciplineID string
	Removed      []Component
	Before       Snapshot
	After        Snapshot
}

// BatchCreatedEvent - a bulk grade submission was committed.
type BatchCreatedEvent struct {
	shared.BaseEvent
	shared.Audit
	CourseID string
	File     shared.SourceFile
	Lines    []BatchLine
}

// BatchGradesRemovedEvent - a bulk grade removal was committed.
type BatchGradesRemovedEvent struct {
	shared.BaseEvent
	shared.Audit
	CourseID string
	File     shared.SourceFile
	Lines    []BatchLine
}
