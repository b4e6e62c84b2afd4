package student

import (
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentStatusChangedEvent - an enrollment was activated or deactivated.
type EnrollmentStatusChangedEvent struct {
	shared.BaseEvent
	shared.Audit
	StudentID string
	CourseID  string
	Active    bool
}

// BatchLine is one row of a student batch as seen by audit subscribers.
type BatchLine struct {
	StudentID  string
	Name       string
	CPF        string
	PoleID     string
	NewStudent bool
	Placement  PlacementChange
}

// BatchCreatedEvent - a bulk student import was committed.
type BatchCreatedEvent struct {
	shared.BaseEvent
	shared.Audit
	CourseID string
	File     shared.SourceFile
	Lines    []BatchLine
}

// BatchUpdatedEvent - a bulk student update was committed.
type BatchUpdatedEvent struct {
	shared.BaseEvent
	shared.Audit
	CourseID string
	File     shared.SourceFile
	Lines    []BatchLine
}
