package student

import (
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// PlacementChange says what a batch row does to the student's course link.
type PlacementChange string

const (
	// PlacementUnchanged - already enrolled at the requested pole.
	PlacementUnchanged PlacementChange = "unchanged"
	// PlacementEnroll - no enrollment yet; create enrollment and placement.
	PlacementEnroll PlacementChange = "enroll"
	// PlacementMove - enrolled at another pole; replace the placement.
	PlacementMove PlacementChange = "move"
)

// DecidePlacement compares the current state with the requested pole.
func DecidePlacement(enrollment *Enrollment, current *Placement, poleID string) PlacementChange {
	switch {
	case enrollment == nil:
		return PlacementEnroll
	case current == nil || current.PoleID != poleID:
		return PlacementMove
	default:
		return PlacementUnchanged
	}
}

// BatchItem is one resolved row.
type BatchItem struct {
	Student *Student

	// NewStudent is true when Student must be inserted, false when it already
	// exists and only its profile is written back.
	NewStudent bool

	Change     PlacementChange
	Enrollment *Enrollment
	Placement  *Placement

	// Previous is the placement a move replaces.
	Previous *Placement
}

// BatchKind distinguishes imports from updates.
type BatchKind string

const (
	BatchKindCreated BatchKind = "created"
	BatchKindUpdated BatchKind = "updated"
)

// Batch is the immutable artifact of one bulk student operation.
type Batch struct {
	shared.AggregateRoot

	ID        string
	CourseID  string
	Kind      BatchKind
	Audit     shared.Audit
	File      shared.SourceFile
	CreatedAt time.Time

	items []BatchItem
}

// NewCreationBatch wraps imported rows and queues StudentBatchCreated.
func NewCreationBatch(courseID string, audit shared.Audit, file shared.SourceFile, items []BatchItem) *Batch {
	b := newBatch(courseID, BatchKindCreated, audit, file, items)
	b.AddDomainEvent(BatchCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentBatchCreated, b.ID),
		Audit:     audit,
		CourseID:  courseID,
		File:      file,
		Lines:     b.lines(),
	})
	return b
}

// NewUpdateBatch wraps updated rows and queues StudentBatchUpdated.
func NewUpdateBatch(courseID string, audit shared.Audit, file shared.SourceFile, items []BatchItem) *Batch {
	b := newBatch(courseID, BatchKindUpdated, audit, file, items)
	b.AddDomainEvent(BatchUpdatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentBatchUpdated, b.ID),
		Audit:     audit,
		CourseID:  courseID,
		File:      file,
		Lines:     b.lines(),
	})
	return b
}

func newBatch(courseID string, kind BatchKind, audit shared.Audit, file shared.SourceFile, items []BatchItem) *Batch {
	fixed := make([]BatchItem, len(items))
	copy(fixed, items)
	return &Batch{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Kind:      kind,
		Audit:     audit,
		File:      file,
		CreatedAt: time.Now().UTC(),
		items:     fixed,
	}
}

// AggregateID implements shared.Aggregate.
func (b *Batch) AggregateID() string {
	return b.ID
}

// Items returns a copy of the child list.
func (b *Batch) Items() []BatchItem {
	out := make([]BatchItem, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	return len(b.items)
}

func (b *Batch) lines() []BatchLine {
	lines := make([]BatchLine, len(b.items))
	for i, it := range b.items {
		line := BatchLine{
			StudentID:  it.Student.ID,
			Name:       it.Student.Name.String(),
			CPF:        it.Student.CPF.String(),
			NewStudent: it.NewStudent,
			Placement:  it.Change,
		}
		if it.Placement != nil {
			line.PoleID = it.Placement.PoleID
		}
		lines[i] = line
	}
	return lines
}

// RestoreBatch rebuilds a batch from storage without queuing events.
func RestoreBatch(id, courseID string, kind BatchKind, audit shared.Audit, file shared.SourceFile, createdAt time.Time, items []BatchItem) *Batch {
	return &Batch{
		ID:        id,
		CourseID:  courseID,
		Kind:      kind,
		Audit:     audit,
		File:      file,
		CreatedAt: createdAt,
		items:     items,
	}
}
