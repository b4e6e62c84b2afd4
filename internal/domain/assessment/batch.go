package assessment

import (
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// BatchKind distinguishes the two bulk grade operations.
type BatchKind string

const (
	BatchKindCreated       BatchKind = "created"
	BatchKindGradesRemoved BatchKind = "grades_removed"
)

// BatchItem is one child of a batch. Before and Removed are only set for
// removal batches.
type BatchItem struct {
	Assessment *Assessment
	Removed    []Component
	Before     Snapshot
}

// Batch is the immutable artifact of one bulk grade submission. Its child
// list is fixed at construction.
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

// NewCreationBatch wraps freshly built assessments and queues
// AssessmentBatchCreated.
func NewCreationBatch(courseID string, audit shared.Audit, file shared.SourceFile, assessments []*Assessment) *Batch {
	items := make([]BatchItem, len(assessments))
	for i, a := range assessments {
		items[i] = BatchItem{Assessment: a}
	}

	b := newBatch(courseID, BatchKindCreated, audit, file, items)
	b.AddDomainEvent(BatchCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAssessmentBatchCreated, b.ID),
		Audit:     audit,
		CourseID:  courseID,
		File:      file,
		Lines:     b.lines(),
	})
	return b
}

// NewGradeRemovalBatch wraps mutated assessments and queues
// AssessmentBatchGradesRemoved.
func NewGradeRemovalBatch(courseID string, audit shared.Audit, file shared.SourceFile, items []BatchItem) *Batch {
	b := newBatch(courseID, BatchKindGradesRemoved, audit, file, items)
	b.AddDomainEvent(BatchGradesRemovedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAssessmentBatchGradesRemoved, b.ID),
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

// Assessments returns the child aggregates in row order.
func (b *Batch) Assessments() []*Assessment {
	out := make([]*Assessment, len(b.items))
	for i, it := range b.items {
		out[i] = it.Assessment
	}
	return out
}

// Len returns the number of children.
func (b *Batch) Len() int {
	return len(b.items)
}

func (b *Batch) lines() []BatchLine {
	lines := make([]BatchLine, len(b.items))
	for i, it := range b.items {
		lines[i] = BatchLine{
			AssessmentID: it.Assessment.ID,
			StudentID:    it.Assessment.StudentID,
			DisciplineID: it.Assessment.DisciplineID,
			Removed:      it.Removed,
			Before:       it.Before,
			After:        it.Assessment.Snapshot(),
		}
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
