package assessment

import (
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// Assessment is one student's grades for one discipline within one course.
// Derived fields are only ever written by recompute.
type Assessment struct {
	shared.AggregateRoot

	ID           string
	StudentID    string
	CourseID     string
	DisciplineID string

	grades       Grades
	average      float64
	status       Status
	isRecovering bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewParams holds everything needed to build a fresh assessment.
type NewParams struct {
	// ID is optional. Create paths that re-validate an existing record pass it.
	ID           string
	StudentID    string
	CourseID     string
	DisciplineID string
	Grades       Grades
	Policy       Policy
}

// New validates the grades and builds an assessment with derived fields set.
// No event is queued; the use case decides which event applies.
func New(p NewParams) (*Assessment, error) {
	if p.StudentID == "" || p.CourseID == "" || p.DisciplineID == "" {
		return nil, shared.InvalidField("assessment", "New", "reference")
	}

	grades := p.Grades.Normalized()
	if err := grades.Validate(); err != nil {
		return nil, err
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	a := &Assessment{
		ID:           id,
		StudentID:    p.StudentID,
		CourseID:     p.CourseID,
		DisciplineID: p.DisciplineID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.recompute(grades, p.Policy)
	return a, nil
}

// Restore rebuilds an assessment from storage. Derived fields are trusted as
// stored.
func Restore(id, studentID, courseID, disciplineID string, g Grades, average float64, status Status, isRecovering bool, createdAt, updatedAt time.Time) *Assessment {
	return &Assessment{
		ID:           id,
		StudentID:    studentID,
		CourseID:     courseID,
		DisciplineID: disciplineID,
		grades:       g.Normalized(),
		average:      average,
		status:       status,
		isRecovering: isRecovering,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

// AggregateID implements shared.Aggregate.
func (a *Assessment) AggregateID() string {
	return a.ID
}

// Grades returns a copy of the current components.
func (a *Assessment) Grades() Grades {
	return a.grades.Normalized()
}

// Average returns the derived average.
func (a *Assessment) Average() float64 { return a.average }

// Status returns the derived status.
func (a *Assessment) Status() Status { return a.status }

// IsRecovering returns the derived recovery flag.
func (a *Assessment) IsRecovering() bool { return a.isRecovering }

// Snapshot captures the grade state for audit payloads.
func (a *Assessment) Snapshot() Snapshot {
	return Snapshot{
		Grades:       a.Grades(),
		Average:      a.average,
		Status:       a.status,
		IsRecovering: a.isRecovering,
	}
}

// SetGrades replaces every component and recomputes the derived fields in one
// step. The assessment is left untouched when validation fails.
func (a *Assessment) SetGrades(g Grades, policy Policy) error {
	g = g.Normalized()
	if err := g.Validate(); err != nil {
		return err
	}
	a.recompute(g, policy)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveGrade clears one component. vf can never be removed and avi cannot be
// removed while avii is present.
func (a *Assessment) RemoveGrade(c Component, policy Policy) error {
	return a.RemoveGrades([]Component{c}, policy)
}

// RemoveGrades clears several components at once and validates the result as
// a whole, so avi and avii can be dropped together.
func (a *Assessment) RemoveGrades(components []Component, policy Policy) error {
	if len(components) == 0 {
		return shared.Conflict("assessment", "RemoveGrade", "no grade selected")
	}

	next := a.Grades()
	for _, c := range components {
		switch {
		case !c.IsValid():
			return shared.InvalidField("assessment", "RemoveGrade", "component")
		case c == ComponentVF:
			return shared.Conflict("assessment", "RemoveGrade", "VF cannot be removed")
		case next.Get(c) == nil:
			return shared.Conflict("assessment", "RemoveGrade", string(c)+" is not set")
		}
		next = next.Without(c)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	a.recompute(next, policy)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Assessment) recompute(g Grades, policy Policy) {
	r := policy.Compute(g)
	a.grades = g
	a.average = r.Average
	a.status = r.Status
	a.isRecovering = r.IsRecovering
}

// ─────────────────────────────────────────────────────────────────────────────
// Event raising
// ─────────────────────────────────────────────────────────────────────────────

// MarkCreated queues AssessmentCreated.
func (a *Assessment) MarkCreated(audit shared.Audit) {
	a.AddDomainEvent(CreatedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventAssessmentCreated, a.ID),
		Audit:        audit,
		StudentID:    a.StudentID,
		CourseID:     a.CourseID,
		DisciplineID: a.DisciplineID,
		Snapshot:     a.Snapshot(),
	})
}

// MarkUpdated queues AssessmentUpdated.
func (a *Assessment) MarkUpdated(audit shared.Audit, before Snapshot) {
	a.AddDomainEvent(UpdatedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventAssessmentUpdated, a.ID),
		Audit:        audit,
		StudentID:    a.StudentID,
		CourseID:     a.CourseID,
		DisciplineID: a.DisciplineID,
		Before:       before,
		After:        a.Snapshot(),
	})
}

// MarkGradeRemoved queues GradeRemoved.
func (a *Assessment) MarkGradeRemoved(audit shared.Audit, c Component, reason string, before Snapshot) {
	a.AddDomainEvent(GradeRemovedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventGradeRemoved, a.ID),
		Audit:        audit,
		StudentID:    a.StudentID,
		CourseID:     a.CourseID,
		DisciplineID: a.DisciplineID,
		Component:    c,
		Reason:       reason,
		Before:       before,
		After:        a.Snapshot(),
	})
}

// MarkDeleted queues AssessmentDeleted. It must be called before the
// repository deletes the record.
func (a *Assessment) MarkDeleted(audit shared.Audit, reason string) {
	a.AddDomainEvent(DeletedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventAssessmentDeleted, a.ID),
		Audit:        audit,
		StudentID:    a.StudentID,
		CourseID:     a.CourseID,
		DisciplineID: a.DisciplineID,
		Reason:       reason,
		Snapshot:     a.Snapshot(),
	})
}
