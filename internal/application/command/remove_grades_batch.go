package command

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// GradeRemovalRow selects the components to clear on one assessment.
type GradeRemovalRow struct {
	StudentKey     string
	DisciplineName string
	RemoveAVI      bool
	RemoveAVII     bool
	RemoveVFE      bool
}

func (r GradeRemovalRow) components() []assessment.Component {
	var out []assessment.Component
	if r.RemoveAVI {
		out = append(out, assessment.ComponentAVI)
	}
	if r.RemoveAVII {
		out = append(out, assessment.ComponentAVII)
	}
	if r.RemoveVFE {
		out = append(out, assessment.ComponentVFE)
	}
	return out
}

// RemoveGradesBatchCommand clears grade components across a course.
type RemoveGradesBatchCommand struct {
	Actor    shared.Actor
	CourseID string
	Rows     []GradeRemovalRow
	File     shared.SourceFile
}

// RemoveGradesBatchHandler handles RemoveGradesBatchCommand.
type RemoveGradesBatchHandler struct {
	assessments assessment.Repository
	batches     assessment.BatchRepository
	students    student.Repository
	courses     course.Repository
	disciplines course.DisciplineRepository
	policy      assessment.Policy
	clock       Clock
	concurrency int
}

// NewRemoveGradesBatchHandler creates a new RemoveGradesBatchHandler.
func NewRemoveGradesBatchHandler(
	assessments assessment.Repository,
	batches assessment.BatchRepository,
	students student.Repository,
	courses course.Repository,
	disciplines course.DisciplineRepository,
	policy assessment.Policy,
	clock Clock,
) *RemoveGradesBatchHandler {
	return &RemoveGradesBatchHandler{
		assessments: assessments,
		batches:     batches,
		students:    students,
		courses:     courses,
		disciplines: disciplines,
		policy:      policy,
		clock:       clock,
		concurrency: batch.DefaultConcurrency,
	}
}

// Handle executes the command.
func (h *RemoveGradesBatchHandler) Handle(ctx context.Context, cmd RemoveGradesBatchCommand) (*BatchResult, error) {
	const op = "RemoveGradesBatch"

	if err := shared.StaffOnly.Check("assessment", op, cmd.Actor); err != nil {
		return nil, err
	}
	if len(cmd.Rows) == 0 {
		return nil, shared.InvalidField("assessment", op, "rows")
	}

	c, err := loadCourse(ctx, h.courses, "assessment", op, cmd.CourseID, true, h.clock.now())
	if err != nil {
		return nil, err
	}

	items, errs := batch.Resolve(ctx, cmd.Rows, h.concurrency,
		func(ctx context.Context, _ int, row GradeRemovalRow) (assessment.BatchItem, error) {
			return h.resolveRow(ctx, c, row)
		})

	keys := make([]string, len(items))
	for i, it := range items {
		if it.Assessment != nil {
			keys[i] = it.Assessment.ID
		}
	}
	errs.Merge(batch.Dedupe("assessment", "assessment", keys))
	if err := errs.Err(); err != nil {
		return nil, err
	}

	b := assessment.NewGradeRemovalBatch(c.ID, cmd.Actor.Audit(), cmd.File, items)
	if err := h.batches.Save(ctx, b); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("assessment.RemoveGradesBatch: persist: %w", err)
	}
	return &BatchResult{BatchID: b.ID, Count: b.Len()}, nil
}

func (h *RemoveGradesBatchHandler) resolveRow(ctx context.Context, c *course.Course, row GradeRemovalRow) (assessment.BatchItem, error) {
	const op = "RemoveGradesBatch"

	components := row.components()
	if len(components) == 0 {
		return assessment.BatchItem{}, shared.Conflict("assessment", op, "no grade selected")
	}

	st, err := findStudentByKey(ctx, h.students, "assessment", op, row.StudentKey)
	if err != nil {
		return assessment.BatchItem{}, err
	}
	d, err := findDiscipline(ctx, h.disciplines, "assessment", op, c.ID, row.DisciplineName)
	if err != nil {
		return assessment.BatchItem{}, err
	}

	a, err := h.assessments.FindByKey(ctx, st.ID, c.ID, d.ID)
	if err != nil {
		return assessment.BatchItem{}, fmt.Errorf("assessment.RemoveGradesBatch: find assessment: %w", err)
	}
	if a == nil {
		return assessment.BatchItem{}, shared.NotFound("assessment", op, "assessment")
	}

	before := a.Snapshot()
	if err := a.RemoveGrades(components, h.policy); err != nil {
		return assessment.BatchItem{}, err
	}
	return assessment.BatchItem{Assessment: a, Removed: components, Before: before}, nil
}
