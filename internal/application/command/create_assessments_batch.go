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

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ASSESSMENTS BATCH COMMAND
// Every row must resolve before anything is written.
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRow is one spreadsheet line of a grade import. StudentKey is a
// CPF or an e-mail.
type AssessmentRow struct {
	StudentKey     string
	DisciplineName string
	VF             *float64
	AVI            *float64
	AVII           *float64
	VFE            *float64
}

// CreateAssessmentsBatchCommand imports grades for one course.
type CreateAssessmentsBatchCommand struct {
	Actor    shared.Actor
	CourseID string
	Rows     []AssessmentRow
	File     shared.SourceFile
}

// CreateAssessmentsBatchHandler handles CreateAssessmentsBatchCommand.
type CreateAssessmentsBatchHandler struct {
	assessments assessment.Repository
	batches     assessment.BatchRepository
	students    student.Repository
	enrollments student.EnrollmentRepository
	courses     course.Repository
	disciplines course.DisciplineRepository
	policy      assessment.Policy
	clock       Clock
	concurrency int
}

// NewCreateAssessmentsBatchHandler creates a new CreateAssessmentsBatchHandler.
func NewCreateAssessmentsBatchHandler(
	assessments assessment.Repository,
	batches assessment.BatchRepository,
	students student.Repository,
	enrollments student.EnrollmentRepository,
	courses course.Repository,
	disciplines course.DisciplineRepository,
	policy assessment.Policy,
	clock Clock,
) *CreateAssessmentsBatchHandler {
	return &CreateAssessmentsBatchHandler{
		assessments: assessments,
		batches:     batches,
		students:    students,
		enrollments: enrollments,
		courses:     courses,
		disciplines: disciplines,
		policy:      policy,
		clock:       clock,
		concurrency: batch.DefaultConcurrency,
	}
}

// Handle executes the command.
func (h *CreateAssessmentsBatchHandler) Handle(ctx context.Context, cmd CreateAssessmentsBatchCommand) (*BatchResult, error) {
	const op = "CreateBatch"

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

	built, errs := batch.Resolve(ctx, cmd.Rows, h.concurrency,
		func(ctx context.Context, _ int, row AssessmentRow) (*assessment.Assessment, error) {
			return h.resolveRow(ctx, c, row)
		})

	keys := make([]string, len(built))
	for i, a := range built {
		if a != nil {
			keys[i] = batch.Key(a.StudentID, a.DisciplineID)
		}
	}
	errs.Merge(batch.Dedupe("assessment", "assessment", keys))
	if err := errs.Err(); err != nil {
		return nil, err
	}

	b := assessment.NewCreationBatch(c.ID, cmd.Actor.Audit(), cmd.File, built)
	if err := h.batches.Create(ctx, b); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("assessment.CreateBatch: persist: %w", err)
	}
	return &BatchResult{BatchID: b.ID, Count: b.Len()}, nil
}

func (h *CreateAssessmentsBatchHandler) resolveRow(ctx context.Context, c *course.Course, row AssessmentRow) (*assessment.Assessment, error) {
	const op = "CreateBatch"

	st, err := findStudentByKey(ctx, h.students, "assessment", op, row.StudentKey)
	if err != nil {
		return nil, err
	}
	d, err := findDiscipline(ctx, h.disciplines, "assessment", op, c.ID, row.DisciplineName)
	if err != nil {
		return nil, err
	}
	if _, err := requireEnrollment(ctx, h.enrollments, "assessment", op, st.ID, c.ID); err != nil {
		return nil, err
	}

	existing, err := h.assessments.FindByKey(ctx, st.ID, c.ID, d.ID)
	if err != nil {
		return nil, fmt.Errorf("assessment.CreateBatch: find existing: %w", err)
	}
	if existing != nil {
		return nil, shared.AlreadyExists("assessment", op, "assessment")
	}

	return assessment.New(assessment.NewParams{
		StudentID:    st.ID,
		CourseID:     c.ID,
		DisciplineID: d.ID,
		Grades: assessment.Grades{
			VF:   row.VF,
			AVI:  row.AVI,
			AVII: row.AVII,
			VFE:  row.VFE,
		},
		Policy: h.policy,
	})
}
