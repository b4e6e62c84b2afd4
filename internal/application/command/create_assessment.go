package command

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ASSESSMENT COMMAND
// Records the grades of one student for one discipline of a running course.
// ══════════════════════════════════════════════════════════════════════════════

// CreateAssessmentCommand contains the data to record an assessment.
type CreateAssessmentCommand struct {
	Actor        shared.Actor
	StudentID    string
	CourseID     string
	DisciplineID string
	Grades       assessment.Grades
}

// Validate checks the identifiers.
func (c CreateAssessmentCommand) Validate() error {
	switch {
	case c.StudentID == "":
		return shared.InvalidField("assessment", "Create", "student id")
	case c.CourseID == "":
		return shared.InvalidField("assessment", "Create", "course id")
	case c.DisciplineID == "":
		return shared.InvalidField("assessment", "Create", "discipline id")
	}
	return nil
}

// AssessmentResult describes an assessment after a single write.
type AssessmentResult struct {
	AssessmentID string
	Average      float64
	Status       assessment.Status
	IsRecovering bool
}

func newAssessmentResult(a *assessment.Assessment) *AssessmentResult {
	return &AssessmentResult{
		AssessmentID: a.ID,
		Average:      a.Average(),
		Status:       a.Status(),
		IsRecovering: a.IsRecovering(),
	}
}

// CreateAssessmentHandler handles CreateAssessmentCommand.
type CreateAssessmentHandler struct {
	assessments assessment.Repository
	students    student.Repository
	enrollments student.EnrollmentRepository
	courses     course.Repository
	disciplines course.DisciplineRepository
	policy      assessment.Policy
	clock       Clock
}

// NewCreateAssessmentHandler creates a new CreateAssessmentHandler.
func NewCreateAssessmentHandler(
	assessments assessment.Repository,
	students student.Repository,
	enrollments student.EnrollmentRepository,
	courses course.Repository,
	disciplines course.DisciplineRepository,
	policy assessment.Policy,
	clock Clock,
) *CreateAssessmentHandler {
	return &CreateAssessmentHandler{
		assessments: assessments,
		students:    students,
		enrollments: enrollments,
		courses:     courses,
		disciplines: disciplines,
		policy:      policy,
		clock:       clock,
	}
}

// Handle executes the command.
func (h *CreateAssessmentHandler) Handle(ctx context.Context, cmd CreateAssessmentCommand) (*AssessmentResult, error) {
	const op = "Create"

	if err := shared.StaffOnly.Check("assessment", op, cmd.Actor); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	st, err := h.students.FindByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("assessment.Create: find student: %w", err)
	}
	if st == nil {
		return nil, shared.NotFound("assessment", op, "student")
	}

	c, err := loadCourse(ctx, h.courses, "assessment", op, cmd.CourseID, true, h.clock.now())
	if err != nil {
		return nil, err
	}

	d, err := h.disciplines.FindByID(ctx, cmd.DisciplineID)
	if err != nil {
		return nil, fmt.Errorf("assessment.Create: find discipline: %w", err)
	}
	if d == nil || d.CourseID != c.ID {
		return nil, shared.NotFound("assessment", op, "discipline")
	}

	if _, err := requireEnrollment(ctx, h.enrollments, "assessment", op, st.ID, c.ID); err != nil {
		return nil, err
	}

	existing, err := h.assessments.FindByKey(ctx, st.ID, c.ID, d.ID)
	if err != nil {
		return nil, fmt.Errorf("assessment.Create: find existing: %w", err)
	}
	if existing != nil {
		return nil, shared.AlreadyExists("assessment", op, "assessment")
	}

	a, err := assessment.New(assessment.NewParams{
		StudentID:    st.ID,
		CourseID:     c.ID,
		DisciplineID: d.ID,
		Grades:       cmd.Grades,
		Policy:       h.policy,
	})
	if err != nil {
		return nil, err
	}
	a.MarkCreated(cmd.Actor.Audit())

	if err := h.assessments.Create(ctx, a); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("assessment.Create: persist: %w", err)
	}

	return newAssessmentResult(a), nil
}
