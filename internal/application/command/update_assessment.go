package command

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE ASSESSMENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAssessmentCommand replaces every grade component of an assessment.
type UpdateAssessmentCommand struct {
	Actor        shared.Actor
	AssessmentID string
	Grades       assessment.Grades
}

// UpdateAssessmentHandler handles UpdateAssessmentCommand.
type UpdateAssessmentHandler struct {
	assessments assessment.Repository
	courses     course.Repository
	policy      assessment.Policy
	clock       Clock
}

// NewUpdateAssessmentHandler creates a new UpdateAssessmentHandler.
func NewUpdateAssessmentHandler(assessments assessment.Repository, courses course.Repository, policy assessment.Policy, clock Clock) *UpdateAssessmentHandler {
	return &UpdateAssessmentHandler{assessments: assessments, courses: courses, policy: policy, clock: clock}
}

// Handle executes the command.
func (h *UpdateAssessmentHandler) Handle(ctx context.Context, cmd UpdateAssessmentCommand) (*AssessmentResult, error) {
	const op = "Update"

	if err := shared.StaffOnly.Check("assessment", op, cmd.Actor); err != nil {
		return nil, err
	}

	a, err := loadAssessment(ctx, h.assessments, op, cmd.AssessmentID)
	if err != nil {
		return nil, err
	}
	if _, err := loadCourse(ctx, h.courses, "assessment", op, a.CourseID, true, h.clock.now()); err != nil {
		return nil, err
	}

	before := a.Snapshot()
	if err := a.SetGrades(cmd.Grades, h.policy); err != nil {
		return nil, err
	}
	a.MarkUpdated(cmd.Actor.Audit(), before)

	if err := h.assessments.Save(ctx, a); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("assessment.Update: persist: %w", err)
	}
	return newAssessmentResult(a), nil
}

func loadAssessment(ctx context.Context, assessments assessment.Repository, op, id string) (*assessment.Assessment, error) {
	if id == "" {
		return nil, shared.InvalidField("assessment", op, "assessment id")
	}
	a, err := assessments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("assessment.%s: find assessment: %w", op, err)
	}
	if a == nil {
		return nil, shared.NotFound("assessment", op, "assessment")
	}
	return a, nil
}
