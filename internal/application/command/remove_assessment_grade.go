package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE ASSESSMENT GRADE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RemoveAssessmentGradeCommand clears one of avi, avii or vfe.
type RemoveAssessmentGradeCommand struct {
	Actor        shared.Actor
	AssessmentID string
	Component    assessment.Component
	Reason       string
}

// Validate checks the component and the reason.
func (c RemoveAssessmentGradeCommand) Validate() error {
	switch c.Component {
	case assessment.ComponentAVI, assessment.ComponentAVII, assessment.ComponentVFE:
	case assessment.ComponentVF:
		return shared.Conflict("assessment", "RemoveGrade", "VF cannot be removed")
	default:
		return shared.InvalidField("assessment", "RemoveGrade", "component")
	}
	if strings.TrimSpace(c.Reason) == "" {
		return shared.InvalidField("assessment", "RemoveGrade", "reason")
	}
	return nil
}

// RemoveAssessmentGradeHandler handles RemoveAssessmentGradeCommand.
type RemoveAssessmentGradeHandler struct {
	assessments assessment.Repository
	courses     course.Repository
	policy      assessment.Policy
	clock       Clock
}

// NewRemoveAssessmentGradeHandler creates a new RemoveAssessmentGradeHandler.
func NewRemoveAssessmentGradeHandler(assessments assessment.Repository, courses course.Repository, policy assessment.Policy, clock Clock) *RemoveAssessmentGradeHandler {
	return &RemoveAssessmentGradeHandler{assessments: assessments, courses: courses, policy: policy, clock: clock}
}

// Handle executes the command.
func (h *RemoveAssessmentGradeHandler) Handle(ctx context.Context, cmd RemoveAssessmentGradeCommand) (*AssessmentResult, error) {
	const op = "RemoveGrade"

	if err := shared.StaffOnly.Check("assessment", op, cmd.Actor); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
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
	if err := a.RemoveGrade(cmd.Component, h.policy); err != nil {
		return nil, err
	}
	a.MarkGradeRemoved(cmd.Actor.Audit(), cmd.Component, strings.TrimSpace(cmd.Reason), before)

	if err := h.assessments.Save(ctx, a); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("assessment.RemoveGrade: persist: %w", err)
	}
	return newAssessmentResult(a), nil
}
