package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// DeleteAssessmentCommand removes an assessment.
type DeleteAssessmentCommand struct {
	Actor        shared.Actor
	AssessmentID string
	Reason       string
}

// DeleteAssessmentHandler handles DeleteAssessmentCommand. The deleted event
// is queued before the delete and dispatched by the repository after it.
type DeleteAssessmentHandler struct {
	assessments assessment.Repository
}

// NewDeleteAssessmentHandler creates a new DeleteAssessmentHandler.
func NewDeleteAssessmentHandler(assessments assessment.Repository) *DeleteAssessmentHandler {
	return &DeleteAssessmentHandler{assessments: assessments}
}

// Handle executes the command.
func (h *DeleteAssessmentHandler) Handle(ctx context.Context, cmd DeleteAssessmentCommand) error {
	const op = "Delete"

	if err := shared.AdminOnly.Check("assessment", op, cmd.Actor); err != nil {
		return err
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return shared.InvalidField("assessment", op, "reason")
	}

	a, err := loadAssessment(ctx, h.assessments, op, cmd.AssessmentID)
	if err != nil {
		return err
	}

	a.MarkDeleted(cmd.Actor.Audit(), reason)
	if err := h.assessments.Delete(ctx, a); err != nil {
		if shared.IsBusiness(err) {
			return err
		}
		return fmt.Errorf("assessment.Delete: persist: %w", err)
	}
	return nil
}
