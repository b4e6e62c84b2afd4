package command

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// ChangeEnrollmentStatusCommand activates or deactivates a student in a
// course.
type ChangeEnrollmentStatusCommand struct {
	Actor        shared.Actor
	EnrollmentID string
	Active       bool
}

// ChangeEnrollmentStatusHandler handles ChangeEnrollmentStatusCommand.
type ChangeEnrollmentStatusHandler struct {
	enrollments student.EnrollmentRepository
}

// NewChangeEnrollmentStatusHandler creates a new ChangeEnrollmentStatusHandler.
func NewChangeEnrollmentStatusHandler(enrollments student.EnrollmentRepository) *ChangeEnrollmentStatusHandler {
	return &ChangeEnrollmentStatusHandler{enrollments: enrollments}
}

// Handle executes the command.
func (h *ChangeEnrollmentStatusHandler) Handle(ctx context.Context, cmd ChangeEnrollmentStatusCommand) error {
	const op = "ChangeEnrollmentStatus"

	if err := shared.StaffOnly.Check("student", op, cmd.Actor); err != nil {
		return err
	}
	if cmd.EnrollmentID == "" {
		return shared.InvalidField("student", op, "enrollment id")
	}

	e, err := h.enrollments.FindByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return fmt.Errorf("student.ChangeEnrollmentStatus: find enrollment: %w", err)
	}
	if e == nil {
		return shared.NotFound("student", op, "enrollment")
	}

	if err := e.SetActive(cmd.Active, cmd.Actor.Audit()); err != nil {
		return err
	}
	if err := h.enrollments.Save(ctx, e); err != nil {
		if shared.IsBusiness(err) {
			return err
		}
		return fmt.Errorf("student.ChangeEnrollmentStatus: persist: %w", err)
	}
	return nil
}
