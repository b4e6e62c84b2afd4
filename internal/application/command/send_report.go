package command

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND REPORT
// Used by the report subscribers; no role check because the actor was already
// authorized by the use case that raised the event.
// ══════════════════════════════════════════════════════════════════════════════

// SendReportCommand appends one audit entry.
type SendReportCommand struct {
	Title    string
	Content  string
	ActorID  string
	ActorIP  string
	CourseID string
	Action   report.Action
}

func (c SendReportCommand) params() report.Params {
	return report.Params{
		Title:    c.Title,
		Content:  c.Content,
		ActorID:  c.ActorID,
		ActorIP:  c.ActorIP,
		CourseID: c.CourseID,
		Action:   c.Action,
	}
}

// SendReportBatchCommand appends the consolidated entry of a bulk operation.
type SendReportBatchCommand struct {
	SendReportCommand
	File shared.SourceFile
}

// SendReportHandler handles both report commands.
type SendReportHandler struct {
	reports report.Repository
}

// NewSendReportHandler creates a new SendReportHandler.
func NewSendReportHandler(reports report.Repository) *SendReportHandler {
	return &SendReportHandler{reports: reports}
}

// SendReport stores a single report and returns its id.
func (h *SendReportHandler) SendReport(ctx context.Context, cmd SendReportCommand) (string, error) {
	r, err := report.New(cmd.params())
	if err != nil {
		return "", err
	}
	if err := h.reports.Create(ctx, r); err != nil {
		return "", fmt.Errorf("report.SendReport: persist: %w", err)
	}
	return r.ID, nil
}

// SendReportBatch stores a batch report and returns its id.
func (h *SendReportHandler) SendReportBatch(ctx context.Context, cmd SendReportBatchCommand) (string, error) {
	b, err := report.NewBatch(cmd.params(), cmd.File)
	if err != nil {
		return "", err
	}
	if err := h.reports.CreateBatch(ctx, b); err != nil {
		return "", fmt.Errorf("report.SendReportBatch: persist: %w", err)
	}
	return b.ID, nil
}
