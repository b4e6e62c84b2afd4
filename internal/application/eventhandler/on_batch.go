package eventhandler

import (
	"context"
	"fmt"
	"strings"

	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
	"github.com/polos-ead/academic-records/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH REPORTS
// One consolidated report per batch, listing every row.
// ══════════════════════════════════════════════════════════════════════════════

type batchReport struct {
	lookups Lookups
	reports ReportSender
}

type batchReportJob struct {
	event    shared.Event
	audit    shared.Audit
	courseID string
	file     shared.SourceFile
	title    string
	verb     string
	action   report.Action

	// rows renders the body. ok=false skips the report.
	rows func(ctx context.Context) (body string, ok bool, err error)
}

func (s batchReport) send(ctx context.Context, job batchReportJob) (Outcome, error) {
	q := contextQuery{ReporterID: job.audit.ActorID, CourseID: job.courseID}
	rc, err := s.lookups.load(ctx, q)
	if err != nil {
		return Outcome{}, err
	}
	if reason := rc.missing(q); reason != "" {
		return skipped(reason), nil
	}

	body, ok, err := job.rows(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return skipped("batch row references a missing entity"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) %s no curso %s em %s.",
		rc.Reporter.Name, rc.Reporter.Email, job.verb, rc.Course.Name,
		timeutil.FormatBR(job.event.OccurredAt()))
	if job.file.Name != "" {
		fmt.Fprintf(&b, "\nArquivo: %s", job.file.Name)
	}
	b.WriteString("\n\n")
	b.WriteString(body)

	id, err := s.reports.SendReportBatch(ctx, command.SendReportBatchCommand{
		SendReportCommand: command.SendReportCommand{
			Title:    job.title,
			Content:  b.String(),
			ActorID:  job.audit.ActorID,
			ActorIP:  job.audit.ActorIP,
			CourseID: job.courseID,
			Action:   job.action,
		},
		File: job.file,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("send batch report: %w", err)
	}
	return delivered(id), nil
}

// assessmentRows resolves student and discipline names for every line.
func (s batchReport) assessmentRows(lines []assessment.BatchLine, render func(l assessment.BatchLine, student, discipline string) string) func(context.Context) (string, bool, error) {
	return func(ctx context.Context) (string, bool, error) {
		studentIDs := make([]string, len(lines))
		disciplineIDs := make([]string, len(lines))
		for i, l := range lines {
			studentIDs[i] = l.StudentID
			disciplineIDs[i] = l.DisciplineID
		}

		students, ok, err := names(ctx, studentIDs, s.lookups.studentName)
		if err != nil || !ok {
			return "", ok, err
		}
		disciplines, ok, err := names(ctx, disciplineIDs, s.lookups.disciplineName)
		if err != nil || !ok {
			return "", ok, err
		}

		var b strings.Builder
		for i, l := range lines {
			fmt.Fprintf(&b, "%d. %s\n", i+1, render(l, students[l.StudentID], disciplines[l.DisciplineID]))
		}
		return b.String(), true, nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Assessment batches
// ─────────────────────────────────────────────────────────────────────────────

// OnAssessmentBatchCreated reports AssessmentBatchCreated.
type OnAssessmentBatchCreated struct{ batchReport }

// NewOnAssessmentBatchCreated creates the subscriber.
func NewOnAssessmentBatchCreated(lookups Lookups, reports ReportSender) *OnAssessmentBatchCreated {
	return &OnAssessmentBatchCreated{batchReport{lookups: lookups, reports: reports}}
}

func (h *OnAssessmentBatchCreated) Name() string { return "on_assessment_batch_created" }

func (h *OnAssessmentBatchCreated) EventType() shared.EventType {
	return shared.EventAssessmentBatchCreated
}

// Handle implements Subscriber.
func (h *OnAssessmentBatchCreated) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(assessment.BatchCreatedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, batchReportJob{
		event:    ev,
		audit:    ev.Audit,
		courseID: ev.CourseID,
		file:     ev.File,
		title:    fmt.Sprintf("Lançamento de %d avaliações em lote", len(ev.Lines)),
		verb:     fmt.Sprintf("lançou %d avaliações em lote", len(ev.Lines)),
		action:   report.ActionCreate,
		rows: h.assessmentRows(ev.Lines, func(l assessment.BatchLine, st, d string) string {
			return fmt.Sprintf("%s - %s: %s | Média %s (%s)",
				st, d, formatGrades(l.After.Grades), formatNumber(l.After.Average), formatStatus(l.After.Status))
		}),
	})
}

// OnAssessmentBatchGradesRemoved reports AssessmentBatchGradesRemoved.
type OnAssessmentBatchGradesRemoved struct{ batchReport }

// NewOnAssessmentBatchGradesRemoved creates the subscriber.
func NewOnAssessmentBatchGradesRemoved(lookups Lookups, reports ReportSender) *OnAssessmentBatchGradesRemoved {
	return &OnAssessmentBatchGradesRemoved{batchReport{lookups: lookups, reports: reports}}
}

func (h *OnAssessmentBatchGradesRemoved) Name() string { return "on_assessment_batch_grades_removed" }

func (h *OnAssessmentBatchGradesRemoved) EventType() shared.EventType {
	return shared.EventAssessmentBatchGradesRemoved
}

// Handle implements Subscriber.
func (h *OnAssessmentBatchGradesRemoved) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(assessment.BatchGradesRemovedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, batchReportJob{
		event:    ev,
		audit:    ev.Audit,
		courseID: ev.CourseID,
		file:     ev.File,
		title:    fmt.Sprintf("Remoção de notas em lote (%d avaliações)", len(ev.Lines)),
		verb:     fmt.Sprintf("removeu notas de %d avaliações em lote", len(ev.Lines)),
		action:   report.ActionRemove,
		rows: h.assessmentRows(ev.Lines, func(l assessment.BatchLine, st, d string) string {
			return fmt.Sprintf("%s - %s: removidas %s | Média %s -> %s (%s)",
				st, d, formatComponents(l.Removed),
				formatNumber(l.Before.Average), formatNumber(l.After.Average), formatStatus(l.After.Status))
		}),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Student batches
// ─────────────────────────────────────────────────────────────────────────────

func (s batchReport) studentRows(lines []student.BatchLine) func(context.Context) (string, bool, error) {
	return func(ctx context.Context) (string, bool, error) {
		poleIDs := make([]string, len(lines))
		for i, l := range lines {
			poleIDs[i] = l.PoleID
		}
		poles, ok, err := names(ctx, poleIDs, s.lookups.poleName)
		if err != nil || !ok {
			return "", ok, err
		}

		var b strings.Builder
		for i, l := range lines {
			cpf := shared.CPF(l.CPF).Formatted()
			fmt.Fprintf(&b, "%d. %s (CPF %s) - %s", i+1, l.Name, cpf, formatPlacement(l.Placement))
			if name, ok := poles[l.PoleID]; ok {
				fmt.Fprintf(&b, " - polo %s", name)
			}
			if l.NewStudent {
				b.WriteString(" - novo cadastro")
			}
			b.WriteString("\n")
		}
		return b.String(), true, nil
	}
}

// OnStudentBatchCreated reports StudentBatchCreated.
type OnStudentBatchCreated struct{ batchReport }

// NewOnStudentBatchCreated creates the subscriber.
func NewOnStudentBatchCreated(lookups Lookups, reports ReportSender) *OnStudentBatchCreated {
	return &OnStudentBatchCreated{batchReport{lookups: lookups, reports: reports}}
}

func (h *OnStudentBatchCreated) Name() string                { return "on_student_batch_created" }
func (h *OnStudentBatchCreated) EventType() shared.EventType { return shared.EventStudentBatchCreated }

// Handle implements Subscriber.
func (h *OnStudentBatchCreated) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(student.BatchCreatedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, batchReportJob{
		event:    ev,
		audit:    ev.Audit,
		courseID: ev.CourseID,
		file:     ev.File,
		title:    fmt.Sprintf("Matrícula de %d alunos em lote", len(ev.Lines)),
		verb:     fmt.Sprintf("matriculou %d alunos em lote", len(ev.Lines)),
		action:   report.ActionCreate,
		rows:     h.studentRows(ev.Lines),
	})
}

// OnStudentBatchUpdated reports StudentBatchUpdated.
type OnStudentBatchUpdated struct{ batchReport }

// NewOnStudentBatchUpdated creates the subscriber.
func NewOnStudentBatchUpdated(lookups Lookups, reports ReportSender) *OnStudentBatchUpdated {
	return &OnStudentBatchUpdated{batchReport{lookups: lookups, reports: reports}}
}

func (h *OnStudentBatchUpdated) Name() string                { return "on_student_batch_updated" }
func (h *OnStudentBatchUpdated) EventType() shared.EventType { return shared.EventStudentBatchUpdated }

// Handle implements Subscriber.
func (h *OnStudentBatchUpdated) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(student.BatchUpdatedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, batchReportJob{
		event:    ev,
		audit:    ev.Audit,
		courseID: ev.CourseID,
		file:     ev.File,
		title:    fmt.Sprintf("Atualização de %d alunos em lote", len(ev.Lines)),
		verb:     fmt.Sprintf("atualizou %d alunos em lote", len(ev.Lines)),
		action:   report.ActionUpdate,
		rows:     h.studentRows(ev.Lines),
	})
}

// All builds one subscriber per reported event kind.
func All(lookups Lookups, reports ReportSender) []Subscriber {
	return []Subscriber{
		NewOnAssessmentCreated(lookups, reports),
		NewOnAssessmentUpdated(lookups, reports),
		NewOnGradeRemoved(lookups, reports),
		NewOnAssessmentDeleted(lookups, reports),
		NewOnEnrollmentStatusChanged(lookups, reports),
		NewOnAssessmentBatchCreated(lookups, reports),
		NewOnAssessmentBatchGradesRemoved(lookups, reports),
		NewOnStudentBatchCreated(lookups, reports),
		NewOnStudentBatchUpdated(lookups, reports),
	}
}
