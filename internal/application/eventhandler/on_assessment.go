package eventhandler

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SINGLE ASSESSMENT REPORTS
// ══════════════════════════════════════════════════════════════════════════════

// singleReport is the common path of every one-entity subscriber: load the
// context, skip when something is missing, render and send.
type singleReport struct {
	lookups Lookups
	reports ReportSender
}

type singleReportJob struct {
	query  contextQuery
	audit  shared.Audit
	title  string
	action report.Action
	render func(rc reportContext) string
}

func (s singleReport) send(ctx context.Context, job singleReportJob) (Outcome, error) {
	rc, err := s.lookups.load(ctx, job.query)
	if err != nil {
		return Outcome{}, err
	}
	if reason := rc.missing(job.query); reason != "" {
		return skipped(reason), nil
	}

	id, err := s.reports.SendReport(ctx, command.SendReportCommand{
		Title:    job.title,
		Content:  job.render(rc),
		ActorID:  job.audit.ActorID,
		ActorIP:  job.audit.ActorIP,
		CourseID: job.query.CourseID,
		Action:   job.action,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("send report: %w", err)
	}
	return delivered(id), nil
}

func assessmentQuery(actorID, studentID, courseID, disciplineID string) contextQuery {
	return contextQuery{
		ReporterID:   actorID,
		StudentID:    studentID,
		CourseID:     courseID,
		DisciplineID: disciplineID,
	}
}

// assessmentHeader renders "<reporter> <action> de <student> ..."; action
// names what happened to the assessment.
func assessmentHeader(rc reportContext, action string, at shared.Event) string {
	return fmt.Sprintf("%s (%s) %s de %s (CPF %s) na disciplina %s do curso %s em %s.",
		rc.Reporter.Name, rc.Reporter.Email, action,
		rc.Student.Name, rc.Student.CPF.Formatted(),
		rc.Discipline.Name, rc.Course.Name,
		timeutil.FormatBR(at.OccurredAt()))
}

// ─────────────────────────────────────────────────────────────────────────────
// Created
// ─────────────────────────────────────────────────────────────────────────────

// OnAssessmentCreated reports AssessmentCreated.
type OnAssessmentCreated struct{ singleReport }

// NewOnAssessmentCreated creates the subscriber.
func NewOnAssessmentCreated(lookups Lookups, reports ReportSender) *OnAssessmentCreated {
	return &OnAssessmentCreated{singleReport{lookups: lookups, reports: reports}}
}

func (h *OnAssessmentCreated) Name() string                { return "on_assessment_created" }
func (h *OnAssessmentCreated) EventType() shared.EventType { return shared.EventAssessmentCreated }

// Handle implements Subscriber.
func (h *OnAssessmentCreated) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(assessment.CreatedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, singleReportJob{
		query:  assessmentQuery(ev.ActorID, ev.StudentID, ev.CourseID, ev.DisciplineID),
		audit:  ev.Audit,
		title:  "Avaliação lançada",
		action: report.ActionCreate,
		render: func(rc reportContext) string {
			return assessmentHeader(rc, "lançou a avaliação", ev) + "\n\n" + formatSnapshot(ev.Snapshot)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Updated
// ─────────────────────────────────────────────────────────────────────────────

// OnAssessmentUpdated reports AssessmentUpdated with the before and after
// grades.
type OnAssessmentUpdated struct{ singleReport }

// NewOnAssessmentUpdated creates the subscriber.
func NewOnAssessmentUpdated(lookups Lookups, reports ReportSender) *OnAssessmentUpdated {
	return &OnAssessmentUpdated{singleReport{lookups: lookups, reports: reports}}
}

func (h *OnAssessmentUpdated) Name() string                { return "on_assessment_updated" }
func (h *OnAssessmentUpdated) EventType() shared.EventType { return shared.EventAssessmentUpdated }

// Handle implements Subscriber.
func (h *OnAssessmentUpdated) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(assessment.UpdatedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, singleReportJob{
		query:  assessmentQuery(ev.ActorID, ev.StudentID, ev.CourseID, ev.DisciplineID),
		audit:  ev.Audit,
		title:  "Avaliação alterada",
		action: report.ActionUpdate,
		render: func(rc reportContext) string {
			return assessmentHeader(rc, "alterou a avaliação", ev) +
				"\n\nAntes:\n" + formatSnapshot(ev.Before) +
				"\n\nDepois:\n" + formatSnapshot(ev.After)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Grade removed
// ─────────────────────────────────────────────────────────────────────────────

// OnGradeRemoved reports GradeRemoved.
type OnGradeRemoved struct{ singleReport }

// NewOnGradeRemoved creates the subscriber.
func NewOnGradeRemoved(lookups Lookups, reports ReportSender) *OnGradeRemoved {
	return &OnGradeRemoved{singleReport{lookups: lookups, reports: reports}}
}

func (h *OnGradeRemoved) Name() string                { return "on_grade_removed" }
func (h *OnGradeRemoved) EventType() shared.EventType { return shared.EventGradeRemoved }

// Handle implements Subscriber.
func (h *OnGradeRemoved) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(assessment.GradeRemovedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, singleReportJob{
		query:  assessmentQuery(ev.ActorID, ev.StudentID, ev.CourseID, ev.DisciplineID),
		audit:  ev.Audit,
		title:  "Nota removida",
		action: report.ActionRemove,
		render: func(rc reportContext) string {
			return assessmentHeader(rc, "removeu a nota "+formatComponent(ev.Component)+" da avaliação", ev) +
				"\nMotivo: " + ev.Reason +
				"\n\nAntes:\n" + formatSnapshot(ev.Before) +
				"\n\nDepois:\n" + formatSnapshot(ev.After)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Deleted
// ─────────────────────────────────────────────────────────────────────────────

// OnAssessmentDeleted reports AssessmentDeleted with the last known grades.
type OnAssessmentDeleted struct{ singleReport }

// NewOnAssessmentDeleted creates the subscriber.
func NewOnAssessmentDeleted(lookups Lookups, reports ReportSender) *OnAssessmentDeleted {
	return &OnAssessmentDeleted{singleReport{lookups: lookups, reports: reports}}
}

func (h *OnAssessmentDeleted) Name() string                { return "on_assessment_deleted" }
func (h *OnAssessmentDeleted) EventType() shared.EventType { return shared.EventAssessmentDeleted }

// Handle implements Subscriber.
func (h *OnAssessmentDeleted) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(assessment.DeletedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}
	return h.send(ctx, singleReportJob{
		query:  assessmentQuery(ev.ActorID, ev.StudentID, ev.CourseID, ev.DisciplineID),
		audit:  ev.Audit,
		title:  "Avaliação excluída",
		action: report.ActionDelete,
		render: func(rc reportContext) string {
			return assessmentHeader(rc, "excluiu a avaliação", ev) +
				"\nMotivo: " + ev.Reason +
				"\n\nÚltimas notas:\n" + formatSnapshot(ev.Snapshot)
		},
	})
}
