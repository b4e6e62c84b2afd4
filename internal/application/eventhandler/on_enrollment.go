package eventhandler

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
	"github.com/polos-ead/academic-records/pkg/timeutil"
)

// OnEnrollmentStatusChanged reports EnrollmentStatusChanged.
type OnEnrollmentStatusChanged struct{ singleReport }

// NewOnEnrollmentStatusChanged creates the subscriber.
func NewOnEnrollmentStatusChanged(lookups Lookups, reports ReportSender) *OnEnrollmentStatusChanged {
	return &OnEnrollmentStatusChanged{singleReport{lookups: lookups, reports: reports}}
}

func (h *OnEnrollmentStatusChanged) Name() string { return "on_enrollment_status_changed" }

func (h *OnEnrollmentStatusChanged) EventType() shared.EventType {
	return shared.EventEnrollmentStatusChanged
}

// Handle implements Subscriber.
func (h *OnEnrollmentStatusChanged) Handle(ctx context.Context, event shared.Event) (Outcome, error) {
	ev, ok := event.(student.EnrollmentStatusChangedEvent)
	if !ok {
		return unexpected(h.Name(), event), nil
	}

	title := "Matrícula desativada"
	if ev.Active {
		title = "Matrícula ativada"
	}
	return h.send(ctx, singleReportJob{
		query: contextQuery{
			ReporterID: ev.ActorID,
			StudentID:  ev.StudentID,
			CourseID:   ev.CourseID,
		},
		audit:  ev.Audit,
		title:  title,
		action: report.ActionUpdate,
		render: func(rc reportContext) string {
			return fmt.Sprintf("%s (%s) %s a matrícula de %s (CPF %s) no curso %s em %s.",
				rc.Reporter.Name, rc.Reporter.Email, verbFor(ev.Active),
				rc.Student.Name, rc.Student.CPF.Formatted(), rc.Course.Name,
				timeutil.FormatBR(ev.OccurredAt())) +
				"\nSituação atual: " + formatActive(ev.Active)
		},
	})
}

func verbFor(active bool) string {
	if active {
		return "ativou"
	}
	return "desativou"
}
