package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
	"github.com/polos-ead/academic-records/internal/infrastructure/messaging"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/memory"
)

type env struct {
	ctx     context.Context
	repos   *memory.Repositories
	bus     *messaging.Bus
	lookups Lookups

	reporter   *manager.Manager
	student    *student.Student
	course     *course.Course
	discipline *course.Discipline
	pole       *course.Pole
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore(), messaging.NopDispatcher{})
	e := &env{
		ctx:   ctx,
		repos: repos,
		bus:   messaging.NewBus(messaging.DefaultBusConfig(zerolog.Nop())),
		lookups: Lookups{
			Managers:    repos.Managers,
			Students:    repos.Students,
			Courses:     repos.Courses,
			Disciplines: repos.Disciplines,
			Poles:       repos.Poles,
		},
	}

	var err error
	e.reporter, err = manager.NewManager("Marta Gestora", "marta@example.com", shared.RoleSecretary)
	require.NoError(t, err)
	require.NoError(t, repos.Managers.Create(ctx, e.reporter))

	e.student, err = student.NewStudent(student.NewStudentParams{
		Name: "Ana Souza", Email: "ana@example.com", CPF: "52998224725",
		Birthday: time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC), PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.NoError(t, repos.Students.Create(ctx, e.student))

	e.course, err = course.NewCourse("Pedagogia", time.Now().AddDate(0, -1, 0), time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	require.NoError(t, repos.Courses.Create(ctx, e.course))

	e.discipline, err = course.NewDiscipline(e.course.ID, "Didática")
	require.NoError(t, err)
	require.NoError(t, repos.Disciplines.Create(ctx, e.discipline))

	e.pole, err = course.NewPole("Polo Centro")
	require.NoError(t, err)
	require.NoError(t, repos.Poles.Create(ctx, e.pole))

	reports := command.NewSendReportHandler(repos.Reports)
	require.NoError(t, Register(e.bus, zerolog.Nop(), All(e.lookups, reports)...))
	return e
}

func (e *env) audit() shared.Audit {
	return shared.Audit{ActorID: e.reporter.ID, ActorIP: "10.1.1.1"}
}

func (e *env) reports(t *testing.T) []*report.Report {
	t.Helper()
	out, err := e.repos.Reports.FindMany(e.ctx, shared.ListOptions{})
	require.NoError(t, err)
	return out
}

func TestRegister_OneHandlerPerKind(t *testing.T) {
	e := newEnv(t)
	for _, kind := range []shared.EventType{
		shared.EventAssessmentCreated,
		shared.EventAssessmentUpdated,
		shared.EventGradeRemoved,
		shared.EventAssessmentDeleted,
		shared.EventEnrollmentStatusChanged,
		shared.EventAssessmentBatchCreated,
		shared.EventAssessmentBatchGradesRemoved,
		shared.EventStudentBatchCreated,
		shared.EventStudentBatchUpdated,
	} {
		assert.Equal(t, 1, e.bus.HandlerCount(kind), kind)
	}
}

func TestOnAssessmentCreated_Delivers(t *testing.T) {
	e := newEnv(t)

	e.bus.Publish(e.ctx, assessment.CreatedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventAssessmentCreated, "assessment-1"),
		Audit:        e.audit(),
		StudentID:    e.student.ID,
		CourseID:     e.course.ID,
		DisciplineID: e.discipline.ID,
		Snapshot: assessment.Snapshot{
			Grades:  assessment.Grades{VF: assessment.Score(7.5)},
			Average: 7.5,
			Status:  assessment.StatusApproved,
		},
	})

	reports := e.reports(t)
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "Avaliação lançada", r.Title)
	assert.Equal(t, report.ActionCreate, r.Action)
	assert.Equal(t, e.course.ID, r.CourseID)
	assert.Equal(t, "10.1.1.1", r.ActorIP)
	assert.Contains(t, r.Content, "Ana Souza")
	assert.Contains(t, r.Content, "529.982.247-25")
	assert.Contains(t, r.Content, "Didática")
	assert.Contains(t, r.Content, "VF 7,50")
	assert.Contains(t, r.Content, "Aprovado")
	assert.Contains(t, r.Content, " às ")
}

func TestOnAssessmentCreated_SkipsWithoutReporter(t *testing.T) {
	e := newEnv(t)
	h := NewOnAssessmentCreated(e.lookups, command.NewSendReportHandler(e.repos.Reports))

	ev := assessment.CreatedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventAssessmentCreated, "assessment-1"),
		Audit:        shared.Audit{ActorID: "unknown-manager"},
		StudentID:    e.student.ID,
		CourseID:     e.course.ID,
		DisciplineID: e.discipline.ID,
	}

	out, err := h.Handle(e.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, Skipped, out.Kind)
	assert.Equal(t, "reporter not found", out.Reason)

	e.bus.Publish(e.ctx, ev)
	assert.Empty(t, e.reports(t))
	assert.Zero(t, e.bus.DeadLetters().Size())
}

func TestOnGradeRemoved_IncludesReasonAndBothSnapshots(t *testing.T) {
	e := newEnv(t)

	e.bus.Publish(e.ctx, assessment.GradeRemovedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventGradeRemoved, "assessment-1"),
		Audit:        e.audit(),
		StudentID:    e.student.ID,
		CourseID:     e.course.ID,
		DisciplineID: e.discipline.ID,
		Component:    assessment.ComponentVFE,
		Reason:       "lançada por engano",
		Before:       assessment.Snapshot{Average: 6.5, Status: assessment.StatusApproved},
		After:        assessment.Snapshot{Average: 6, Status: assessment.StatusRecovering},
	})

	reports := e.reports(t)
	require.Len(t, reports, 1)
	assert.Equal(t, report.ActionRemove, reports[0].Action)
	assert.Contains(t, reports[0].Content, "VFE")
	assert.Contains(t, reports[0].Content, "lançada por engano")
	assert.Contains(t, reports[0].Content, "Média: 6,50")
	assert.Contains(t, reports[0].Content, "Em recuperação")
}

func TestOnEnrollmentStatusChanged(t *testing.T) {
	e := newEnv(t)

	e.bus.Publish(e.ctx, student.EnrollmentStatusChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEnrollmentStatusChanged, "enrollment-1"),
		Audit:     e.audit(),
		StudentID: e.student.ID,
		CourseID:  e.course.ID,
		Active:    false,
	})

	reports := e.reports(t)
	require.Len(t, reports, 1)
	assert.Equal(t, "Matrícula desativada", reports[0].Title)
	assert.Contains(t, reports[0].Content, "desativou")
}

func TestOnStudentBatchCreated_WritesBatchReport(t *testing.T) {
	e := newEnv(t)
	file := shared.SourceFile{Name: "alunos.xlsx", Link: "https://files.example.com/alunos.xlsx"}

	e.bus.Publish(e.ctx, student.BatchCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentBatchCreated, "batch-1"),
		Audit:     e.audit(),
		CourseID:  e.course.ID,
		File:      file,
		Lines: []student.BatchLine{
			{StudentID: e.student.ID, Name: "Ana Souza", CPF: "52998224725", PoleID: e.pole.ID, NewStudent: true, Placement: student.PlacementEnroll},
		},
	})

	batches, err := e.repos.Reports.FindManyBatches(e.ctx, shared.ListOptions{})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, file, batches[0].File)
	assert.Contains(t, batches[0].Content, "Polo Centro")
	assert.Contains(t, batches[0].Content, "novo cadastro")
	assert.Contains(t, batches[0].Content, "alunos.xlsx")
}

func TestOnAssessmentBatchCreated_SkipsOnMissingStudent(t *testing.T) {
	e := newEnv(t)
	h := NewOnAssessmentBatchCreated(e.lookups, command.NewSendReportHandler(e.repos.Reports))

	out, err := h.Handle(e.ctx, assessment.BatchCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAssessmentBatchCreated, "batch-1"),
		Audit:     e.audit(),
		CourseID:  e.course.ID,
		Lines: []assessment.BatchLine{
			{StudentID: e.student.ID, DisciplineID: e.discipline.ID},
			{StudentID: "gone", DisciplineID: e.discipline.ID},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Skipped, out.Kind)

	batches, err := e.repos.Reports.FindManyBatches(e.ctx, shared.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestHandle_WrongPayloadIsSkipped(t *testing.T) {
	e := newEnv(t)
	h := NewOnAssessmentDeleted(e.lookups, command.NewSendReportHandler(e.repos.Reports))

	out, err := h.Handle(e.ctx, student.EnrollmentStatusChangedEvent{})
	require.NoError(t, err)
	assert.Equal(t, Skipped, out.Kind)
}
