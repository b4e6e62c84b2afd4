package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixture
// ─────────────────────────────────────────────────────────────────────────────

type recordingDispatcher struct {
	events []shared.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, agg shared.Aggregate) {
	d.events = append(d.events, agg.DrainEvents()...)
}

func (d *recordingDispatcher) types() []shared.EventType {
	out := make([]shared.EventType, len(d.events))
	for i, e := range d.events {
		out[i] = e.EventType()
	}
	return out
}

type fakeHasher struct{}

func (fakeHasher) Hash(_ context.Context, plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

var (
	admin   = shared.Actor{ID: "admin-1", Role: shared.RoleAdmin, IP: "10.0.0.1"}
	mgr     = shared.Actor{ID: "manager-1", Role: shared.RoleManager, IP: "10.0.0.2"}
	learner = shared.Actor{ID: "student-1", Role: shared.RoleStudent, IP: "10.0.0.3"}

	fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	repos      *memory.Repositories
	dispatcher *recordingDispatcher
	clock      Clock

	course   *course.Course
	finished *course.Course
	math     *course.Discipline
	physics  *course.Discipline
	north    *course.Pole
	south    *course.Pole
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := &recordingDispatcher{}
	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		repos:      memory.NewRepositories(memory.NewStore(), d),
		dispatcher: d,
		clock:      func() time.Time { return fixedNow },
	}

	var err error
	f.course, err = course.NewCourse("Pedagogia", fixedNow.AddDate(0, -2, 0), fixedNow.AddDate(0, 10, 0))
	require.NoError(t, err)
	f.finished, err = course.NewCourse("Letras", fixedNow.AddDate(-1, 0, 0), fixedNow.AddDate(0, -1, 0))
	require.NoError(t, err)
	require.NoError(t, f.repos.Courses.Create(f.ctx, f.course))
	require.NoError(t, f.repos.Courses.Create(f.ctx, f.finished))

	f.math, err = course.NewDiscipline(f.course.ID, "Matemática Básica")
	require.NoError(t, err)
	f.physics, err = course.NewDiscipline(f.course.ID, "Física")
	require.NoError(t, err)
	require.NoError(t, f.repos.Disciplines.Create(f.ctx, f.math))
	require.NoError(t, f.repos.Disciplines.Create(f.ctx, f.physics))

	f.north, err = course.NewPole("Polo Norte")
	require.NoError(t, err)
	f.south, err = course.NewPole("Polo Sul")
	require.NoError(t, err)
	require.NoError(t, f.repos.Poles.Create(f.ctx, f.north))
	require.NoError(t, f.repos.Poles.Create(f.ctx, f.south))
	return f
}

func (f *fixture) addStudent(name, email, cpf string) *student.Student {
	f.t.Helper()
	n, err := shared.NewName(name)
	require.NoError(f.t, err)
	e, err := shared.NewEmail(email)
	require.NoError(f.t, err)
	c, err := shared.NewCPF(cpf)
	require.NoError(f.t, err)

	s, err := student.NewStudent(student.NewStudentParams{
		Name: n, Email: e, CPF: c,
		Birthday:     time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC),
		PasswordHash: "hashed:" + cpf,
	})
	require.NoError(f.t, err)
	require.NoError(f.t, f.repos.Students.Create(f.ctx, s))
	return s
}

func (f *fixture) enroll(s *student.Student, c *course.Course, pole *course.Pole) *student.Enrollment {
	f.t.Helper()
	e := student.NewEnrollment(s.ID, c.ID)
	require.NoError(f.t, f.repos.Enrollments.Create(f.ctx, e))
	if pole != nil {
		require.NoError(f.t, f.repos.Placements.Create(f.ctx, student.NewPlacement(e, pole.ID)))
	}
	return e
}

func (f *fixture) createHandler() *CreateAssessmentHandler {
	return NewCreateAssessmentHandler(f.repos.Assessments, f.repos.Students, f.repos.Enrollments,
		f.repos.Courses, f.repos.Disciplines, assessment.DefaultPolicy(), f.clock)
}

func (f *fixture) seedAssessment(s *student.Student, d *course.Discipline, g assessment.Grades) *AssessmentResult {
	f.t.Helper()
	res, err := f.createHandler().Handle(f.ctx, CreateAssessmentCommand{
		Actor: admin, StudentID: s.ID, CourseID: f.course.ID, DisciplineID: d.ID, Grades: g,
	})
	require.NoError(f.t, err)
	f.dispatcher.events = nil
	return res
}

func rowOf(t *testing.T, err error) int {
	t.Helper()
	var re *batch.RowError
	require.True(t, errors.As(err, &re), "expected a row error, got %v", err)
	return re.Row
}

// ─────────────────────────────────────────────────────────────────────────────
// Single assessment use cases
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateAssessment(t *testing.T) {
	f := newFixture(t)
	s := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(s, f.course, f.north)

	cmd := CreateAssessmentCommand{
		Actor: mgr, StudentID: s.ID, CourseID: f.course.ID, DisciplineID: f.math.ID,
		Grades: assessment.Grades{VF: assessment.Score(5)},
	}
	res, err := f.createHandler().Handle(f.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Average)
	assert.Equal(t, assessment.StatusRecovering, res.Status)
	assert.Equal(t, 1, f.repos.Assessments.Len())
	assert.Equal(t, []shared.EventType{shared.EventAssessmentCreated}, f.dispatcher.types())

	_, err = f.createHandler().Handle(f.ctx, cmd)
	require.Error(t, err)
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Equal(t, 1, f.repos.Assessments.Len())
}

func TestCreateAssessment_Rejections(t *testing.T) {
	f := newFixture(t)
	enrolled := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(enrolled, f.course, f.north)
	f.enroll(enrolled, f.finished, f.north)
	outsider := f.addStudent("Bruno Lima", "bruno@example.com", "11144477735")

	otherDiscipline, err := course.NewDiscipline(f.finished.ID, "Latim")
	require.NoError(t, err)
	require.NoError(t, f.repos.Disciplines.Create(f.ctx, otherDiscipline))

	vf := assessment.Grades{VF: assessment.Score(8)}
	tests := []struct {
		name  string
		cmd   CreateAssessmentCommand
		check func(error) bool
	}{
		{"student role", CreateAssessmentCommand{Actor: learner, StudentID: enrolled.ID, CourseID: f.course.ID, DisciplineID: f.math.ID, Grades: vf}, shared.IsNotAllowed},
		{"unknown student", CreateAssessmentCommand{Actor: mgr, StudentID: "nope", CourseID: f.course.ID, DisciplineID: f.math.ID, Grades: vf}, shared.IsNotFound},
		{"finished course", CreateAssessmentCommand{Actor: mgr, StudentID: enrolled.ID, CourseID: f.finished.ID, DisciplineID: otherDiscipline.ID, Grades: vf}, shared.IsConflict},
		{"discipline of another course", CreateAssessmentCommand{Actor: mgr, StudentID: enrolled.ID, CourseID: f.course.ID, DisciplineID: otherDiscipline.ID, Grades: vf}, shared.IsNotFound},
		{"not enrolled", CreateAssessmentCommand{Actor: mgr, StudentID: outsider.ID, CourseID: f.course.ID, DisciplineID: f.math.ID, Grades: vf}, shared.IsNotFound},
		{"vf missing", CreateAssessmentCommand{Actor: mgr, StudentID: enrolled.ID, CourseID: f.course.ID, DisciplineID: f.math.ID}, shared.IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.createHandler().Handle(f.ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}
	assert.Zero(t, f.repos.Assessments.Len())
	assert.Empty(t, f.dispatcher.events)
}

func TestUpdateAndRemoveGrade(t *testing.T) {
	f := newFixture(t)
	s := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(s, f.course, f.north)
	created := f.seedAssessment(s, f.math, assessment.Grades{VF: assessment.Score(5)})

	update := NewUpdateAssessmentHandler(f.repos.Assessments, f.repos.Courses, assessment.DefaultPolicy(), f.clock)
	res, err := update.Handle(f.ctx, UpdateAssessmentCommand{
		Actor: mgr, AssessmentID: created.AssessmentID,
		Grades: assessment.Grades{VF: assessment.Score(9), AVI: assessment.Score(8), AVII: assessment.Score(7)},
	})
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.Average)
	assert.Equal(t, assessment.StatusApproved, res.Status)

	remove := NewRemoveAssessmentGradeHandler(f.repos.Assessments, f.repos.Courses, assessment.DefaultPolicy(), f.clock)

	_, err = remove.Handle(f.ctx, RemoveAssessmentGradeCommand{Actor: mgr, AssessmentID: created.AssessmentID, Component: assessment.ComponentVF, Reason: "erro"})
	assert.True(t, shared.IsConflict(err))

	_, err = remove.Handle(f.ctx, RemoveAssessmentGradeCommand{Actor: mgr, AssessmentID: created.AssessmentID, Component: assessment.ComponentAVI, Reason: " "})
	assert.True(t, shared.IsInvalidField(err))

	_, err = remove.Handle(f.ctx, RemoveAssessmentGradeCommand{Actor: mgr, AssessmentID: created.AssessmentID, Component: assessment.ComponentAVI, Reason: "lançamento duplicado"})
	assert.True(t, shared.IsConflict(err), "avi cannot go while avii is present")

	res, err = remove.Handle(f.ctx, RemoveAssessmentGradeCommand{Actor: mgr, AssessmentID: created.AssessmentID, Component: assessment.ComponentAVII, Reason: "lançamento duplicado"})
	require.NoError(t, err)
	assert.Equal(t, 8.5, res.Average)

	assert.Equal(t, []shared.EventType{shared.EventAssessmentUpdated, shared.EventGradeRemoved}, f.dispatcher.types())
	removed, ok := f.dispatcher.events[1].(assessment.GradeRemovedEvent)
	require.True(t, ok)
	assert.Equal(t, assessment.ComponentAVII, removed.Component)
	assert.Equal(t, 8.0, removed.Before.Average)
	assert.Equal(t, 8.5, removed.After.Average)
}

func TestDeleteAssessment(t *testing.T) {
	f := newFixture(t)
	s := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(s, f.course, f.north)
	created := f.seedAssessment(s, f.math, assessment.Grades{VF: assessment.Score(5)})

	h := NewDeleteAssessmentHandler(f.repos.Assessments)

	err := h.Handle(f.ctx, DeleteAssessmentCommand{Actor: mgr, AssessmentID: created.AssessmentID, Reason: "duplicada"})
	assert.True(t, shared.IsNotAllowed(err))

	require.NoError(t, h.Handle(f.ctx, DeleteAssessmentCommand{Actor: admin, AssessmentID: created.AssessmentID, Reason: "duplicada"}))
	assert.Zero(t, f.repos.Assessments.Len())
	assert.Equal(t, []shared.EventType{shared.EventAssessmentDeleted}, f.dispatcher.types())

	err = h.Handle(f.ctx, DeleteAssessmentCommand{Actor: admin, AssessmentID: created.AssessmentID, Reason: "duplicada"})
	assert.True(t, shared.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Assessment batches
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateAssessmentsBatch(t *testing.T) {
	f := newFixture(t)
	ana := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	bruno := f.addStudent("Bruno Lima", "bruno@example.com", "11144477735")
	f.enroll(ana, f.course, f.north)
	f.enroll(bruno, f.course, f.south)

	h := NewCreateAssessmentsBatchHandler(f.repos.Assessments, f.repos.AssessmentBatches, f.repos.Students,
		f.repos.Enrollments, f.repos.Courses, f.repos.Disciplines, assessment.DefaultPolicy(), f.clock)

	file := shared.SourceFile{Name: "notas.xlsx", Link: "s3://bucket/notas.xlsx"}
	res, err := h.Handle(f.ctx, CreateAssessmentsBatchCommand{
		Actor: mgr, CourseID: f.course.ID, File: file,
		Rows: []AssessmentRow{
			{StudentKey: "529.982.247-25", DisciplineName: "matematica basica", VF: assessment.Score(9)},
			{StudentKey: "bruno@example.com", DisciplineName: "FÍSICA", VF: assessment.Score(3)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, f.repos.Assessments.Len())
	assert.Equal(t, 1, f.repos.AssessmentBatches.Len())

	require.Equal(t, []shared.EventType{shared.EventAssessmentBatchCreated}, f.dispatcher.types())
	ev := f.dispatcher.events[0].(assessment.BatchCreatedEvent)
	assert.Equal(t, file, ev.File)
	assert.Len(t, ev.Lines, 2)
}

func TestCreateAssessmentsBatch_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ana := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(ana, f.course, f.north)

	h := NewCreateAssessmentsBatchHandler(f.repos.Assessments, f.repos.AssessmentBatches, f.repos.Students,
		f.repos.Enrollments, f.repos.Courses, f.repos.Disciplines, assessment.DefaultPolicy(), f.clock)

	tests := []struct {
		name  string
		rows  []AssessmentRow
		row   int
		check func(error) bool
	}{
		{
			name: "unknown discipline",
			rows: []AssessmentRow{
				{StudentKey: "ana@example.com", DisciplineName: "Matemática Básica", VF: assessment.Score(9)},
				{StudentKey: "ana@example.com", DisciplineName: "Química", VF: assessment.Score(9)},
			},
			row: 2, check: shared.IsNotFound,
		},
		{
			name: "duplicate row",
			rows: []AssessmentRow{
				{StudentKey: "ana@example.com", DisciplineName: "Física", VF: assessment.Score(9)},
				{StudentKey: "52998224725", DisciplineName: "fisica", VF: assessment.Score(4)},
			},
			row: 2, check: shared.IsAlreadyExists,
		},
		{
			name: "invalid grade",
			rows: []AssessmentRow{
				{StudentKey: "ana@example.com", DisciplineName: "Física", VF: assessment.Score(11)},
			},
			row: 1, check: shared.IsConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(f.ctx, CreateAssessmentsBatchCommand{Actor: mgr, CourseID: f.course.ID, Rows: tt.rows})
			require.Error(t, err)
			assert.Equal(t, tt.row, rowOf(t, err))
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}
	assert.Zero(t, f.repos.Assessments.Len())
	assert.Zero(t, f.repos.AssessmentBatches.Len())
	assert.Empty(t, f.dispatcher.events)
}

func TestRemoveGradesBatch(t *testing.T) {
	f := newFixture(t)
	ana := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(ana, f.course, f.north)
	f.seedAssessment(ana, f.math, assessment.Grades{VF: assessment.Score(6), AVI: assessment.Score(6), AVII: assessment.Score(3)})
	f.seedAssessment(ana, f.physics, assessment.Grades{VF: assessment.Score(6), VFE: assessment.Score(7)})

	h := NewRemoveGradesBatchHandler(f.repos.Assessments, f.repos.AssessmentBatches, f.repos.Students,
		f.repos.Courses, f.repos.Disciplines, assessment.DefaultPolicy(), f.clock)

	res, err := h.Handle(f.ctx, RemoveGradesBatchCommand{
		Actor: mgr, CourseID: f.course.ID,
		Rows: []GradeRemovalRow{
			{StudentKey: "ana@example.com", DisciplineName: "Matemática Básica", RemoveAVI: true, RemoveAVII: true},
			{StudentKey: "ana@example.com", DisciplineName: "Física", RemoveVFE: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	math, err := f.repos.Assessments.FindByKey(f.ctx, ana.ID, f.course.ID, f.math.ID)
	require.NoError(t, err)
	assert.Nil(t, math.Grades().AVI)
	assert.Nil(t, math.Grades().AVII)
	assert.Equal(t, 6.0, math.Average())

	physics, err := f.repos.Assessments.FindByKey(f.ctx, ana.ID, f.course.ID, f.physics.ID)
	require.NoError(t, err)
	assert.Nil(t, physics.Grades().VFE)
	assert.Equal(t, assessment.StatusRecovering, physics.Status())

	require.Equal(t, []shared.EventType{shared.EventAssessmentBatchGradesRemoved}, f.dispatcher.types())
	ev := f.dispatcher.events[0].(assessment.BatchGradesRemovedEvent)
	assert.Equal(t, 5.0, ev.Lines[0].Before.Average)
}

func TestRemoveGradesBatch_NothingSelected(t *testing.T) {
	f := newFixture(t)
	ana := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(ana, f.course, f.north)
	f.seedAssessment(ana, f.math, assessment.Grades{VF: assessment.Score(6), AVI: assessment.Score(6)})

	h := NewRemoveGradesBatchHandler(f.repos.Assessments, f.repos.AssessmentBatches, f.repos.Students,
		f.repos.Courses, f.repos.Disciplines, assessment.DefaultPolicy(), f.clock)

	_, err := h.Handle(f.ctx, RemoveGradesBatchCommand{
		Actor: mgr, CourseID: f.course.ID,
		Rows: []GradeRemovalRow{
			{StudentKey: "ana@example.com", DisciplineName: "Matemática Básica", RemoveAVI: true},
			{StudentKey: "ana@example.com", DisciplineName: "Física"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, 2, rowOf(t, err))

	math, err := f.repos.Assessments.FindByKey(f.ctx, ana.ID, f.course.ID, f.math.ID)
	require.NoError(t, err)
	assert.NotNil(t, math.Grades().AVI, "a rejected batch must not touch stored assessments")
}

// ─────────────────────────────────────────────────────────────────────────────
// Student batches
// ─────────────────────────────────────────────────────────────────────────────

func (f *fixture) studentsBatchHandler() *CreateStudentsBatchHandler {
	return NewCreateStudentsBatchHandler(f.repos.Students, f.repos.Enrollments, f.repos.StudentBatches,
		f.repos.Courses, f.repos.Poles, fakeHasher{}, f.clock)
}

func TestCreateStudentsBatch(t *testing.T) {
	f := newFixture(t)

	res, err := f.studentsBatchHandler().Handle(f.ctx, CreateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows: []StudentRow{
			{Name: "ana souza", Email: "ana@example.com", CPF: "529.982.247-25", Birthday: "10/05/1990", PoleName: "polo norte"},
			{Name: "Bruno Lima", Email: "bruno@example.com", CPF: "11144477735", Birthday: "1992-01-20", PoleName: "Polo Sul"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, f.repos.Students.Len())

	cpf, _ := shared.NewCPF("52998224725")
	ana, err := f.repos.Students.FindByCPF(f.ctx, cpf)
	require.NoError(t, err)
	require.NotNil(t, ana)
	assert.Equal(t, "Ana Souza", ana.Name.String())
	assert.Equal(t, "hashed:52998224725", ana.PasswordHash)

	p, err := f.repos.Placements.FindByStudentAndCourse(f.ctx, ana.ID, f.course.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, f.north.ID, p.PoleID)

	assert.Equal(t, []shared.EventType{shared.EventStudentBatchCreated}, f.dispatcher.types())
}

func TestCreateStudentsBatch_UnknownPoleRejectsWholeBatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.studentsBatchHandler().Handle(f.ctx, CreateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows: []StudentRow{
			{Name: "Ana Souza", Email: "ana@example.com", CPF: "52998224725", Birthday: "10/05/1990", PoleName: "Polo Norte"},
			{Name: "Bruno Lima", Email: "bruno@example.com", CPF: "11144477735", Birthday: "20/01/1992", PoleName: "Polo Leste"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, 2, rowOf(t, err))
	assert.True(t, shared.IsNotFound(err))

	assert.Zero(t, f.repos.Students.Len())
	assert.Zero(t, f.repos.StudentBatches.Len())
	assert.Empty(t, f.dispatcher.events)
}

func TestCreateStudentsBatch_ReusesStudentMatchedByCPF(t *testing.T) {
	f := newFixture(t)
	existing := f.addStudent("Ana Souza", "ana@example.com", "52998224725")

	res, err := f.studentsBatchHandler().Handle(f.ctx, CreateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows: []StudentRow{
			{Name: "Ana Souza", Email: "ana.souza@example.com", CPF: "52998224725", Birthday: "10/05/1990", PoleName: "Polo Norte"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, f.repos.Students.Len())

	e, err := f.repos.Enrollments.FindByStudentAndCourse(f.ctx, existing.ID, f.course.ID)
	require.NoError(t, err)
	assert.NotNil(t, e)

	ev := f.dispatcher.events[0].(student.BatchCreatedEvent)
	assert.False(t, ev.Lines[0].NewStudent)
}

func TestCreateStudentsBatch_Rejections(t *testing.T) {
	f := newFixture(t)
	enrolled := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.enroll(enrolled, f.course, f.north)

	_, err := f.studentsBatchHandler().Handle(f.ctx, CreateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows: []StudentRow{
			{Name: "Ana Souza", Email: "ana@example.com", CPF: "52998224725", Birthday: "10/05/1990", PoleName: "Polo Norte"},
		},
	})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = f.studentsBatchHandler().Handle(f.ctx, CreateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows: []StudentRow{
			{Name: "Bruno Lima", Email: "bruno@example.com", CPF: "11144477735", Birthday: "20/01/1992", PoleName: "Polo Norte"},
			{Name: "Bruno Lima", Email: "bruno2@example.com", CPF: "111.444.777-35", Birthday: "20/01/1992", PoleName: "Polo Sul"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, 2, rowOf(t, err))
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = f.studentsBatchHandler().Handle(f.ctx, CreateStudentsBatchCommand{
		Actor: mgr, CourseID: f.course.ID,
		Rows:  []StudentRow{{Name: "Bruno Lima", Email: "bruno@example.com", CPF: "11144477735", Birthday: "20/01/1992", PoleName: "Polo Norte"}},
	})
	assert.True(t, shared.IsNotAllowed(err))

	assert.Equal(t, 1, f.repos.Students.Len())
}

func TestUpdateStudentsBatch_Placements(t *testing.T) {
	f := newFixture(t)
	stays := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	moves := f.addStudent("Bruno Lima", "bruno@example.com", "11144477735")
	joins := f.addStudent("Carla Dias", "carla@example.com", "39053344705")
	f.enroll(stays, f.course, f.north)
	movedEnrollment := f.enroll(moves, f.course, f.north)

	h := NewUpdateStudentsBatchHandler(f.repos.Students, f.repos.Enrollments, f.repos.Placements,
		f.repos.StudentBatches, f.repos.Courses, f.repos.Poles, f.clock)

	res, err := h.Handle(f.ctx, UpdateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows: []StudentUpdateRow{
			{StudentKey: "ana@example.com", PoleName: "Polo Norte"},
			{StudentKey: "11144477735", Email: "bruno.lima@example.com", PoleName: "Polo Sul"},
			{StudentKey: "carla@example.com", Name: "Carla Dias Rocha", PoleName: "Polo Sul"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)

	ev := f.dispatcher.events[0].(student.BatchUpdatedEvent)
	assert.Equal(t, student.PlacementUnchanged, ev.Lines[0].Placement)
	assert.Equal(t, student.PlacementMove, ev.Lines[1].Placement)
	assert.Equal(t, student.PlacementEnroll, ev.Lines[2].Placement)

	p, err := f.repos.Placements.FindByStudentAndCourse(f.ctx, moves.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, f.south.ID, p.PoleID)
	assert.Equal(t, movedEnrollment.ID, p.EnrollmentID, "a move keeps the enrollment")

	updated, err := f.repos.Students.FindByID(f.ctx, moves.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.Email("bruno.lima@example.com"), updated.Email)

	e, err := f.repos.Enrollments.FindByStudentAndCourse(f.ctx, joins.ID, f.course.ID)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestUpdateStudentsBatch_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	f.addStudent("Bruno Lima", "bruno@example.com", "11144477735")

	h := NewUpdateStudentsBatchHandler(f.repos.Students, f.repos.Enrollments, f.repos.Placements,
		f.repos.StudentBatches, f.repos.Courses, f.repos.Poles, f.clock)

	_, err := h.Handle(f.ctx, UpdateStudentsBatchCommand{
		Actor: admin, CourseID: f.course.ID,
		Rows:  []StudentUpdateRow{{StudentKey: "bruno@example.com", Email: "ana@example.com", PoleName: "Polo Sul"}},
	})
	require.Error(t, err)
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Zero(t, f.repos.StudentBatches.Len())
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment status and reports
// ─────────────────────────────────────────────────────────────────────────────

func TestChangeEnrollmentStatus(t *testing.T) {
	f := newFixture(t)
	s := f.addStudent("Ana Souza", "ana@example.com", "52998224725")
	e := f.enroll(s, f.course, f.north)

	h := NewChangeEnrollmentStatusHandler(f.repos.Enrollments)

	require.NoError(t, h.Handle(f.ctx, ChangeEnrollmentStatusCommand{Actor: mgr, EnrollmentID: e.ID, Active: false}))
	stored, err := f.repos.Enrollments.FindByID(f.ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, []shared.EventType{shared.EventEnrollmentStatusChanged}, f.dispatcher.types())

	err = h.Handle(f.ctx, ChangeEnrollmentStatusCommand{Actor: mgr, EnrollmentID: e.ID, Active: false})
	assert.True(t, shared.IsConflict(err))

	err = h.Handle(f.ctx, ChangeEnrollmentStatusCommand{Actor: mgr, EnrollmentID: "missing", Active: true})
	assert.True(t, shared.IsNotFound(err))
}

func TestSendReport(t *testing.T) {
	f := newFixture(t)
	h := NewSendReportHandler(f.repos.Reports)

	id, err := h.SendReport(f.ctx, SendReportCommand{
		Title: "Avaliação criada", Content: "conteúdo", ActorID: admin.ID, ActorIP: admin.IP, Action: report.ActionCreate,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = h.SendReport(f.ctx, SendReportCommand{Content: "conteúdo", ActorID: admin.ID, Action: report.ActionCreate})
	assert.True(t, shared.IsInvalidField(err))

	_, err = h.SendReportBatch(f.ctx, SendReportBatchCommand{
		SendReportCommand: SendReportCommand{Title: "Lote", Content: "linhas", ActorID: admin.ID, Action: report.ActionCreate},
		File:              shared.SourceFile{Name: "alunos.xlsx"},
	})
	require.NoError(t, err)

	batches, err := f.repos.Reports.FindManyBatches(f.ctx, shared.ListOptions{})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "alunos.xlsx", batches[0].File.Name)
}
