package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
	"github.com/polos-ead/academic-records/internal/infrastructure/messaging"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/memory"
	"github.com/polos-ead/academic-records/internal/infrastructure/spreadsheet"
	"github.com/polos-ead/academic-records/internal/infrastructure/storage"
	"github.com/polos-ead/academic-records/internal/interface/http/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixture
// ─────────────────────────────────────────────────────────────────────────────

type fakeHasher struct{}

func (fakeHasher) Hash(_ context.Context, plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

type recordingUploader struct {
	mu      sync.Mutex
	names   []string
	deleted []string
}

func (u *recordingUploader) Upload(_ context.Context, name string, _ []byte) (storage.Object, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, name)
	return storage.Object{
		SourceFile: shared.SourceFile{Name: name, Link: "https://files.example.com/" + name},
		Key:        "uploads/" + name,
	}, nil
}

func (u *recordingUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, key)
	return nil
}

type testServer struct {
	t        *testing.T
	ctx      context.Context
	handler  http.Handler
	repos    *memory.Repositories
	tokens   *handlers.TokenVerifier
	uploader *recordingUploader

	course  *course.Course
	physics *course.Discipline
	north   *course.Pole
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	bus := messaging.NewBus(messaging.DefaultBusConfig(log))
	repos := memory.NewRepositories(memory.NewStore(), messaging.NewDispatcher(bus, log))

	ts := &testServer{
		t:        t,
		ctx:      context.Background(),
		repos:    repos,
		tokens:   handlers.NewTokenVerifier("test-secret", "academic-records"),
		uploader: &recordingUploader{},
	}

	var err error
	now := time.Now()
	ts.course, err = course.NewCourse("Pedagogia", now.AddDate(0, -1, 0), now.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.NoError(t, repos.Courses.Create(ts.ctx, ts.course))
	ts.physics, err = course.NewDiscipline(ts.course.ID, "Física")
	require.NoError(t, err)
	require.NoError(t, repos.Disciplines.Create(ts.ctx, ts.physics))
	ts.north, err = course.NewPole("Polo Norte")
	require.NoError(t, err)
	require.NoError(t, repos.Poles.Create(ts.ctx, ts.north))

	policy := assessment.DefaultPolicy()
	srv, err := NewServer(DefaultConfig(), Dependencies{
		CreateAssessment: command.NewCreateAssessmentHandler(repos.Assessments, repos.Students, repos.Enrollments,
			repos.Courses, repos.Disciplines, policy, nil),
		UpdateAssessment:      command.NewUpdateAssessmentHandler(repos.Assessments, repos.Courses, policy, nil),
		RemoveAssessmentGrade: command.NewRemoveAssessmentGradeHandler(repos.Assessments, repos.Courses, policy, nil),
		DeleteAssessment:      command.NewDeleteAssessmentHandler(repos.Assessments),
		CreateAssessmentsBatch: command.NewCreateAssessmentsBatchHandler(repos.Assessments, repos.AssessmentBatches,
			repos.Students, repos.Enrollments, repos.Courses, repos.Disciplines, policy, nil),
		RemoveGradesBatch: command.NewRemoveGradesBatchHandler(repos.Assessments, repos.AssessmentBatches,
			repos.Students, repos.Courses, repos.Disciplines, policy, nil),
		CreateStudentsBatch: command.NewCreateStudentsBatchHandler(repos.Students, repos.Enrollments,
			repos.StudentBatches, repos.Courses, repos.Poles, fakeHasher{}, nil),
		UpdateStudentsBatch: command.NewUpdateStudentsBatchHandler(repos.Students, repos.Enrollments,
			repos.Placements, repos.StudentBatches, repos.Courses, repos.Poles, nil),
		ChangeEnrollmentStatus: command.NewChangeEnrollmentStatusHandler(repos.Enrollments),
		Parser:                 spreadsheet.NewParser(0),
		Storage:                ts.uploader,
		Tokens:                 ts.tokens,
		Events:                 bus.Metrics(),
		Logger:                 log,
	})
	require.NoError(t, err)
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) addStudent(name, email, cpf string) (*student.Student, *student.Enrollment) {
	ts.t.Helper()
	n, err := shared.NewName(name)
	require.NoError(ts.t, err)
	e, err := shared.NewEmail(email)
	require.NoError(ts.t, err)
	c, err := shared.NewCPF(cpf)
	require.NoError(ts.t, err)

	s, err := student.NewStudent(student.NewStudentParams{
		Name: n, Email: e, CPF: c,
		Birthday:     time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC),
		PasswordHash: "hashed:" + cpf,
	})
	require.NoError(ts.t, err)
	require.NoError(ts.t, ts.repos.Students.Create(ts.ctx, s))

	enrollment := student.NewEnrollment(s.ID, ts.course.ID)
	require.NoError(ts.t, ts.repos.Enrollments.Create(ts.ctx, enrollment))
	require.NoError(ts.t, ts.repos.Placements.Create(ts.ctx, student.NewPlacement(enrollment, ts.north.ID)))
	return s, enrollment
}

func (ts *testServer) token(role shared.Role) string {
	ts.t.Helper()
	tok, err := ts.tokens.Issue(shared.Actor{ID: "actor-" + string(role), Role: role}, time.Hour)
	require.NoError(ts.t, err)
	return tok
}

type envelope struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   *handlers.APIError `json:"error"`
}

func (ts *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return ts.send(req, token)
}

func (ts *testServer) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"events"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/assessments", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Code)

	other := handlers.NewTokenVerifier("another-secret", "academic-records")
	forged, err := other.Issue(shared.Actor{ID: "x", Role: shared.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	rec, _ = ts.do(http.MethodPost, "/api/v1/assessments", forged, map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := ts.tokens.Issue(shared.Actor{ID: "x", Role: shared.RoleAdmin}, -time.Minute)
	require.NoError(t, err)
	rec, _ = ts.do(http.MethodPost, "/api/v1/assessments", expired, map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAssessment(t *testing.T) {
	ts := newTestServer(t)
	ana, _ := ts.addStudent("Ana Souza", "ana@example.com", "52998224725")

	body := map[string]any{
		"student_id":    ana.ID,
		"course_id":     ts.course.ID,
		"discipline_id": ts.physics.ID,
		"vf":            8,
		"avi":           7,
	}

	rec, env := ts.do(http.MethodPost, "/api/v1/assessments", ts.token(shared.RoleManager), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got assessmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, 7.5, got.Average)
	assert.Equal(t, string(assessment.StatusApproved), got.Status)
	assert.False(t, got.IsRecovering)

	rec, env = ts.do(http.MethodPost, "/api/v1/assessments", ts.token(shared.RoleManager), body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "already_exists", env.Error.Code)
}

func TestCreateAssessment_StudentRoleIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	ana, _ := ts.addStudent("Ana Souza", "ana@example.com", "52998224725")

	rec, env := ts.do(http.MethodPost, "/api/v1/assessments", ts.token(shared.RoleStudent), map[string]any{
		"student_id":    ana.ID,
		"course_id":     ts.course.ID,
		"discipline_id": ts.physics.ID,
		"vf":            8,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_allowed", env.Error.Code)
}

func TestCreateAssessment_MissingFields(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/assessments", ts.token(shared.RoleAdmin), map[string]any{"vf": 8})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_request", env.Error.Code)
	assert.Contains(t, env.Error.Details, "student_id")
}

func TestAssessmentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ana, _ := ts.addStudent("Ana Souza", "ana@example.com", "52998224725")
	admin := ts.token(shared.RoleAdmin)

	rec, env := ts.do(http.MethodPost, "/api/v1/assessments", admin, map[string]any{
		"student_id":    ana.ID,
		"course_id":     ts.course.ID,
		"discipline_id": ts.physics.ID,
		"vf":            5,
		"avi":           5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created assessmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, created.IsRecovering)

	path := "/api/v1/assessments/" + created.ID

	rec, env = ts.do(http.MethodPut, path, admin, map[string]any{"vf": 5, "avi": 5, "vfe": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated assessmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 6.0, updated.Average)
	assert.Equal(t, string(assessment.StatusApproved), updated.Status)

	rec, env = ts.do(http.MethodPost, path+"/remove-grade", admin, map[string]any{"component": "vf", "reason": "erro"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = ts.do(http.MethodPost, path+"/remove-grade", admin, map[string]any{"component": "VFE", "reason": "lançada errada"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = ts.do(http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_field", env.Error.Code)

	rec, _ = ts.do(http.MethodDelete, path+"?reason=duplicada", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = ts.do(http.MethodPut, path, admin, map[string]any{"vf": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssessmentsBatch_RowErrorCarriesRow(t *testing.T) {
	ts := newTestServer(t)
	ts.addStudent("Ana Souza", "ana@example.com", "52998224725")

	rec, env := ts.do(http.MethodPost, "/api/v1/courses/"+ts.course.ID+"/assessments/batch", ts.token(shared.RoleSecretary), map[string]any{
		"rows": []map[string]any{
			{"student": "ana@example.com", "discipline": "fisica", "vf": 8},
			{"student": "ninguem@example.com", "discipline": "Física", "vf": 6},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, 2, env.Error.Row)
}

func TestAssessmentsBatch_JSON(t *testing.T) {
	ts := newTestServer(t)
	ts.addStudent("Ana Souza", "ana@example.com", "52998224725")
	ts.addStudent("Bruno Lima", "bruno@example.com", "11144477735")

	rec, env := ts.do(http.MethodPost, "/api/v1/courses/"+ts.course.ID+"/assessments/batch", ts.token(shared.RoleManager), map[string]any{
		"rows": []map[string]any{
			{"student": "529.982.247-25", "discipline": "Física", "vf": 8, "avi": 9},
			{"student": "bruno@example.com", "discipline": "FISICA", "vf": 3, "avi": -1},
		},
		"file_name": "notas.xlsx",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got batchResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.NotEmpty(t, got.BatchID)
	assert.Equal(t, 2, got.Count)
	assert.Empty(t, ts.uploader.names)
}

func studentSheet(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Nome", "E-mail", "CPF", "Data de Nascimento", "Polo"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func (ts *testServer) upload(path, name string, data []byte, role shared.Role) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(ts.t, err)
	_, err = part.Write(data)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.send(req, ts.token(role))
}

func TestStudentsBatch_SpreadsheetUpload(t *testing.T) {
	ts := newTestServer(t)

	xlsx := studentSheet(t,
		[]any{"Ana Souza", "ana@example.com", "52998224725", "10/05/1990", "Polo Norte"},
		[]any{"Bruno Lima", "bruno@example.com", "11144477735", "1992-01-20", "polo norte"},
	)
	rec, env := ts.upload("/api/v1/courses/"+ts.course.ID+"/students/batch", "alunos.xlsx", xlsx, shared.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got batchResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []string{"alunos.xlsx"}, ts.uploader.names)
	assert.Empty(t, ts.uploader.deleted)

	cpf, err := shared.NewCPF("11144477735")
	require.NoError(t, err)
	bruno, err := ts.repos.Students.FindByCPF(ts.ctx, cpf)
	require.NoError(t, err)
	require.NotNil(t, bruno)
}

func TestStudentsBatch_RejectedUploadIsDeleted(t *testing.T) {
	ts := newTestServer(t)

	xlsx := studentSheet(t,
		[]any{"Ana Souza", "ana@example.com", "52998224725", "10/05/1990", "Polo Norte"},
		[]any{"", "", "", "", ""},
		[]any{"Bruno Lima", "bruno@example.com", "11144477735", "1992-01-20", "Polo Inexistente"},
	)
	rec, env := ts.upload("/api/v1/courses/"+ts.course.ID+"/students/batch", "alunos.xlsx", xlsx, shared.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	require.NotNil(t, env.Error)
	assert.Equal(t, 4, env.Error.Row)
	assert.Equal(t, []string{"alunos.xlsx"}, ts.uploader.names)
	assert.Equal(t, []string{"uploads/alunos.xlsx"}, ts.uploader.deleted)

	rec, _ = ts.upload("/api/v1/courses/missing-course/students/batch", "outra.xlsx",
		studentSheet(t, []any{"Bruno Lima", "bruno@example.com", "11144477735", "1992-01-20", "Polo Norte"}),
		shared.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"uploads/alunos.xlsx", "uploads/outra.xlsx"}, ts.uploader.deleted)
}

func TestStudentsBatch_ManagerCannotUpload(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "alunos.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("not read"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/"+ts.course.ID+"/students/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, _ := ts.send(req, ts.token(shared.RoleManager))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.uploader.names)
}

func TestStudentsBatch_InvalidCPFIsRejectedByBinding(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/courses/"+ts.course.ID+"/students/batch", ts.token(shared.RoleAdmin), map[string]any{
		"rows": []map[string]any{
			{"name": "Ana Souza", "email": "ana@example.com", "cpf": "123.456.789-00", "birthday": "10/05/1990", "pole": "Polo Norte"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "rows[0].cpf: cpf")
}

func TestUpdateStudentsBatch_MovesPole(t *testing.T) {
	ts := newTestServer(t)
	ts.addStudent("Ana Souza", "ana@example.com", "52998224725")
	south, err := course.NewPole("Polo Sul")
	require.NoError(t, err)
	require.NoError(t, ts.repos.Poles.Create(ts.ctx, south))

	rec, env := ts.do(http.MethodPut, "/api/v1/courses/"+ts.course.ID+"/students/batch", ts.token(shared.RoleSecretary), map[string]any{
		"rows": []map[string]any{{"student": "52998224725", "pole": "Polo Sul"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got batchResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 1, got.Count)
}

func TestChangeEnrollmentStatus(t *testing.T) {
	ts := newTestServer(t)
	_, enrollment := ts.addStudent("Ana Souza", "ana@example.com", "52998224725")
	path := "/api/v1/enrollments/" + enrollment.ID + "/status"

	rec, _ := ts.do(http.MethodPatch, path, ts.token(shared.RoleManager), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(http.MethodPatch, path, ts.token(shared.RoleManager), map[string]any{"active": false})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := ts.repos.Enrollments.FindByID(ts.ctx, enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)

	rec, _ = ts.do(http.MethodPatch, "/api/v1/enrollments/missing/status", ts.token(shared.RoleManager), map[string]any{"active": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodGet, "/api/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}
