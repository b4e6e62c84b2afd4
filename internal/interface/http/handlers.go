package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/infrastructure/spreadsheet"
	"github.com/polos-ead/academic-records/internal/infrastructure/storage"
	"github.com/polos-ead/academic-records/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())

	body := gin.H{"status": status}
	if s.deps.Events != nil {
		body["events"] = s.deps.Events.Snapshot()
	}

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	handlers.WriteJSON(c, code, body)
}

// ══════════════════════════════════════════════════════════════════════════════
// SINGLE ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

type assessmentResponse struct {
	ID           string  `json:"id"`
	Average      float64 `json:"average"`
	Status       string  `json:"status"`
	IsRecovering bool    `json:"is_recovering"`
}

func newAssessmentResponse(r *command.AssessmentResult) assessmentResponse {
	return assessmentResponse{
		ID:           r.AssessmentID,
		Average:      r.Average,
		Status:       string(r.Status),
		IsRecovering: r.IsRecovering,
	}
}

// Grades may carry -1 for "exclude this component".
type createAssessmentRequest struct {
	StudentID    string `json:"student_id" binding:"required"`
	CourseID     string `json:"course_id" binding:"required"`
	DisciplineID string `json:"discipline_id" binding:"required"`
	assessment.Grades
}

// handleCreateAssessment handles POST /api/v1/assessments.
func (s *Server) handleCreateAssessment(c *gin.Context) {
	var req createAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	res, err := s.deps.CreateAssessment.Handle(c.Request.Context(), command.CreateAssessmentCommand{
		Actor:        handlers.ActorFrom(c),
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		DisciplineID: req.DisciplineID,
		Grades:       req.Grades,
	})
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}
	handlers.WriteJSON(c, http.StatusCreated, newAssessmentResponse(res))
}

type updateAssessmentRequest struct {
	assessment.Grades
}

// handleUpdateAssessment handles PUT /api/v1/assessments/:id.
func (s *Server) handleUpdateAssessment(c *gin.Context) {
	var req updateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	res, err := s.deps.UpdateAssessment.Handle(c.Request.Context(), command.UpdateAssessmentCommand{
		Actor:        handlers.ActorFrom(c),
		AssessmentID: c.Param("id"),
		Grades:       req.Grades,
	})
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}
	handlers.WriteJSON(c, http.StatusOK, newAssessmentResponse(res))
}

type removeGradeRequest struct {
	Component string `json:"component" binding:"required"`
	Reason    string `json:"reason"`
}

// handleRemoveAssessmentGrade handles POST /api/v1/assessments/:id/remove-grade.
func (s *Server) handleRemoveAssessmentGrade(c *gin.Context) {
	var req removeGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	res, err := s.deps.RemoveAssessmentGrade.Handle(c.Request.Context(), command.RemoveAssessmentGradeCommand{
		Actor:        handlers.ActorFrom(c),
		AssessmentID: c.Param("id"),
		Component:    assessment.Component(strings.ToLower(strings.TrimSpace(req.Component))),
		Reason:       req.Reason,
	})
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}
	handlers.WriteJSON(c, http.StatusOK, newAssessmentResponse(res))
}

type deleteAssessmentRequest struct {
	Reason string `json:"reason"`
}

// handleDeleteAssessment handles DELETE /api/v1/assessments/:id. The reason
// comes from the JSON body or the reason query parameter.
func (s *Server) handleDeleteAssessment(c *gin.Context) {
	var req deleteAssessmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}

	err := s.deps.DeleteAssessment.Handle(c.Request.Context(), command.DeleteAssessmentCommand{
		Actor:        handlers.ActorFrom(c),
		AssessmentID: c.Param("id"),
		Reason:       req.Reason,
	})
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// handleChangeEnrollmentStatus handles PATCH /api/v1/enrollments/:id/status.
func (s *Server) handleChangeEnrollmentStatus(c *gin.Context) {
	var req enrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	err := s.deps.ChangeEnrollmentStatus.Handle(c.Request.Context(), command.ChangeEnrollmentStatusCommand{
		Actor:        handlers.ActorFrom(c),
		EnrollmentID: c.Param("id"),
		Active:       *req.Active,
	})
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCHES
// ══════════════════════════════════════════════════════════════════════════════

type batchResponse struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

// batchRequest is the JSON form of every batch route. Spreadsheet uploads
// produce the same rows.
type batchRequest[R any] struct {
	Rows     []R    `json:"rows" binding:"required,min=1,dive"`
	FileName string `json:"file_name"`
	FileLink string `json:"file_link"`
}

// batchSource is where the rows of a batch came from. stored is set when
// this request wrote the spreadsheet to storage; lines maps row positions
// to worksheet lines for uploads.
type batchSource struct {
	file   shared.SourceFile
	stored *storage.Object
	lines  []int
}

// sheetLine rewrites a row error of an uploaded batch to the worksheet line
// the operator sees.
func (src batchSource) sheetLine(err error) error {
	var rowErr *batch.RowError
	if len(src.lines) == 0 || !errors.As(err, &rowErr) {
		return err
	}
	if rowErr.Row < 1 || rowErr.Row > len(src.lines) {
		return err
	}
	return &batch.RowError{Row: src.lines[rowErr.Row-1], Err: rowErr.Err}
}

// batchInput reads the rows of a batch route from a JSON body or from a
// multipart upload in the "file" field. It writes the error response itself
// and reports false when the handler should stop.
func batchInput[R, T any](s *Server, c *gin.Context, fromSheet func(io.Reader) (spreadsheet.Sheet[T], error), fromJSON func(R) T) ([]T, batchSource, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return uploadedRows(s, c, fromSheet)
	}

	var req batchRequest[R]
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return nil, batchSource{}, false
	}
	rows := make([]T, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = fromJSON(r)
	}
	return rows, batchSource{file: shared.SourceFile{Name: req.FileName, Link: req.FileLink}}, true
}

// uploadedRows parses the uploaded spreadsheet and, once it parsed, stores it.
func uploadedRows[T any](s *Server, c *gin.Context, parse func(io.Reader) (spreadsheet.Sheet[T], error)) ([]T, batchSource, bool) {
	if !s.config.Uploads {
		handlers.WriteError(c, http.StatusUnsupportedMediaType, handlers.APIError{
			Code:    "uploads_disabled",
			Message: "Spreadsheet uploads are disabled",
		})
		return nil, batchSource{}, false
	}

	header, err := c.FormFile("file")
	if err != nil {
		writeBindError(c, err)
		return nil, batchSource{}, false
	}
	f, err := header.Open()
	if err != nil {
		writeBindError(c, err)
		return nil, batchSource{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeBindError(c, err)
		return nil, batchSource{}, false
	}

	sheet, err := parse(bytes.NewReader(data))
	if err != nil {
		s.writeUseCaseError(c, err)
		return nil, batchSource{}, false
	}

	obj, err := s.deps.Storage.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		s.writeUseCaseError(c, err)
		return nil, batchSource{}, false
	}
	return sheet.Rows, batchSource{file: obj.SourceFile, stored: &obj, lines: sheet.Lines}, true
}

// writeBatchResult renders the outcome. A rejected batch keeps nothing, so
// the spreadsheet stored for it is removed again.
func (s *Server) writeBatchResult(c *gin.Context, src batchSource, res *command.BatchResult, err error) {
	if err != nil {
		if src.stored != nil {
			s.discardUpload(c, *src.stored)
		}
		s.writeUseCaseError(c, src.sheetLine(err))
		return
	}
	handlers.WriteJSON(c, http.StatusCreated, batchResponse{BatchID: res.BatchID, Count: res.Count})
}

func (s *Server) discardUpload(c *gin.Context, obj storage.Object) {
	if err := s.deps.Storage.Delete(context.WithoutCancel(c.Request.Context()), obj.Key); err != nil {
		s.requestLogger(c).Warn().Err(err).
			Str("file", obj.Name).
			Msg("failed to delete spreadsheet of rejected batch")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Assessment batches
// ─────────────────────────────────────────────────────────────────────────────

type assessmentRowRequest struct {
	Student    string   `json:"student" binding:"required"`
	Discipline string   `json:"discipline" binding:"required"`
	VF         *float64 `json:"vf"`
	AVI        *float64 `json:"avi"`
	AVII       *float64 `json:"avii"`
	VFE        *float64 `json:"vfe"`
}

// handleCreateAssessmentsBatch handles POST /api/v1/courses/:id/assessments/batch.
func (s *Server) handleCreateAssessmentsBatch(c *gin.Context) {
	rows, src, ok := batchInput(s, c, s.deps.Parser.Assessments, func(r assessmentRowRequest) command.AssessmentRow {
		return command.AssessmentRow{
			StudentKey:     r.Student,
			DisciplineName: r.Discipline,
			VF:             r.VF,
			AVI:            r.AVI,
			AVII:           r.AVII,
			VFE:            r.VFE,
		}
	})
	if !ok {
		return
	}

	res, err := s.deps.CreateAssessmentsBatch.Handle(c.Request.Context(), command.CreateAssessmentsBatchCommand{
		Actor:    handlers.ActorFrom(c),
		CourseID: c.Param("id"),
		Rows:     rows,
		File:     src.file,
	})
	s.writeBatchResult(c, src, res, err)
}

type gradeRemovalRowRequest struct {
	Student    string `json:"student" binding:"required"`
	Discipline string `json:"discipline" binding:"required"`
	RemoveAVI  bool   `json:"remove_avi"`
	RemoveAVII bool   `json:"remove_avii"`
	RemoveVFE  bool   `json:"remove_vfe"`
}

// handleRemoveGradesBatch handles POST /api/v1/courses/:id/assessments/batch/remove-grades.
func (s *Server) handleRemoveGradesBatch(c *gin.Context) {
	rows, src, ok := batchInput(s, c, s.deps.Parser.GradeRemovals, func(r gradeRemovalRowRequest) command.GradeRemovalRow {
		return command.GradeRemovalRow{
			StudentKey:     r.Student,
			DisciplineName: r.Discipline,
			RemoveAVI:      r.RemoveAVI,
			RemoveAVII:     r.RemoveAVII,
			RemoveVFE:      r.RemoveVFE,
		}
	})
	if !ok {
		return
	}

	res, err := s.deps.RemoveGradesBatch.Handle(c.Request.Context(), command.RemoveGradesBatchCommand{
		Actor:    handlers.ActorFrom(c),
		CourseID: c.Param("id"),
		Rows:     rows,
		File:     src.file,
	})
	s.writeBatchResult(c, src, res, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Student batches
// ─────────────────────────────────────────────────────────────────────────────

type studentRowRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	CPF      string `json:"cpf" binding:"required,cpf"`
	Birthday string `json:"birthday" binding:"required"`
	Pole     string `json:"pole" binding:"required"`
}

// handleCreateStudentsBatch handles POST /api/v1/courses/:id/students/batch.
func (s *Server) handleCreateStudentsBatch(c *gin.Context) {
	rows, src, ok := batchInput(s, c, s.deps.Parser.Students, func(r studentRowRequest) command.StudentRow {
		return command.StudentRow{
			Name:     r.Name,
			Email:    r.Email,
			CPF:      r.CPF,
			Birthday: r.Birthday,
			PoleName: r.Pole,
		}
	})
	if !ok {
		return
	}

	res, err := s.deps.CreateStudentsBatch.Handle(c.Request.Context(), command.CreateStudentsBatchCommand{
		Actor:    handlers.ActorFrom(c),
		CourseID: c.Param("id"),
		Rows:     rows,
		File:     src.file,
	})
	s.writeBatchResult(c, src, res, err)
}

type studentUpdateRowRequest struct {
	Student  string `json:"student" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email" binding:"omitempty,email"`
	Birthday string `json:"birthday"`
	Pole     string `json:"pole"`
}

// handleUpdateStudentsBatch handles PUT /api/v1/courses/:id/students/batch.
func (s *Server) handleUpdateStudentsBatch(c *gin.Context) {
	rows, src, ok := batchInput(s, c, s.deps.Parser.StudentUpdates, func(r studentUpdateRowRequest) command.StudentUpdateRow {
		return command.StudentUpdateRow{
			StudentKey: r.Student,
			Name:       r.Name,
			Email:      r.Email,
			Birthday:   r.Birthday,
			PoleName:   r.Pole,
		}
	})
	if !ok {
		return
	}

	res, err := s.deps.UpdateStudentsBatch.Handle(c.Request.Context(), command.UpdateStudentsBatchCommand{
		Actor:    handlers.ActorFrom(c),
		CourseID: c.Param("id"),
		Rows:     rows,
		File:     src.file,
	})
	s.writeBatchResult(c, src, res, err)
}
