package command

import (
	"context"
	"fmt"
	"time"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE STUDENTS BATCH COMMAND
// Imports students into a course. A row may point at a student that already
// exists (matched by CPF, then e-mail); that student is reused, never
// duplicated.
// ══════════════════════════════════════════════════════════════════════════════

// StudentRow is one line of a student import.
type StudentRow struct {
	Name     string
	Email    string
	CPF      string
	Birthday string
	PoleName string
}

// CreateStudentsBatchCommand enrolls a list of students into a course.
type CreateStudentsBatchCommand struct {
	Actor    shared.Actor
	CourseID string
	Rows     []StudentRow
	File     shared.SourceFile
}

// CreateStudentsBatchHandler handles CreateStudentsBatchCommand.
type CreateStudentsBatchHandler struct {
	students    student.Repository
	enrollments student.EnrollmentRepository
	batches     student.BatchRepository
	courses     course.Repository
	poles       course.PoleRepository
	hasher      Hasher
	clock       Clock
	concurrency int
}

// NewCreateStudentsBatchHandler creates a new CreateStudentsBatchHandler.
func NewCreateStudentsBatchHandler(
	students student.Repository,
	enrollments student.EnrollmentRepository,
	batches student.BatchRepository,
	courses course.Repository,
	poles course.PoleRepository,
	hasher Hasher,
	clock Clock,
) *CreateStudentsBatchHandler {
	return &CreateStudentsBatchHandler{
		students:    students,
		enrollments: enrollments,
		batches:     batches,
		courses:     courses,
		poles:       poles,
		hasher:      hasher,
		clock:       clock,
		concurrency: batch.DefaultConcurrency,
	}
}

// Handle executes the command.
func (h *CreateStudentsBatchHandler) Handle(ctx context.Context, cmd CreateStudentsBatchCommand) (*BatchResult, error) {
	const op = "CreateBatch"

	if err := shared.AdminOnly.Check("student", op, cmd.Actor); err != nil {
		return nil, err
	}
	if len(cmd.Rows) == 0 {
		return nil, shared.InvalidField("student", op, "rows")
	}

	c, err := loadCourse(ctx, h.courses, "student", op, cmd.CourseID, false, h.clock.now())
	if err != nil {
		return nil, err
	}

	now := h.clock.now()
	items, errs := batch.Resolve(ctx, cmd.Rows, h.concurrency,
		func(ctx context.Context, _ int, row StudentRow) (student.BatchItem, error) {
			return h.resolveRow(ctx, c, row, now)
		})

	ids := make([]string, len(items))
	cpfs := make([]string, len(items))
	emails := make([]string, len(items))
	for i, it := range items {
		if it.Student == nil {
			continue
		}
		ids[i] = it.Student.ID
		cpfs[i] = it.Student.CPF.String()
		emails[i] = it.Student.Email.String()
	}
	errs.Merge(batch.Dedupe("student", "student", ids))
	errs.Merge(batch.Dedupe("student", "CPF", cpfs))
	errs.Merge(batch.Dedupe("student", "email", emails))
	if err := errs.Err(); err != nil {
		return nil, err
	}

	b := student.NewCreationBatch(c.ID, cmd.Actor.Audit(), cmd.File, items)
	if err := h.batches.Create(ctx, b); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("student.CreateBatch: persist: %w", err)
	}
	return &BatchResult{BatchID: b.ID, Count: b.Len()}, nil
}

func (h *CreateStudentsBatchHandler) resolveRow(ctx context.Context, c *course.Course, row StudentRow, now time.Time) (student.BatchItem, error) {
	const op = "CreateBatch"

	name, err := shared.NewName(row.Name)
	if err != nil {
		return student.BatchItem{}, err
	}
	email, err := shared.NewEmail(row.Email)
	if err != nil {
		return student.BatchItem{}, err
	}
	cpf, err := shared.NewCPF(row.CPF)
	if err != nil {
		return student.BatchItem{}, err
	}
	birthday, err := shared.ParseBirthday(row.Birthday, now)
	if err != nil {
		return student.BatchItem{}, err
	}
	pole, err := findPole(ctx, h.poles, "student", op, row.PoleName)
	if err != nil {
		return student.BatchItem{}, err
	}

	st, err := h.matchStudent(ctx, cpf, email)
	if err != nil {
		return student.BatchItem{}, err
	}

	item := student.BatchItem{Change: student.PlacementEnroll}
	if st != nil {
		e, err := h.enrollments.FindByStudentAndCourse(ctx, st.ID, c.ID)
		if err != nil {
			return student.BatchItem{}, fmt.Errorf("student.CreateBatch: find enrollment: %w", err)
		}
		if e != nil {
			return student.BatchItem{}, shared.AlreadyExists("student", op, "student enrollment in course")
		}
		item.Student = st
	} else {
		hash, err := h.hasher.Hash(ctx, cpf.DefaultPassword())
		if err != nil {
			return student.BatchItem{}, fmt.Errorf("student.CreateBatch: hash password: %w", err)
		}
		st, err = student.NewStudent(student.NewStudentParams{
			Name:         name,
			Email:        email,
			CPF:          cpf,
			Birthday:     birthday,
			PasswordHash: hash,
		})
		if err != nil {
			return student.BatchItem{}, err
		}
		item.Student = st
		item.NewStudent = true
	}

	item.Enrollment = student.NewEnrollment(st.ID, c.ID)
	item.Placement = student.NewPlacement(item.Enrollment, pole.ID)
	return item, nil
}

// matchStudent looks the student up by CPF first and by e-mail second.
func (h *CreateStudentsBatchHandler) matchStudent(ctx context.Context, cpf shared.CPF, email shared.Email) (*student.Student, error) {
	st, err := h.students.FindByCPF(ctx, cpf)
	if err != nil {
		return nil, fmt.Errorf("student.CreateBatch: find by CPF: %w", err)
	}
	if st != nil {
		return st, nil
	}
	st, err = h.students.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("student.CreateBatch: find by email: %w", err)
	}
	return st, nil
}
