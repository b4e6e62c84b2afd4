package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STUDENTS BATCH COMMAND
// Rewrites profiles of existing students and places each one at the requested
// pole of the course. Rows already at that pole are left untouched; rows at
// another pole get their placement replaced while the enrollment id is kept.
// ══════════════════════════════════════════════════════════════════════════════

// StudentUpdateRow is one line of a student update. StudentKey is the current
// CPF or e-mail; empty profile fields are left as they are.
type StudentUpdateRow struct {
	StudentKey string
	Name       string
	Email      string
	Birthday   string
	PoleName   string
}

// UpdateStudentsBatchCommand updates a list of students within a course.
type UpdateStudentsBatchCommand struct {
	Actor    shared.Actor
	CourseID string
	Rows     []StudentUpdateRow
	File     shared.SourceFile
}

// UpdateStudentsBatchHandler handles UpdateStudentsBatchCommand.
type UpdateStudentsBatchHandler struct {
	students    student.Repository
	enrollments student.EnrollmentRepository
	placements  student.PlacementRepository
	batches     student.BatchRepository
	courses     course.Repository
	poles       course.PoleRepository
	clock       Clock
	concurrency int
}

// NewUpdateStudentsBatchHandler creates a new UpdateStudentsBatchHandler.
func NewUpdateStudentsBatchHandler(
	students student.Repository,
	enrollments student.EnrollmentRepository,
	placements student.PlacementRepository,
	batches student.BatchRepository,
	courses course.Repository,
	poles course.PoleRepository,
	clock Clock,
) *UpdateStudentsBatchHandler {
	return &UpdateStudentsBatchHandler{
		students:    students,
		enrollments: enrollments,
		placements:  placements,
		batches:     batches,
		courses:     courses,
		poles:       poles,
		clock:       clock,
		concurrency: batch.DefaultConcurrency,
	}
}

// Handle executes the command.
func (h *UpdateStudentsBatchHandler) Handle(ctx context.Context, cmd UpdateStudentsBatchCommand) (*BatchResult, error) {
	const op = "UpdateBatch"

	if err := shared.AdminOnly.Check("student", op, cmd.Actor); err != nil {
		return nil, err
	}
	if len(cmd.Rows) == 0 {
		return nil, shared.InvalidField("student", op, "rows")
	}

	now := h.clock.now()
	c, err := loadCourse(ctx, h.courses, "student", op, cmd.CourseID, false, now)
	if err != nil {
		return nil, err
	}

	items, errs := batch.Resolve(ctx, cmd.Rows, h.concurrency,
		func(ctx context.Context, _ int, row StudentUpdateRow) (student.BatchItem, error) {
			return h.resolveRow(ctx, c, row, now)
		})

	ids := make([]string, len(items))
	emails := make([]string, len(items))
	for i, it := range items {
		if it.Student == nil {
			continue
		}
		ids[i] = it.Student.ID
		emails[i] = it.Student.Email.String()
	}
	errs.Merge(batch.Dedupe("student", "student", ids))
	errs.Merge(batch.Dedupe("student", "email", emails))
	if err := errs.Err(); err != nil {
		return nil, err
	}

	b := student.NewUpdateBatch(c.ID, cmd.Actor.Audit(), cmd.File, items)
	if err := h.batches.Save(ctx, b); err != nil {
		if shared.IsBusiness(err) {
			return nil, err
		}
		return nil, fmt.Errorf("student.UpdateBatch: persist: %w", err)
	}
	return &BatchResult{BatchID: b.ID, Count: b.Len()}, nil
}

func (h *UpdateStudentsBatchHandler) resolveRow(ctx context.Context, c *course.Course, row StudentUpdateRow, now time.Time) (student.BatchItem, error) {
	const op = "UpdateBatch"

	profile, err := parseProfile(row, now)
	if err != nil {
		return student.BatchItem{}, err
	}
	pole, err := findPole(ctx, h.poles, "student", op, row.PoleName)
	if err != nil {
		return student.BatchItem{}, err
	}
	st, err := findStudentByKey(ctx, h.students, "student", op, row.StudentKey)
	if err != nil {
		return student.BatchItem{}, err
	}

	if profile.Email != "" && profile.Email != st.Email {
		owner, err := h.students.FindByEmail(ctx, profile.Email)
		if err != nil {
			return student.BatchItem{}, fmt.Errorf("student.UpdateBatch: find by email: %w", err)
		}
		if owner != nil && owner.ID != st.ID {
			return student.BatchItem{}, shared.AlreadyExists("student", op, "email")
		}
	}
	st.UpdateProfile(profile)

	e, err := h.enrollments.FindByStudentAndCourse(ctx, st.ID, c.ID)
	if err != nil {
		return student.BatchItem{}, fmt.Errorf("student.UpdateBatch: find enrollment: %w", err)
	}
	var current *student.Placement
	if e != nil {
		current, err = h.placements.FindByStudentAndCourse(ctx, st.ID, c.ID)
		if err != nil {
			return student.BatchItem{}, fmt.Errorf("student.UpdateBatch: find placement: %w", err)
		}
	}

	item := student.BatchItem{
		Student:    st,
		Change:     student.DecidePlacement(e, current, pole.ID),
		Enrollment: e,
		Placement:  current,
	}
	switch item.Change {
	case student.PlacementEnroll:
		item.Enrollment = student.NewEnrollment(st.ID, c.ID)
		item.Placement = student.NewPlacement(item.Enrollment, pole.ID)
	case student.PlacementMove:
		item.Previous = current
		item.Placement = student.NewPlacement(e, pole.ID)
	}
	return item, nil
}

func parseProfile(row StudentUpdateRow, now time.Time) (student.Profile, error) {
	var (
		p   student.Profile
		err error
	)
	if strings.TrimSpace(row.Name) != "" {
		if p.Name, err = shared.NewName(row.Name); err != nil {
			return p, err
		}
	}
	if strings.TrimSpace(row.Email) != "" {
		if p.Email, err = shared.NewEmail(row.Email); err != nil {
			return p, err
		}
	}
	if strings.TrimSpace(row.Birthday) != "" {
		if p.Birthday, err = shared.ParseBirthday(row.Birthday, now); err != nil {
			return p, err
		}
	}
	return p, nil
}
