// Package command contains the write use cases: single assessment changes,
// the four batch reconciliations, enrollment status, and report sending.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// Hasher turns a plaintext credential into its stored form.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// Clock returns the current time. Handlers take one so course deadlines can
// be tested.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// BatchResult is what every batch use case returns on success.
type BatchResult struct {
	BatchID string
	Count   int
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared lookups
// ─────────────────────────────────────────────────────────────────────────────

// loadCourse fetches the course or returns ErrNotFound. With running set, a
// finished course is an ErrConflict.
func loadCourse(ctx context.Context, courses course.Repository, domain, op, id string, running bool, now time.Time) (*course.Course, error) {
	if id == "" {
		return nil, shared.InvalidField(domain, op, "course id")
	}
	c, err := courses.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: find course: %w", domain, op, err)
	}
	if c == nil {
		return nil, shared.NotFound(domain, op, "course")
	}
	if running {
		if err := c.EnsureRunning(op, now); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// findStudentByKey resolves a CPF or an e-mail to a student. A key that is
// neither is an ErrInvalidField; no match is an ErrNotFound.
func findStudentByKey(ctx context.Context, students student.Repository, domain, op, key string) (*student.Student, error) {
	key = strings.TrimSpace(key)

	var (
		s   *student.Student
		err error
	)
	if strings.Contains(key, "@") {
		email, vErr := shared.NewEmail(key)
		if vErr != nil {
			return nil, vErr
		}
		s, err = students.FindByEmail(ctx, email)
	} else {
		cpf, vErr := shared.NewCPF(key)
		if vErr != nil {
			return nil, vErr
		}
		s, err = students.FindByCPF(ctx, cpf)
	}
	if err != nil {
		return nil, fmt.Errorf("%s.%s: find student: %w", domain, op, err)
	}
	if s == nil {
		return nil, shared.NotFound(domain, op, "student")
	}
	return s, nil
}

// requireEnrollment returns the student's enrollment in the course or
// ErrNotFound.
func requireEnrollment(ctx context.Context, enrollments student.EnrollmentRepository, domain, op, studentID, courseID string) (*student.Enrollment, error) {
	e, err := enrollments.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: find enrollment: %w", domain, op, err)
	}
	if e == nil {
		return nil, shared.NotFound(domain, op, "student enrollment in course")
	}
	return e, nil
}

func findDiscipline(ctx context.Context, disciplines course.DisciplineRepository, domain, op, courseID, name string) (*course.Discipline, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.InvalidField(domain, op, "discipline")
	}
	d, err := disciplines.FindByName(ctx, courseID, name)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: find discipline: %w", domain, op, err)
	}
	if d == nil {
		return nil, shared.NotFound(domain, op, "discipline")
	}
	return d, nil
}

func findPole(ctx context.Context, poles course.PoleRepository, domain, op, name string) (*course.Pole, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.InvalidField(domain, op, "pole")
	}
	p, err := poles.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: find pole: %w", domain, op, err)
	}
	if p == nil {
		return nil, shared.NotFound(domain, op, "pole")
	}
	return p, nil
}
