package student

import (
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is a person that can be enrolled in courses. CPF and Email are both
// natural keys.
type Student struct {
	ID           string
	Name         shared.Name
	Email        shared.Email
	CPF          shared.CPF
	Birthday     time.Time
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewStudentParams holds validated values for a new student.
type NewStudentParams struct {
	Name         shared.Name
	Email        shared.Email
	CPF          shared.CPF
	Birthday     time.Time
	PasswordHash string
}

// NewStudent builds a student. The password must already be hashed.
func NewStudent(p NewStudentParams) (*Student, error) {
	switch {
	case p.Name == "":
		return nil, shared.InvalidField("student", "NewStudent", "name")
	case p.Email == "":
		return nil, shared.InvalidField("student", "NewStudent", "email")
	case p.CPF == "":
		return nil, shared.InvalidField("student", "NewStudent", "CPF")
	case p.Birthday.IsZero():
		return nil, shared.InvalidField("student", "NewStudent", "birthday")
	case p.PasswordHash == "" || p.PasswordHash == p.CPF.DefaultPassword():
		return nil, shared.InvalidField("student", "NewStudent", "password")
	}

	now := time.Now().UTC()
	return &Student{
		ID:           uuid.NewString(),
		Name:         p.Name,
		Email:        p.Email,
		CPF:          p.CPF,
		Birthday:     p.Birthday,
		PasswordHash: p.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Profile is the editable part of a student.
type Profile struct {
	Name     shared.Name
	Email    shared.Email
	Birthday time.Time
}

// UpdateProfile applies the non-empty fields and reports whether anything
// changed.
func (s *Student) UpdateProfile(p Profile) bool {
	changed := false
	if p.Name != "" && p.Name != s.Name {
		s.Name = p.Name
		changed = true
	}
	if p.Email != "" && p.Email != s.Email {
		s.Email = p.Email
		changed = true
	}
	if !p.Birthday.IsZero() && !p.Birthday.Equal(s.Birthday) {
		s.Birthday = p.Birthday
		changed = true
	}
	if changed {
		s.UpdatedAt = time.Now().UTC()
	}
	return changed
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT (student <-> course)
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment links a student to a course. At most one exists per pair.
type Enrollment struct {
	shared.AggregateRoot

	ID        string
	StudentID string
	CourseID  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEnrollment builds an active enrollment.
func NewEnrollment(studentID, courseID string) *Enrollment {
	now := time.Now().UTC()
	return &Enrollment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		CourseID:  courseID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AggregateID implements shared.Aggregate.
func (e *Enrollment) AggregateID() string {
	return e.ID
}

// SetActive toggles the enrollment and queues EnrollmentStatusChanged.
// Setting the current value again is a conflict.
func (e *Enrollment) SetActive(active bool, audit shared.Audit) error {
	if e.IsActive == active {
		msg := "enrollment is already inactive"
		if active {
			msg = "enrollment is already active"
		}
		return shared.Conflict("student", "SetActive", msg)
	}

	e.IsActive = active
	e.UpdatedAt = time.Now().UTC()
	e.AddDomainEvent(EnrollmentStatusChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEnrollmentStatusChanged, e.ID),
		Audit:     audit,
		StudentID: e.StudentID,
		CourseID:  e.CourseID,
		Active:    active,
	})
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT (student <-> pole within a course)
// ══════════════════════════════════════════════════════════════════════════════

// Placement assigns an enrolled student to a pole for one course.
type Placement struct {
	ID           string
	StudentID    string
	CourseID     string
	PoleID       string
	EnrollmentID string
	CreatedAt    time.Time
}

// NewPlacement builds a placement for an enrollment.
func NewPlacement(e *Enrollment, poleID string) *Placement {
	return &Placement{
		ID:           uuid.NewString(),
		StudentID:    e.StudentID,
		CourseID:     e.CourseID,
		PoleID:       poleID,
		EnrollmentID: e.ID,
		CreatedAt:    time.Now().UTC(),
	}
}
