// Package course holds courses, their disciplines, and the poles (local
// campuses) students are placed at.
package course

import (
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// Course is an offering students enroll in. Grades may only change while it
// is running.
type Course struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// NewCourse validates the date range.
func NewCourse(name string, start, end time.Time) (*Course, error) {
	if name == "" {
		return nil, shared.InvalidField("course", "NewCourse", "name")
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, shared.InvalidField("course", "NewCourse", "date")
	}
	return &Course{
		ID:        uuid.NewString(),
		Name:      name,
		StartDate: start,
		EndDate:   end,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsFinished reports whether the end date has passed.
func (c *Course) IsFinished(now time.Time) bool {
	return now.After(c.EndDate)
}

// EnsureRunning returns ErrConflict once the course has finished.
func (c *Course) EnsureRunning(op string, now time.Time) error {
	if c.IsFinished(now) {
		return shared.Conflict("course", op, "course already finished")
	}
	return nil
}

// Discipline is a subject taught within one course. Key is the normalized
// name used for spreadsheet lookups.
type Discipline struct {
	ID       string
	CourseID string
	Name     string
	Key      string
}

// NewDiscipline builds a discipline and derives its lookup key.
func NewDiscipline(courseID, name string) (*Discipline, error) {
	if courseID == "" || name == "" {
		return nil, shared.InvalidField("course", "NewDiscipline", "name")
	}
	return &Discipline{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Name:     name,
		Key:      shared.NormalizeKey(name),
	}, nil
}

// Pole is a local campus.
type Pole struct {
	ID   string
	Name string
	Key  string
}

// NewPole builds a pole and derives its lookup key.
func NewPole(name string) (*Pole, error) {
	if name == "" {
		return nil, shared.InvalidField("course", "NewPole", "name")
	}
	return &Pole{
		ID:   uuid.NewString(),
		Name: name,
		Key:  shared.NormalizeKey(name),
	}, nil
}
