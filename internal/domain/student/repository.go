package student

import (
	"context"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Contracts for the storage layer; implementations live in
// infrastructure/persistence. Lookups return (nil, nil) when nothing matches.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores students.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Student, error)
	FindByCPF(ctx context.Context, cpf shared.CPF) (*Student, error)
	FindByEmail(ctx context.Context, email shared.Email) (*Student, error)
	FindMany(ctx context.Context, opts shared.ListOptions) ([]*Student, error)

	// Create returns ErrAlreadyExists when CPF or email is taken.
	Create(ctx context.Context, s *Student) error

	Save(ctx context.Context, s *Student) error
}

// EnrollmentRepository stores student <-> course links.
type EnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*Enrollment, error)
	FindByCourse(ctx context.Context, courseID string, opts shared.ListOptions) ([]*Enrollment, error)

	// Create returns ErrAlreadyExists when the pair is already linked.
	Create(ctx context.Context, e *Enrollment) error

	// Save persists the enrollment and dispatches its queued events.
	Save(ctx context.Context, e *Enrollment) error
}

// PlacementRepository stores student <-> pole assignments.
type PlacementRepository interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*Placement, error)
	Create(ctx context.Context, p *Placement) error
	Delete(ctx context.Context, id string) error
}

// BatchRepository persists student batches with all their children.
type BatchRepository interface {
	FindByID(ctx context.Context, id string) (*Batch, error)

	// Create inserts new students, updates existing ones, and writes every
	// enrollment and placement atomically.
	Create(ctx context.Context, b *Batch) error

	// Save writes profile changes and applies each placement change
	// atomically. Moves delete the previous placement first.
	Save(ctx context.Context, b *Batch) error
}
