package assessment

import (
	"context"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Lookups return (nil, nil) when nothing matches. Every write drains the
// aggregate's events through the dispatcher after it commits.
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists single assessments.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Assessment, error)

	// FindByKey finds the assessment for a (student, course, discipline) triple.
	FindByKey(ctx context.Context, studentID, courseID, disciplineID string) (*Assessment, error)

	FindByCourse(ctx context.Context, courseID string, opts shared.ListOptions) ([]*Assessment, error)

	// Create inserts a new assessment. A duplicate key returns ErrAlreadyExists.
	Create(ctx context.Context, a *Assessment) error

	// Save updates an existing assessment in place.
	Save(ctx context.Context, a *Assessment) error

	// Delete removes the assessment and then dispatches its queued events.
	Delete(ctx context.Context, a *Assessment) error
}

// BatchRepository persists batch artifacts together with their children.
type BatchRepository interface {
	FindByID(ctx context.Context, id string) (*Batch, error)

	// Create stores the batch and inserts every child assessment atomically.
	Create(ctx context.Context, b *Batch) error

	// Save stores the batch and writes every child mutation back to the
	// assessment store atomically.
	Save(ctx context.Context, b *Batch) error
}
