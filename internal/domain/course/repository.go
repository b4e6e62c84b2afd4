package course

import (
	"context"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// Repository stores courses. Lookups return (nil, nil) when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Course, error)
	FindMany(ctx context.Context, opts shared.ListOptions) ([]*Course, error)
	Create(ctx context.Context, c *Course) error
}

// DisciplineRepository stores disciplines.
type DisciplineRepository interface {
	FindByID(ctx context.Context, id string) (*Discipline, error)

	// FindByName matches on the normalized name within one course.
	FindByName(ctx context.Context, courseID, name string) (*Discipline, error)

	Create(ctx context.Context, d *Discipline) error
}

// PoleRepository stores poles.
type PoleRepository interface {
	FindByID(ctx context.Context, id string) (*Pole, error)

	// FindByName matches on the normalized name.
	FindByName(ctx context.Context, name string) (*Pole, error)

	Create(ctx context.Context, p *Pole) error
}
