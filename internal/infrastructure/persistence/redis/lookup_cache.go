package redis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ-THROUGH LOOKUPS
// Courses, disciplines, poles and managers are only ever inserted, so cached
// copies never go stale. Cache failures fall through to the repository.
// ══════════════════════════════════════════════════════════════════════════════

// Store is the subset of Cache the lookups need.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TTLLookup is the default lifetime of a cached lookup.
const TTLLookup = 10 * time.Minute

type readThrough struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

func newReadThrough(store Store, ttl time.Duration, logger zerolog.Logger) readThrough {
	if ttl <= 0 {
		ttl = TTLLookup
	}
	return readThrough{store: store, ttl: ttl, logger: logger}
}

// load returns the cached value under key or calls fetch and caches a non-nil
// result. Misses are not cached.
func load[T any](ctx context.Context, rt readThrough, key string, fetch func() (*T, error)) (*T, error) {
	var cached T
	switch err := rt.store.Get(ctx, key, &cached); {
	case err == nil:
		return &cached, nil
	case !errors.Is(err, ErrCacheMiss) && !circuitbreaker.IsRejected(err):
		rt.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	v, err := fetch()
	if err != nil || v == nil {
		return v, err
	}
	if err := rt.store.Set(ctx, key, v, rt.ttl); err != nil && !circuitbreaker.IsRejected(err) {
		rt.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Courses
// ─────────────────────────────────────────────────────────────────────────────

// CourseRepository caches course.Repository lookups by ID.
type CourseRepository struct {
	course.Repository
	rt readThrough
}

// NewCourseRepository wraps next.
func NewCourseRepository(next course.Repository, store Store, ttl time.Duration, logger zerolog.Logger) *CourseRepository {
	return &CourseRepository{Repository: next, rt: newReadThrough(store, ttl, logger)}
}

// FindByID implements course.Repository.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*course.Course, error) {
	return load(ctx, r.rt, CourseKey(id), func() (*course.Course, error) {
		return r.Repository.FindByID(ctx, id)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Disciplines
// ─────────────────────────────────────────────────────────────────────────────

// DisciplineRepository caches course.DisciplineRepository lookups.
type DisciplineRepository struct {
	course.DisciplineRepository
	rt readThrough
}

// NewDisciplineRepository wraps next.
func NewDisciplineRepository(next course.DisciplineRepository, store Store, ttl time.Duration, logger zerolog.Logger) *DisciplineRepository {
	return &DisciplineRepository{DisciplineRepository: next, rt: newReadThrough(store, ttl, logger)}
}

// FindByID implements course.DisciplineRepository.
func (r *DisciplineRepository) FindByID(ctx context.Context, id string) (*course.Discipline, error) {
	return load(ctx, r.rt, DisciplineKey(id), func() (*course.Discipline, error) {
		return r.DisciplineRepository.FindByID(ctx, id)
	})
}

// FindByName implements course.DisciplineRepository.
func (r *DisciplineRepository) FindByName(ctx context.Context, courseID, name string) (*course.Discipline, error) {
	return load(ctx, r.rt, DisciplineNameKey(courseID, shared.NormalizeKey(name)), func() (*course.Discipline, error) {
		return r.DisciplineRepository.FindByName(ctx, courseID, name)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Poles
// ─────────────────────────────────────────────────────────────────────────────

// PoleRepository caches course.PoleRepository lookups.
type PoleRepository struct {
	course.PoleRepository
	rt readThrough
}

// NewPoleRepository wraps next.
func NewPoleRepository(next course.PoleRepository, store Store, ttl time.Duration, logger zerolog.Logger) *PoleRepository {
	return &PoleRepository{PoleRepository: next, rt: newReadThrough(store, ttl, logger)}
}

// FindByID implements course.PoleRepository.
func (r *PoleRepository) FindByID(ctx context.Context, id string) (*course.Pole, error) {
	return load(ctx, r.rt, PoleKey(id), func() (*course.Pole, error) {
		return r.PoleRepository.FindByID(ctx, id)
	})
}

// FindByName implements course.PoleRepository.
func (r *PoleRepository) FindByName(ctx context.Context, name string) (*course.Pole, error) {
	return load(ctx, r.rt, PoleNameKey(shared.NormalizeKey(name)), func() (*course.Pole, error) {
		return r.PoleRepository.FindByName(ctx, name)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Managers
// ─────────────────────────────────────────────────────────────────────────────

// ManagerRepository caches manager.Repository lookups by ID.
type ManagerRepository struct {
	manager.Repository
	rt readThrough
}

// NewManagerRepository wraps next.
func NewManagerRepository(next manager.Repository, store Store, ttl time.Duration, logger zerolog.Logger) *ManagerRepository {
	return &ManagerRepository{Repository: next, rt: newReadThrough(store, ttl, logger)}
}

// FindByID implements manager.Repository.
func (r *ManagerRepository) FindByID(ctx context.Context, id string) (*manager.Manager, error) {
	return load(ctx, r.rt, ManagerKey(id), func() (*manager.Manager, error) {
		return r.Repository.FindByID(ctx, id)
	})
}
