package memory

import (
	"context"
	"sort"

	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// CourseRepository implements course.Repository.
type CourseRepository struct {
	store *Store
}

// FindByID returns the course or nil.
func (r *CourseRepository) FindByID(_ context.Context, id string) (*course.Course, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// FindMany lists courses ordered by start date.
func (r *CourseRepository) FindMany(_ context.Context, opts shared.ListOptions) ([]*course.Course, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*course.Course, 0, len(r.store.courses))
	for _, c := range r.store.courses {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return paginate(out, opts), nil
}

// Create inserts the course.
func (r *CourseRepository) Create(_ context.Context, c *course.Course) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.courses[c.ID]; ok {
		return shared.AlreadyExists("course", "Create", "course")
	}
	r.store.courses[c.ID] = *c
	return nil
}

// DisciplineRepository implements course.DisciplineRepository.
type DisciplineRepository struct {
	store *Store
}

// FindByID returns the discipline or nil.
func (r *DisciplineRepository) FindByID(_ context.Context, id string) (*course.Discipline, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, ok := r.store.disciplines[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// FindByName matches the normalized name within the course.
func (r *DisciplineRepository) FindByName(_ context.Context, courseID, name string) (*course.Discipline, error) {
	key := shared.NormalizeKey(name)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, d := range r.store.disciplines {
		if d.CourseID == courseID && d.Key == key {
			return &d, nil
		}
	}
	return nil, nil
}

// Create inserts the discipline.
func (r *DisciplineRepository) Create(_ context.Context, d *course.Discipline) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, other := range r.store.disciplines {
		if other.ID == d.ID || (other.CourseID == d.CourseID && other.Key == d.Key) {
			return shared.AlreadyExists("course", "CreateDiscipline", "discipline")
		}
	}
	r.store.disciplines[d.ID] = *d
	return nil
}

// PoleRepository implements course.PoleRepository.
type PoleRepository struct {
	store *Store
}

// FindByID returns the pole or nil.
func (r *PoleRepository) FindByID(_ context.Context, id string) (*course.Pole, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.poles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// FindByName matches the normalized name.
func (r *PoleRepository) FindByName(_ context.Context, name string) (*course.Pole, error) {
	key := shared.NormalizeKey(name)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.poles {
		if p.Key == key {
			return &p, nil
		}
	}
	return nil, nil
}

// Create inserts the pole.
func (r *PoleRepository) Create(_ context.Context, p *course.Pole) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, other := range r.store.poles {
		if other.ID == p.ID || other.Key == p.Key {
			return shared.AlreadyExists("course", "CreatePole", "pole")
		}
	}
	r.store.poles[p.ID] = *p
	return nil
}

// ManagerRepository implements manager.Repository.
type ManagerRepository struct {
	store *Store
}

// FindByID returns the manager or nil.
func (r *ManagerRepository) FindByID(_ context.Context, id string) (*manager.Manager, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	m, ok := r.store.managers[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// FindByEmail returns the manager or nil.
func (r *ManagerRepository) FindByEmail(_ context.Context, email shared.Email) (*manager.Manager, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, m := range r.store.managers {
		if m.Email == email {
			return &m, nil
		}
	}
	return nil, nil
}

// Create inserts the manager.
func (r *ManagerRepository) Create(_ context.Context, m *manager.Manager) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, other := range r.store.managers {
		if other.ID == m.ID || other.Email == m.Email {
			return shared.AlreadyExists("manager", "Create", "manager")
		}
	}
	r.store.managers[m.ID] = *m
	return nil
}

// ReportRepository implements report.Repository.
type ReportRepository struct {
	store *Store
}

// Create appends a report.
func (r *ReportRepository) Create(_ context.Context, rep *report.Report) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.reports = append(r.store.reports, *rep)
	return nil
}

// CreateBatch appends a batch report.
func (r *ReportRepository) CreateBatch(_ context.Context, b *report.Batch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.reportBatches = append(r.store.reportBatches, *b)
	return nil
}

// FindMany lists reports, newest first.
func (r *ReportRepository) FindMany(_ context.Context, opts shared.ListOptions) ([]*report.Report, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*report.Report, 0, len(r.store.reports))
	for i := len(r.store.reports) - 1; i >= 0; i-- {
		rep := r.store.reports[i]
		out = append(out, &rep)
	}
	return paginate(out, opts), nil
}

// FindManyBatches lists batch reports, newest first.
func (r *ReportRepository) FindManyBatches(_ context.Context, opts shared.ListOptions) ([]*report.Batch, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*report.Batch, 0, len(r.store.reportBatches))
	for i := len(r.store.reportBatches) - 1; i >= 0; i-- {
		b := r.store.reportBatches[i]
		out = append(out, &b)
	}
	return paginate(out, opts), nil
}
