package eventhandler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// Lookups groups the read-only repositories subscribers need. In production
// they are wrapped by the Redis lookup cache.
type Lookups struct {
	Managers    manager.Repository
	Students    student.Repository
	Courses     course.Repository
	Disciplines course.DisciplineRepository
	Poles       course.PoleRepository
}

// reportContext holds what was found. A nil field means the entity is absent.
type reportContext struct {
	Reporter   *manager.Manager
	Student    *student.Student
	Course     *course.Course
	Discipline *course.Discipline
}

// contextQuery names the ids to load. Empty ids are not looked up.
type contextQuery struct {
	ReporterID   string
	StudentID    string
	CourseID     string
	DisciplineID string
}

// load fetches every requested entity concurrently.
func (l Lookups) load(ctx context.Context, q contextQuery) (reportContext, error) {
	var rc reportContext
	g, ctx := errgroup.WithContext(ctx)

	if q.ReporterID != "" {
		g.Go(func() error {
			m, err := l.Managers.FindByID(ctx, q.ReporterID)
			if err != nil {
				return fmt.Errorf("find reporter: %w", err)
			}
			rc.Reporter = m
			return nil
		})
	}
	if q.StudentID != "" {
		g.Go(func() error {
			s, err := l.Students.FindByID(ctx, q.StudentID)
			if err != nil {
				return fmt.Errorf("find student: %w", err)
			}
			rc.Student = s
			return nil
		})
	}
	if q.CourseID != "" {
		g.Go(func() error {
			c, err := l.Courses.FindByID(ctx, q.CourseID)
			if err != nil {
				return fmt.Errorf("find course: %w", err)
			}
			rc.Course = c
			return nil
		})
	}
	if q.DisciplineID != "" {
		g.Go(func() error {
			d, err := l.Disciplines.FindByID(ctx, q.DisciplineID)
			if err != nil {
				return fmt.Errorf("find discipline: %w", err)
			}
			rc.Discipline = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reportContext{}, err
	}
	return rc, nil
}

// missing returns the name of the first requested entity that was not found,
// or "" when everything is present.
func (rc reportContext) missing(q contextQuery) string {
	switch {
	case q.ReporterID != "" && rc.Reporter == nil:
		return "reporter not found"
	case q.StudentID != "" && rc.Student == nil:
		return "student not found"
	case q.CourseID != "" && rc.Course == nil:
		return "course not found"
	case q.DisciplineID != "" && rc.Discipline == nil:
		return "discipline not found"
	}
	return ""
}

// names resolves a set of ids to display names concurrently. ok is false when
// any id does not exist.
func names(ctx context.Context, ids []string, find func(context.Context, string) (string, bool, error)) (map[string]string, bool, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(ids))
		all = true
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range unique(ids) {
		g.Go(func() error {
			name, found, err := find(ctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if !found {
				all = false
				return nil
			}
			out[id] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return out, all, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (l Lookups) studentName(ctx context.Context, id string) (string, bool, error) {
	s, err := l.Students.FindByID(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("find student: %w", err)
	}
	if s == nil {
		return "", false, nil
	}
	return s.Name.String(), true, nil
}

func (l Lookups) disciplineName(ctx context.Context, id string) (string, bool, error) {
	d, err := l.Disciplines.FindByID(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("find discipline: %w", err)
	}
	if d == nil {
		return "", false, nil
	}
	return d.Name, true, nil
}

func (l Lookups) poleName(ctx context.Context, id string) (string, bool, error) {
	p, err := l.Poles.FindByID(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("find pole: %w", err)
	}
	if p == nil {
		return "", false, nil
	}
	return p.Name, true, nil
}
