package postgres

import (
	"context"
	"fmt"

	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// FindByID returns the course or nil.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*course.Course, error) {
	var c course.Course
	err := r.conn.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, created_at FROM courses WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &c, nil
}

// FindMany lists courses by start date.
func (r *CourseRepository) FindMany(ctx context.Context, opts shared.ListOptions) ([]*course.Course, error) {
	opts = opts.Normalized()
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, start_date, end_date, created_at
		FROM courses
		ORDER BY start_date, id
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var out []*course.Course
	for rows.Next() {
		var c course.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Create inserts the course.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO courses (id, name, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.StartDate, c.EndDate, c.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("course", "Create", "course")
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DISCIPLINES
// ══════════════════════════════════════════════════════════════════════════════

// DisciplineRepository implements course.DisciplineRepository for PostgreSQL.
type DisciplineRepository struct {
	conn *Connection
}

// NewDisciplineRepository creates a new DisciplineRepository.
func NewDisciplineRepository(conn *Connection) *DisciplineRepository {
	return &DisciplineRepository{conn: conn}
}

// FindByID returns the discipline or nil.
func (r *DisciplineRepository) FindByID(ctx context.Context, id string) (*course.Discipline, error) {
	return r.findOne(ctx, `SELECT id, course_id, name, key FROM disciplines WHERE id = $1`, id)
}

// FindByName matches the normalized name within the course.
func (r *DisciplineRepository) FindByName(ctx context.Context, courseID, name string) (*course.Discipline, error) {
	return r.findOne(ctx, `
		SELECT id, course_id, name, key FROM disciplines WHERE course_id = $1 AND key = $2
	`, courseID, shared.NormalizeKey(name))
}

// Create inserts the discipline.
func (r *DisciplineRepository) Create(ctx context.Context, d *course.Discipline) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO disciplines (id, course_id, name, key) VALUES ($1, $2, $3, $4)
	`, d.ID, d.CourseID, d.Name, d.Key)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("course", "CreateDiscipline", "discipline")
		}
		if IsForeignKeyViolation(err) {
			return shared.NotFound("course", "CreateDiscipline", "course")
		}
		return fmt.Errorf("failed to create discipline: %w", err)
	}
	return nil
}

func (r *DisciplineRepository) findOne(ctx context.Context, query string, args ...any) (*course.Discipline, error) {
	var d course.Discipline
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&d.ID, &d.CourseID, &d.Name, &d.Key); err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get discipline: %w", err)
	}
	return &d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// POLES
// ══════════════════════════════════════════════════════════════════════════════

// PoleRepository implements course.PoleRepository for PostgreSQL.
type PoleRepository struct {
	conn *Connection
}

// NewPoleRepository creates a new PoleRepository.
func NewPoleRepository(conn *Connection) *PoleRepository {
	return &PoleRepository{conn: conn}
}

// FindByID returns the pole or nil.
func (r *PoleRepository) FindByID(ctx context.Context, id string) (*course.Pole, error) {
	return r.findOne(ctx, `SELECT id, name, key FROM poles WHERE id = $1`, id)
}

// FindByName matches the normalized name.
func (r *PoleRepository) FindByName(ctx context.Context, name string) (*course.Pole, error) {
	return r.findOne(ctx, `SELECT id, name, key FROM poles WHERE key = $1`, shared.NormalizeKey(name))
}

// Create inserts the pole.
func (r *PoleRepository) Create(ctx context.Context, p *course.Pole) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO poles (id, name, key) VALUES ($1, $2, $3)`, p.ID, p.Name, p.Key)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("course", "CreatePole", "pole")
		}
		return fmt.Errorf("failed to create pole: %w", err)
	}
	return nil
}

func (r *PoleRepository) findOne(ctx context.Context, query string, arg any) (*course.Pole, error) {
	var p course.Pole
	if err := r.conn.QueryRow(ctx, query, arg).Scan(&p.ID, &p.Name, &p.Key); err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pole: %w", err)
	}
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MANAGERS
// ══════════════════════════════════════════════════════════════════════════════

// ManagerRepository implements manager.Repository for PostgreSQL.
type ManagerRepository struct {
	conn *Connection
}

// NewManagerRepository creates a new ManagerRepository.
func NewManagerRepository(conn *Connection) *ManagerRepository {
	return &ManagerRepository{conn: conn}
}

// FindByID returns the manager or nil.
func (r *ManagerRepository) FindByID(ctx context.Context, id string) (*manager.Manager, error) {
	return r.findOne(ctx, `SELECT id, name, email, role, created_at FROM managers WHERE id = $1`, id)
}

// FindByEmail returns the manager or nil.
func (r *ManagerRepository) FindByEmail(ctx context.Context, email shared.Email) (*manager.Manager, error) {
	return r.findOne(ctx, `SELECT id, name, email, role, created_at FROM managers WHERE email = $1`, email.String())
}

// Create inserts the manager.
func (r *ManagerRepository) Create(ctx context.Context, m *manager.Manager) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO managers (id, name, email, role, created_at) VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.Name.String(), m.Email.String(), string(m.Role), m.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("manager", "Create", "manager")
		}
		return fmt.Errorf("failed to create manager: %w", err)
	}
	return nil
}

func (r *ManagerRepository) findOne(ctx context.Context, query string, arg any) (*manager.Manager, error) {
	var (
		m                 manager.Manager
		name, email, role string
	)
	if err := r.conn.QueryRow(ctx, query, arg).Scan(&m.ID, &name, &email, &role, &m.CreatedAt); err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manager: %w", err)
	}
	m.Name = shared.Name(name)
	m.Email = shared.Email(email)
	m.Role = shared.Role(role)
	return &m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORTS
// ══════════════════════════════════════════════════════════════════════════════

// ReportRepository implements report.Repository for PostgreSQL. Rows are only
// ever inserted.
type ReportRepository struct {
	conn *Connection
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(conn *Connection) *ReportRepository {
	return &ReportRepository{conn: conn}
}

// Create appends a report.
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO reports (id, title, content, actor_id, actor_ip, course_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rep.ID, rep.Title, rep.Content, rep.ActorID, rep.ActorIP, nullable(rep.CourseID), string(rep.Action), rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// CreateBatch appends a batch report.
func (r *ReportRepository) CreateBatch(ctx context.Context, b *report.Batch) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO report_batches (id, title, content, actor_id, actor_ip, course_id, action, file_name, file_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.Title, b.Content, b.ActorID, b.ActorIP, nullable(b.CourseID), string(b.Action), b.File.Name, b.File.Link, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create batch report: %w", err)
	}
	return nil
}

// FindMany lists reports newest first.
func (r *ReportRepository) FindMany(ctx context.Context, opts shared.ListOptions) ([]*report.Report, error) {
	opts = opts.Normalized()
	rows, err := r.conn.Query(ctx, `
		SELECT id, title, content, actor_id, actor_ip, COALESCE(course_id::text, ''), action, created_at
		FROM reports
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		var (
			rep    report.Report
			action string
		)
		if err := rows.Scan(&rep.ID, &rep.Title, &rep.Content, &rep.ActorID, &rep.ActorIP, &rep.CourseID, &action, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		rep.Action = report.Action(action)
		out = append(out, &rep)
	}
	return out, rows.Err()
}

// FindManyBatches lists batch reports newest first.
func (r *ReportRepository) FindManyBatches(ctx context.Context, opts shared.ListOptions) ([]*report.Batch, error) {
	opts = opts.Normalized()
	rows, err := r.conn.Query(ctx, `
		SELECT id, title, content, actor_id, actor_ip, COALESCE(course_id::text, ''), action,
			file_name, file_link, created_at
		FROM report_batches
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Batch
	for rows.Next() {
		var (
			b      report.Batch
			action string
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.Content, &b.ActorID, &b.ActorIP, &b.CourseID, &action,
			&b.File.Name, &b.File.Link, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch report: %w", err)
		}
		b.Action = report.Action(action)
		out = append(out, &b)
	}
	return out, rows.Err()
}
