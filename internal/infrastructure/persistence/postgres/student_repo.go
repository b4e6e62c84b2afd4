package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `id, name, email, cpf, birthday, password_hash, created_at, updated_at`

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// FindByID returns the student or nil.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*student.Student, error) {
	return r.findOne(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
}

// FindByCPF returns the student or nil.
func (r *StudentRepository) FindByCPF(ctx context.Context, cpf shared.CPF) (*student.Student, error) {
	return r.findOne(ctx, `SELECT `+studentColumns+` FROM students WHERE cpf = $1`, cpf.String())
}

// FindByEmail returns the student or nil.
func (r *StudentRepository) FindByEmail(ctx context.Context, email shared.Email) (*student.Student, error) {
	return r.findOne(ctx, `SELECT `+studentColumns+` FROM students WHERE email = $1`, email.String())
}

// FindMany lists students ordered by name.
func (r *StudentRepository) FindMany(ctx context.Context, opts shared.ListOptions) ([]*student.Student, error) {
	opts = opts.Normalized()
	rows, err := r.conn.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students
		ORDER BY name, id
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts the student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	return insertStudent(ctx, r.conn, s)
}

// Save updates the student.
func (r *StudentRepository) Save(ctx context.Context, s *student.Student) error {
	return updateStudent(ctx, r.conn, s)
}

func (r *StudentRepository) findOne(ctx context.Context, query string, arg any) (*student.Student, error) {
	s, err := scanStudent(r.conn.QueryRow(ctx, query, arg))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

func insertStudent(ctx context.Context, q Querier, s *student.Student) error {
	_, err := q.Exec(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		s.ID, s.Name.String(), s.Email.String(), s.CPF.String(),
		s.Birthday, s.PasswordHash, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("student", "Create", "student")
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

func updateStudent(ctx context.Context, q Querier, s *student.Student) error {
	result, err := q.Exec(ctx, `
		UPDATE students SET
			name = $1,
			email = $2,
			birthday = $3,
			updated_at = $4
		WHERE id = $5
	`, s.Name.String(), s.Email.String(), s.Birthday, s.UpdatedAt, s.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("student", "Save", "student")
		}
		return fmt.Errorf("failed to update student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFound("student", "Save", "student")
	}
	return nil
}

func scanStudent(row rowScanner) (*student.Student, error) {
	var (
		s                student.Student
		name, email, cpf string
	)
	err := row.Scan(&s.ID, &name, &email, &cpf, &s.Birthday, &s.PasswordHash, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Name = shared.Name(name)
	s.Email = shared.Email(email)
	s.CPF = shared.CPF(cpf)
	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const enrollmentColumns = `id, student_id, course_id, is_active, created_at, updated_at`

// EnrollmentRepository implements student.EnrollmentRepository for PostgreSQL.
type EnrollmentRepository struct {
	conn       *Connection
	dispatcher shared.AggregateDispatcher
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection, dispatcher shared.AggregateDispatcher) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn, dispatcher: dispatcher}
}

// FindByID returns the enrollment or nil.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*student.Enrollment, error) {
	return r.findOne(ctx, `SELECT `+enrollmentColumns+` FROM student_courses WHERE id = $1`, id)
}

// FindByStudentAndCourse returns the enrollment or nil.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*student.Enrollment, error) {
	return r.findOne(ctx, `
		SELECT `+enrollmentColumns+`
		FROM student_courses
		WHERE student_id = $1 AND course_id = $2
	`, studentID, courseID)
}

// FindByCourse lists a course's enrollments.
func (r *EnrollmentRepository) FindByCourse(ctx context.Context, courseID string, opts shared.ListOptions) ([]*student.Enrollment, error) {
	opts = opts.Normalized()
	rows, err := r.conn.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM student_courses
		WHERE course_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, courseID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var out []*student.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Create inserts the enrollment and dispatches its events.
func (r *EnrollmentRepository) Create(ctx context.Context, e *student.Enrollment) error {
	if err := insertEnrollment(ctx, r.conn, e); err != nil {
		return err
	}
	r.dispatcher.Dispatch(ctx, e)
	return nil
}

// Save updates the enrollment and dispatches its events.
func (r *EnrollmentRepository) Save(ctx context.Context, e *student.Enrollment) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE student_courses SET is_active = $1, updated_at = $2 WHERE id = $3
	`, e.IsActive, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFound("student", "SaveEnrollment", "enrollment")
	}

	r.dispatcher.Dispatch(ctx, e)
	return nil
}

func (r *EnrollmentRepository) findOne(ctx context.Context, query string, args ...any) (*student.Enrollment, error) {
	e, err := scanEnrollment(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

func insertEnrollment(ctx context.Context, q Querier, e *student.Enrollment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO student_courses (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.StudentID, e.CourseID, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("student", "Enroll", "enrollment")
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

func scanEnrollment(row rowScanner) (*student.Enrollment, error) {
	var e student.Enrollment
	if err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const placementColumns = `id, student_id, course_id, pole_id, student_course_id, created_at`

// PlacementRepository implements student.PlacementRepository for PostgreSQL.
type PlacementRepository struct {
	conn *Connection
}

// NewPlacementRepository creates a new PlacementRepository.
func NewPlacementRepository(conn *Connection) *PlacementRepository {
	return &PlacementRepository{conn: conn}
}

// FindByStudentAndCourse returns the placement or nil.
func (r *PlacementRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*student.Placement, error) {
	p, err := scanPlacement(r.conn.QueryRow(ctx, `
		SELECT `+placementColumns+`
		FROM student_poles
		WHERE student_id = $1 AND course_id = $2
	`, studentID, courseID))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get placement: %w", err)
	}
	return p, nil
}

// Create inserts the placement.
func (r *PlacementRepository) Create(ctx context.Context, p *student.Placement) error {
	return insertPlacement(ctx, r.conn, p)
}

// Delete removes the placement.
func (r *PlacementRepository) Delete(ctx context.Context, id string) error {
	return deletePlacement(ctx, r.conn, id)
}

func insertPlacement(ctx context.Context, q Querier, p *student.Placement) error {
	_, err := q.Exec(ctx, `
		INSERT INTO student_poles (`+placementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.StudentID, p.CourseID, p.PoleID, p.EnrollmentID, p.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("student", "Place", "placement")
		}
		if IsForeignKeyViolation(err) {
			return shared.NotFound("student", "Place", "pole")
		}
		return fmt.Errorf("failed to create placement: %w", err)
	}
	return nil
}

func deletePlacement(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `DELETE FROM student_poles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete placement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFound("student", "Unplace", "placement")
	}
	return nil
}

func scanPlacement(row rowScanner) (*student.Placement, error) {
	var p student.Placement
	if err := row.Scan(&p.ID, &p.StudentID, &p.CourseID, &p.PoleID, &p.EnrollmentID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT BATCH REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentBatchRepository implements student.BatchRepository. Every write runs
// in one transaction.
type StudentBatchRepository struct {
	conn       *Connection
	dispatcher shared.AggregateDispatcher
}

// NewStudentBatchRepository creates a new StudentBatchRepository.
func NewStudentBatchRepository(conn *Connection, dispatcher shared.AggregateDispatcher) *StudentBatchRepository {
	return &StudentBatchRepository{conn: conn, dispatcher: dispatcher}
}

// FindByID returns the batch with its children, or nil.
func (r *StudentBatchRepository) FindByID(ctx context.Context, id string) (*student.Batch, error) {
	var (
		courseID, kind string
		audit          shared.Audit
		file           shared.SourceFile
		createdAt      time.Time
	)
	err := r.conn.QueryRow(ctx, `
		SELECT course_id, kind, actor_id, actor_ip, file_name, file_link, created_at
		FROM student_batches
		WHERE id = $1
	`, id).Scan(&courseID, &kind, &audit.ActorID, &audit.ActorIP, &file.Name, &file.Link, &createdAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student batch: %w", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT i.new_student, i.change, i.enrollment_id::text, i.placement_id::text, i.previous,
			`+prefixed("s", studentColumns)+`
		FROM student_batch_items i
		JOIN students s ON s.id = i.student_id
		WHERE i.batch_id = $1
		ORDER BY i.position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list student batch items: %w", err)
	}

	type ref struct {
		item         student.BatchItem
		enrollmentID *string
		placementID  *string
	}
	var refs []ref
	for rows.Next() {
		var (
			rf       ref
			change   string
			previous []byte
		)
		s, err := scanStudent(prependScanner{row: rows, head: []any{
			&rf.item.NewStudent, &change, &rf.enrollmentID, &rf.placementID, &previous,
		}})
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan student batch item: %w", err)
		}
		rf.item.Student = s
		rf.item.Change = student.PlacementChange(change)
		if len(previous) > 0 {
			rf.item.Previous = &student.Placement{}
			if err := json.Unmarshal(previous, rf.item.Previous); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to unmarshal previous placement: %w", err)
			}
		}
		refs = append(refs, rf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	enrollments := NewEnrollmentRepository(r.conn, r.dispatcher)
	items := make([]student.BatchItem, len(refs))
	for i, rf := range refs {
		if rf.enrollmentID != nil {
			if rf.item.Enrollment, err = enrollments.FindByID(ctx, *rf.enrollmentID); err != nil {
				return nil, err
			}
		}
		if rf.placementID != nil {
			p, err := scanPlacement(r.conn.QueryRow(ctx,
				`SELECT `+placementColumns+` FROM student_poles WHERE id = $1`, *rf.placementID))
			if err != nil && !IsNoRows(err) {
				return nil, fmt.Errorf("failed to get placement: %w", err)
			}
			rf.item.Placement = p
		}
		items[i] = rf.item
	}

	return student.RestoreBatch(id, courseID, student.BatchKind(kind), audit, file, createdAt, items), nil
}

// Create applies an import batch in one transaction.
func (r *StudentBatchRepository) Create(ctx context.Context, b *student.Batch) error {
	return r.apply(ctx, b)
}

// Save applies an update batch in one transaction.
func (r *StudentBatchRepository) Save(ctx context.Context, b *student.Batch) error {
	return r.apply(ctx, b)
}

func (r *StudentBatchRepository) apply(ctx context.Context, b *student.Batch) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO student_batches (id, course_id, kind, actor_id, actor_ip, file_name, file_link, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, b.ID, b.CourseID, string(b.Kind), b.Audit.ActorID, b.Audit.ActorIP, b.File.Name, b.File.Link, b.CreatedAt); err != nil {
			return fmt.Errorf("failed to create student batch: %w", err)
		}

		for i, it := range b.Items() {
			if err := applyStudentBatchItem(ctx, tx, it); err != nil {
				return err
			}
			if err := insertStudentBatchItem(ctx, tx, b.ID, i, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.dispatcher.Dispatch(ctx, b)
	return nil
}

func applyStudentBatchItem(ctx context.Context, tx pgx.Tx, it student.BatchItem) error {
	if it.Student == nil {
		return shared.InvalidField("student", "ApplyBatch", "student")
	}

	if it.NewStudent {
		if err := insertStudent(ctx, tx, it.Student); err != nil {
			return err
		}
	} else if err := updateStudent(ctx, tx, it.Student); err != nil {
		return err
	}

	switch it.Change {
	case student.PlacementEnroll:
		if it.Enrollment == nil || it.Placement == nil {
			return shared.InvalidField("student", "ApplyBatch", "enrollment")
		}
		if err := insertEnrollment(ctx, tx, it.Enrollment); err != nil {
			return err
		}
		return insertPlacement(ctx, tx, it.Placement)
	case student.PlacementMove:
		if it.Placement == nil {
			return shared.InvalidField("student", "ApplyBatch", "placement")
		}
		if it.Previous != nil {
			if err := deletePlacement(ctx, tx, it.Previous.ID); err != nil {
				return err
			}
		}
		return insertPlacement(ctx, tx, it.Placement)
	}
	return nil
}

func insertStudentBatchItem(ctx context.Context, tx pgx.Tx, batchID string, position int, it student.BatchItem) error {
	var enrollmentID, placementID *string
	if it.Enrollment != nil {
		enrollmentID = &it.Enrollment.ID
	}
	if it.Placement != nil {
		placementID = &it.Placement.ID
	}

	var previous []byte
	if it.Previous != nil {
		var err error
		if previous, err = json.Marshal(it.Previous); err != nil {
			return fmt.Errorf("failed to marshal previous placement: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO student_batch_items (batch_id, position, student_id, new_student, change, enrollment_id, placement_id, previous)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, batchID, position, it.Student.ID, it.NewStudent, string(it.Change), enrollmentID, placementID, previous)
	if err != nil {
		return fmt.Errorf("failed to create student batch item: %w", err)
	}
	return nil
}
