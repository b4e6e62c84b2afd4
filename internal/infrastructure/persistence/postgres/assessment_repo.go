package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const assessmentColumns = `
	id, student_id, course_id, discipline_id, vf, avi, avii, vfe,
	average, status, is_recovering, created_at, updated_at
`

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements assessment.Repository for PostgreSQL.
type AssessmentRepository struct {
	conn       *Connection
	dispatcher shared.AggregateDispatcher
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection, dispatcher shared.AggregateDispatcher) *AssessmentRepository {
	return &AssessmentRepository{conn: conn, dispatcher: dispatcher}
}

// FindByID returns the assessment or nil.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*assessment.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	return scanAssessmentOrNil(r.conn.QueryRow(ctx, query, id))
}

// FindByKey returns the assessment for the triple or nil.
func (r *AssessmentRepository) FindByKey(ctx context.Context, studentID, courseID, disciplineID string) (*assessment.Assessment, error) {
	query := `SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE student_id = $1 AND course_id = $2 AND discipline_id = $3
	`
	return scanAssessmentOrNil(r.conn.QueryRow(ctx, query, studentID, courseID, disciplineID))
}

// FindByCourse lists a course's assessments ordered by creation.
func (r *AssessmentRepository) FindByCourse(ctx context.Context, courseID string, opts shared.ListOptions) ([]*assessment.Assessment, error) {
	opts = opts.Normalized()
	query := `SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE course_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, courseID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []*assessment.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts the assessment and dispatches its events.
func (r *AssessmentRepository) Create(ctx context.Context, a *assessment.Assessment) error {
	if err := insertAssessment(ctx, r.conn, a); err != nil {
		return err
	}
	r.dispatcher.Dispatch(ctx, a)
	return nil
}

// Save updates the assessment and dispatches its events.
func (r *AssessmentRepository) Save(ctx context.Context, a *assessment.Assessment) error {
	if err := updateAssessment(ctx, r.conn, a); err != nil {
		return err
	}
	r.dispatcher.Dispatch(ctx, a)
	return nil
}

// Delete removes the assessment, then dispatches the events queued before
// the call.
func (r *AssessmentRepository) Delete(ctx context.Context, a *assessment.Assessment) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, a.ID)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFound("assessment", "Delete", "assessment")
	}

	r.dispatcher.Dispatch(ctx, a)
	return nil
}

func insertAssessment(ctx context.Context, q Querier, a *assessment.Assessment) error {
	g := a.Grades()
	_, err := q.Exec(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID, a.StudentID, a.CourseID, a.DisciplineID,
		g.VF, g.AVI, g.AVII, g.VFE,
		a.Average(), string(a.Status()), a.IsRecovering(),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.AlreadyExists("assessment", "Create", "assessment")
		}
		if IsForeignKeyViolation(err) {
			return shared.NotFound("assessment", "Create", "reference")
		}
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

func updateAssessment(ctx context.Context, q Querier, a *assessment.Assessment) error {
	g := a.Grades()
	result, err := q.Exec(ctx, `
		UPDATE assessments SET
			vf = $1,
			avi = $2,
			avii = $3,
			vfe = $4,
			average = $5,
			status = $6,
			is_recovering = $7,
			updated_at = $8
		WHERE id = $9
	`,
		g.VF, g.AVI, g.AVII, g.VFE,
		a.Average(), string(a.Status()), a.IsRecovering(),
		a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFound("assessment", "Save", "assessment")
	}
	return nil
}

func scanAssessment(row rowScanner) (*assessment.Assessment, error) {
	var (
		id, studentID, courseID, disciplineID string
		g                                     assessment.Grades
		average                               float64
		status                                string
		isRecovering                          bool
		createdAt, updatedAt                  time.Time
	)
	err := row.Scan(
		&id, &studentID, &courseID, &disciplineID,
		&g.VF, &g.AVI, &g.AVII, &g.VFE,
		&average, &status, &isRecovering,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return assessment.Restore(id, studentID, courseID, disciplineID, g, average,
		assessment.Status(status), isRecovering, createdAt, updatedAt), nil
}

func scanAssessmentOrNil(row pgx.Row) (*assessment.Assessment, error) {
	a, err := scanAssessment(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan assessment: %w", err)
	}
	return a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT BATCH REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentBatchRepository implements assessment.BatchRepository. Every
// write runs in one transaction.
type AssessmentBatchRepository struct {
	conn       *Connection
	dispatcher shared.AggregateDispatcher
}

// NewAssessmentBatchRepository creates a new AssessmentBatchRepository.
func NewAssessmentBatchRepository(conn *Connection, dispatcher shared.AggregateDispatcher) *AssessmentBatchRepository {
	return &AssessmentBatchRepository{conn: conn, dispatcher: dispatcher}
}

// FindByID returns the batch with its children, or nil.
func (r *AssessmentBatchRepository) FindByID(ctx context.Context, id string) (*assessment.Batch, error) {
	var (
		courseID, kind string
		audit          shared.Audit
		file           shared.SourceFile
		createdAt      time.Time
	)
	err := r.conn.QueryRow(ctx, `
		SELECT course_id, kind, actor_id, actor_ip, file_name, file_link, created_at
		FROM assessment_batches
		WHERE id = $1
	`, id).Scan(&courseID, &kind, &audit.ActorID, &audit.ActorIP, &file.Name, &file.Link, &createdAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assessment batch: %w", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT i.removed, i.before, `+prefixed("a", assessmentColumns)+`
		FROM assessment_batch_items i
		JOIN assessments a ON a.id = i.assessment_id
		WHERE i.batch_id = $1
		ORDER BY i.position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessment batch items: %w", err)
	}
	defer rows.Close()

	var items []assessment.BatchItem
	for rows.Next() {
		item, err := scanAssessmentBatchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assessment.RestoreBatch(id, courseID, assessment.BatchKind(kind), audit, file, createdAt, items), nil
}

// Create inserts every child and the batch in one transaction.
func (r *AssessmentBatchRepository) Create(ctx context.Context, b *assessment.Batch) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, a := range b.Assessments() {
			if err := insertAssessment(ctx, tx, a); err != nil {
				return err
			}
		}
		return insertAssessmentBatch(ctx, tx, b)
	})
	if err != nil {
		return err
	}

	r.dispatcher.Dispatch(ctx, b)
	return nil
}

// Save writes every child mutation and the batch in one transaction.
func (r *AssessmentBatchRepository) Save(ctx context.Context, b *assessment.Batch) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, a := range b.Assessments() {
			if err := updateAssessment(ctx, tx, a); err != nil {
				return err
			}
		}
		return insertAssessmentBatch(ctx, tx, b)
	})
	if err != nil {
		return err
	}

	r.dispatcher.Dispatch(ctx, b)
	return nil
}

func insertAssessmentBatch(ctx context.Context, tx pgx.Tx, b *assessment.Batch) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO assessment_batches (id, course_id, kind, actor_id, actor_ip, file_name, file_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.CourseID, string(b.Kind), b.Audit.ActorID, b.Audit.ActorIP, b.File.Name, b.File.Link, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assessment batch: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range b.Items() {
		removed := make([]string, len(it.Removed))
		for j, c := range it.Removed {
			removed[j] = string(c)
		}

		var before []byte
		if len(it.Removed) > 0 {
			if before, err = json.Marshal(it.Before); err != nil {
				return fmt.Errorf("failed to marshal snapshot: %w", err)
			}
		}

		batch.Queue(`
			INSERT INTO assessment_batch_items (batch_id, position, assessment_id, removed, before)
			VALUES ($1, $2, $3, $4, $5)
		`, b.ID, i, it.Assessment.ID, removed, before)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create assessment batch items: %w", err)
	}
	return nil
}

func scanAssessmentBatchItem(rows pgx.Rows) (assessment.BatchItem, error) {
	var (
		removed []string
		before  []byte
	)
	a, err := scanAssessment(prependScanner{row: rows, head: []any{&removed, &before}})
	if err != nil {
		return assessment.BatchItem{}, fmt.Errorf("failed to scan assessment batch item: %w", err)
	}

	item := assessment.BatchItem{Assessment: a}
	for _, c := range removed {
		item.Removed = append(item.Removed, assessment.Component(c))
	}
	if len(before) > 0 {
		if err := json.Unmarshal(before, &item.Before); err != nil {
			return assessment.BatchItem{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}
	return item, nil
}

// prependScanner scans leading columns into head before handing the rest to
// a row scanner written for the bare entity.
type prependScanner struct {
	row  rowScanner
	head []any
}

func (p prependScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.head...), dest...)...)
}
