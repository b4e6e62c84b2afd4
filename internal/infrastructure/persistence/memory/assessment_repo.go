package memory

import (
	"context"
	"sort"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

func assessmentKey(studentID, courseID, disciplineID string) string {
	return studentID + "|" + courseID + "|" + disciplineID
}

func storeAssessment(a *assessment.Assessment) assessment.Assessment {
	stored := *a
	stored.AggregateRoot = shared.AggregateRoot{}
	return stored
}

func loadAssessment(stored assessment.Assessment) *assessment.Assessment {
	out := stored
	return &out
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements assessment.Repository.
type AssessmentRepository struct {
	store      *Store
	dispatcher shared.AggregateDispatcher
}

// FindByID returns the assessment or nil.
func (r *AssessmentRepository) FindByID(_ context.Context, id string) (*assessment.Assessment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.assessments[id]
	if !ok {
		return nil, nil
	}
	return loadAssessment(a), nil
}

// FindByKey returns the assessment for the triple or nil.
func (r *AssessmentRepository) FindByKey(_ context.Context, studentID, courseID, disciplineID string) (*assessment.Assessment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.assessmentKeys[assessmentKey(studentID, courseID, disciplineID)]
	if !ok {
		return nil, nil
	}
	return loadAssessment(r.store.assessments[id]), nil
}

// FindByCourse lists a course's assessments ordered by creation.
func (r *AssessmentRepository) FindByCourse(_ context.Context, courseID string, opts shared.ListOptions) ([]*assessment.Assessment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*assessment.Assessment
	for _, a := range r.store.assessments {
		if a.CourseID == courseID {
			out = append(out, loadAssessment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, opts), nil
}

// Create inserts the assessment and dispatches its events.
func (r *AssessmentRepository) Create(ctx context.Context, a *assessment.Assessment) error {
	r.store.mu.Lock()
	if err := r.store.checkAssessmentInsert(a); err != nil {
		r.store.mu.Unlock()
		return err
	}
	r.store.insertAssessment(a)
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, a)
	return nil
}

// Save updates the assessment and dispatches its events.
func (r *AssessmentRepository) Save(ctx context.Context, a *assessment.Assessment) error {
	r.store.mu.Lock()
	if _, ok := r.store.assessments[a.ID]; !ok {
		r.store.mu.Unlock()
		return shared.NotFound("assessment", "Save", "assessment")
	}
	r.store.assessments[a.ID] = storeAssessment(a)
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, a)
	return nil
}

// Delete removes the assessment, then dispatches the events queued before
// the call.
func (r *AssessmentRepository) Delete(ctx context.Context, a *assessment.Assessment) error {
	r.store.mu.Lock()
	stored, ok := r.store.assessments[a.ID]
	if !ok {
		r.store.mu.Unlock()
		return shared.NotFound("assessment", "Delete", "assessment")
	}
	delete(r.store.assessments, a.ID)
	delete(r.store.assessmentKeys, assessmentKey(stored.StudentID, stored.CourseID, stored.DisciplineID))
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, a)
	return nil
}

// Len returns how many assessments are stored.
func (r *AssessmentRepository) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.assessments)
}

// caller holds the write lock
func (s *Store) checkAssessmentInsert(a *assessment.Assessment) error {
	if _, ok := s.assessments[a.ID]; ok {
		return shared.AlreadyExists("assessment", "Create", "assessment")
	}
	if _, ok := s.assessmentKeys[assessmentKey(a.StudentID, a.CourseID, a.DisciplineID)]; ok {
		return shared.AlreadyExists("assessment", "Create", "assessment")
	}
	return nil
}

// caller holds the write lock
func (s *Store) insertAssessment(a *assessment.Assessment) {
	s.assessments[a.ID] = storeAssessment(a)
	s.assessmentKeys[assessmentKey(a.StudentID, a.CourseID, a.DisciplineID)] = a.ID
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT BATCHES
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentBatchRepository implements assessment.BatchRepository.
type AssessmentBatchRepository struct {
	store      *Store
	dispatcher shared.AggregateDispatcher
}

// FindByID returns the batch with copies of its children, or nil.
func (r *AssessmentBatchRepository) FindByID(_ context.Context, id string) (*assessment.Batch, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.assessmentBatches[id]
	if !ok {
		return nil, nil
	}

	items := make([]assessment.BatchItem, 0, len(rec.items))
	for _, it := range rec.items {
		stored, ok := r.store.assessments[it.assessmentID]
		if !ok {
			continue
		}
		items = append(items, assessment.BatchItem{
			Assessment: loadAssessment(stored),
			Removed:    it.removed,
			Before:     it.before,
		})
	}
	return assessment.RestoreBatch(rec.id, rec.courseID, rec.kind, rec.audit, rec.file, rec.createdAt, items), nil
}

// Create inserts every child and the batch, or nothing.
func (r *AssessmentBatchRepository) Create(ctx context.Context, b *assessment.Batch) error {
	children := b.Assessments()

	r.store.mu.Lock()
	seen := make(map[string]struct{}, len(children))
	for _, a := range children {
		if err := r.store.checkAssessmentInsert(a); err != nil {
			r.store.mu.Unlock()
			return err
		}
		key := assessmentKey(a.StudentID, a.CourseID, a.DisciplineID)
		if _, dup := seen[key]; dup {
			r.store.mu.Unlock()
			return shared.AlreadyExists("assessment", "CreateBatch", "assessment")
		}
		seen[key] = struct{}{}
	}
	for _, a := range children {
		r.store.insertAssessment(a)
	}
	r.store.assessmentBatches[b.ID] = newAssessmentBatchRecord(b)
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, b)
	return nil
}

// Save writes every child mutation and the batch, or nothing.
func (r *AssessmentBatchRepository) Save(ctx context.Context, b *assessment.Batch) error {
	children := b.Assessments()

	r.store.mu.Lock()
	for _, a := range children {
		if _, ok := r.store.assessments[a.ID]; !ok {
			r.store.mu.Unlock()
			return shared.NotFound("assessment", "SaveBatch", "assessment")
		}
	}
	for _, a := range children {
		r.store.assessments[a.ID] = storeAssessment(a)
	}
	r.store.assessmentBatches[b.ID] = newAssessmentBatchRecord(b)
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, b)
	return nil
}

// Len returns how many batches are stored.
func (r *AssessmentBatchRepository) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.assessmentBatches)
}

func newAssessmentBatchRecord(b *assessment.Batch) assessmentBatchRecord {
	rec := assessmentBatchRecord{
		id:        b.ID,
		courseID:  b.CourseID,
		kind:      b.Kind,
		audit:     b.Audit,
		file:      b.File,
		createdAt: b.CreatedAt,
	}
	for _, it := range b.Items() {
		rec.items = append(rec.items, assessmentBatchItem{
			assessmentID: it.Assessment.ID,
			removed:      it.Removed,
			before:       it.Before,
		})
	}
	return rec
}
