package memory

import (
	"context"
	"sort"

	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository.
type StudentRepository struct {
	store *Store
}

func loadStudent(s student.Student) *student.Student {
	return &s
}

// FindByID returns the student or nil.
func (r *StudentRepository) FindByID(_ context.Context, id string) (*student.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.students[id]
	if !ok {
		return nil, nil
	}
	return loadStudent(s), nil
}

// FindByCPF returns the student or nil.
func (r *StudentRepository) FindByCPF(_ context.Context, cpf shared.CPF) (*student.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, s := range r.store.students {
		if s.CPF == cpf {
			return loadStudent(s), nil
		}
	}
	return nil, nil
}

// FindByEmail returns the student or nil.
func (r *StudentRepository) FindByEmail(_ context.Context, email shared.Email) (*student.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, s := range r.store.students {
		if s.Email == email {
			return loadStudent(s), nil
		}
	}
	return nil, nil
}

// FindMany lists students ordered by name.
func (r *StudentRepository) FindMany(_ context.Context, opts shared.ListOptions) ([]*student.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*student.Student, 0, len(r.store.students))
	for _, s := range r.store.students {
		out = append(out, loadStudent(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return paginate(out, opts), nil
}

// Create inserts the student.
func (r *StudentRepository) Create(_ context.Context, s *student.Student) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.checkStudentInsert(s); err != nil {
		return err
	}
	r.store.students[s.ID] = *s
	return nil
}

// Save updates the student.
func (r *StudentRepository) Save(_ context.Context, s *student.Student) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.checkStudentUpdate(s); err != nil {
		return err
	}
	r.store.students[s.ID] = *s
	return nil
}

// Len returns how many students are stored.
func (r *StudentRepository) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.students)
}

// caller holds the lock
func (s *Store) checkStudentInsert(st *student.Student) error {
	if _, ok := s.students[st.ID]; ok {
		return shared.AlreadyExists("student", "Create", "student")
	}
	for _, other := range s.students {
		if other.CPF == st.CPF || other.Email == st.Email {
			return shared.AlreadyExists("student", "Create", "student")
		}
	}
	return nil
}

// caller holds the lock
func (s *Store) checkStudentUpdate(st *student.Student) error {
	if _, ok := s.students[st.ID]; !ok {
		return shared.NotFound("student", "Save", "student")
	}
	for id, other := range s.students {
		if id != st.ID && (other.CPF == st.CPF || other.Email == st.Email) {
			return shared.AlreadyExists("student", "Save", "student")
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements student.EnrollmentRepository.
type EnrollmentRepository struct {
	store      *Store
	dispatcher shared.AggregateDispatcher
}

func storeEnrollment(e *student.Enrollment) student.Enrollment {
	stored := *e
	stored.AggregateRoot = shared.AggregateRoot{}
	return stored
}

func loadEnrollment(e student.Enrollment) *student.Enrollment {
	return &e
}

// FindByID returns the enrollment or nil.
func (r *EnrollmentRepository) FindByID(_ context.Context, id string) (*student.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.enrollments[id]
	if !ok {
		return nil, nil
	}
	return loadEnrollment(e), nil
}

// FindByStudentAndCourse returns the enrollment or nil.
func (r *EnrollmentRepository) FindByStudentAndCourse(_ context.Context, studentID, courseID string) (*student.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if e := r.store.findEnrollment(studentID, courseID); e != nil {
		return loadEnrollment(*e), nil
	}
	return nil, nil
}

// FindByCourse lists a course's enrollments.
func (r *EnrollmentRepository) FindByCourse(_ context.Context, courseID string, opts shared.ListOptions) ([]*student.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*student.Enrollment
	for _, e := range r.store.enrollments {
		if e.CourseID == courseID {
			out = append(out, loadEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}

// Create inserts the enrollment and dispatches its events.
func (r *EnrollmentRepository) Create(ctx context.Context, e *student.Enrollment) error {
	r.store.mu.Lock()
	if r.store.findEnrollment(e.StudentID, e.CourseID) != nil {
		r.store.mu.Unlock()
		return shared.AlreadyExists("student", "Enroll", "enrollment")
	}
	r.store.enrollments[e.ID] = storeEnrollment(e)
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, e)
	return nil
}

// Save updates the enrollment and dispatches its events.
func (r *EnrollmentRepository) Save(ctx context.Context, e *student.Enrollment) error {
	r.store.mu.Lock()
	if _, ok := r.store.enrollments[e.ID]; !ok {
		r.store.mu.Unlock()
		return shared.NotFound("student", "SaveEnrollment", "enrollment")
	}
	r.store.enrollments[e.ID] = storeEnrollment(e)
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, e)
	return nil
}

// caller holds the lock
func (s *Store) findEnrollment(studentID, courseID string) *student.Enrollment {
	for _, e := range s.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return &e
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// PlacementRepository implements student.PlacementRepository.
type PlacementRepository struct {
	store *Store
}

// FindByStudentAndCourse returns the placement or nil.
func (r *PlacementRepository) FindByStudentAndCourse(_ context.Context, studentID, courseID string) (*student.Placement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if p := r.store.findPlacement(studentID, courseID); p != nil {
		return p, nil
	}
	return nil, nil
}

// Create inserts the placement.
func (r *PlacementRepository) Create(_ context.Context, p *student.Placement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.findPlacement(p.StudentID, p.CourseID) != nil {
		return shared.AlreadyExists("student", "Place", "placement")
	}
	r.store.placements[p.ID] = *p
	return nil
}

// Delete removes the placement.
func (r *PlacementRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.placements[id]; !ok {
		return shared.NotFound("student", "Unplace", "placement")
	}
	delete(r.store.placements, id)
	return nil
}

// caller holds the lock
func (s *Store) findPlacement(studentID, courseID string) *student.Placement {
	for _, p := range s.placements {
		if p.StudentID == studentID && p.CourseID == courseID {
			return &p
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT BATCHES
// ══════════════════════════════════════════════════════════════════════════════

// StudentBatchRepository implements student.BatchRepository.
type StudentBatchRepository struct {
	store      *Store
	dispatcher shared.AggregateDispatcher
}

// FindByID returns the batch with copies of its children, or nil.
func (r *StudentBatchRepository) FindByID(_ context.Context, id string) (*student.Batch, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.studentBatches[id]
	if !ok {
		return nil, nil
	}

	items := make([]student.BatchItem, 0, len(rec.items))
	for _, it := range rec.items {
		st, ok := r.store.students[it.studentID]
		if !ok {
			continue
		}
		item := student.BatchItem{
			Student:    loadStudent(st),
			NewStudent: it.newStudent,
			Change:     it.change,
			Previous:   it.previous,
		}
		if e, ok := r.store.enrollments[it.enrollmentID]; ok {
			item.Enrollment = loadEnrollment(e)
		}
		if p, ok := r.store.placements[it.placementID]; ok {
			item.Placement = &p
		}
		items = append(items, item)
	}
	return student.RestoreBatch(rec.id, rec.courseID, rec.kind, rec.audit, rec.file, rec.createdAt, items), nil
}

// Create applies an import batch atomically.
func (r *StudentBatchRepository) Create(ctx context.Context, b *student.Batch) error {
	return r.apply(ctx, b)
}

// Save applies an update batch atomically.
func (r *StudentBatchRepository) Save(ctx context.Context, b *student.Batch) error {
	return r.apply(ctx, b)
}

// Len returns how many batches are stored.
func (r *StudentBatchRepository) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.studentBatches)
}

func (r *StudentBatchRepository) apply(ctx context.Context, b *student.Batch) error {
	items := b.Items()

	r.store.mu.Lock()
	if err := r.store.checkStudentBatch(items); err != nil {
		r.store.mu.Unlock()
		return err
	}

	rec := studentBatchRecord{
		id:        b.ID,
		courseID:  b.CourseID,
		kind:      b.Kind,
		audit:     b.Audit,
		file:      b.File,
		createdAt: b.CreatedAt,
	}
	for _, it := range items {
		r.store.students[it.Student.ID] = *it.Student

		switch it.Change {
		case student.PlacementEnroll:
			r.store.enrollments[it.Enrollment.ID] = storeEnrollment(it.Enrollment)
			r.store.placements[it.Placement.ID] = *it.Placement
		case student.PlacementMove:
			if it.Previous != nil {
				delete(r.store.placements, it.Previous.ID)
			}
			r.store.placements[it.Placement.ID] = *it.Placement
		}

		ri := studentBatchItem{
			studentID:  it.Student.ID,
			newStudent: it.NewStudent,
			change:     it.Change,
			previous:   it.Previous,
		}
		if it.Enrollment != nil {
			ri.enrollmentID = it.Enrollment.ID
		}
		if it.Placement != nil {
			ri.placementID = it.Placement.ID
		}
		rec.items = append(rec.items, ri)
	}
	r.store.studentBatches[b.ID] = rec
	r.store.mu.Unlock()

	r.dispatcher.Dispatch(ctx, b)
	return nil
}

// caller holds the lock
func (s *Store) checkStudentBatch(items []student.BatchItem) error {
	for _, it := range items {
		if it.Student == nil {
			return shared.InvalidField("student", "ApplyBatch", "student")
		}
		if it.NewStudent {
			if err := s.checkStudentInsert(it.Student); err != nil {
				return err
			}
		} else if err := s.checkStudentUpdate(it.Student); err != nil {
			return err
		}

		switch it.Change {
		case student.PlacementEnroll:
			if it.Enrollment == nil || it.Placement == nil {
				return shared.InvalidField("student", "ApplyBatch", "enrollment")
			}
			if s.findEnrollment(it.Student.ID, it.Enrollment.CourseID) != nil {
				return shared.AlreadyExists("student", "ApplyBatch", "enrollment")
			}
		case student.PlacementMove:
			if it.Placement == nil {
				return shared.InvalidField("student", "ApplyBatch", "placement")
			}
			if _, ok := s.enrollments[it.Placement.EnrollmentID]; !ok {
				return shared.NotFound("student", "ApplyBatch", "enrollment")
			}
		}
	}
	return nil
}
