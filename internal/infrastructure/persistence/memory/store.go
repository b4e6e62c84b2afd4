// Package memory implements every repository on process memory. It backs the
// service when no database is configured and doubles as the test fixture.
//
// All repositories built from one Store share a single lock, so batch writes
// touching several collections are atomic. Entities are stored as copies and
// returned as copies; callers never alias stored state.
package memory

import (
	"sync"
	"time"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// Store holds every collection.
type Store struct {
	mu sync.RWMutex

	assessments       map[string]assessment.Assessment
	assessmentKeys    map[string]string // student|course|discipline -> id
	assessmentBatches map[string]assessmentBatchRecord

	students       map[string]student.Student
	enrollments    map[string]student.Enrollment
	placements     map[string]student.Placement
	studentBatches map[string]studentBatchRecord

	courses     map[string]course.Course
	disciplines map[string]course.Discipline
	poles       map[string]course.Pole
	managers    map[string]manager.Manager

	reports       []report.Report
	reportBatches []report.Batch
}

// Batch records keep child ids only; children live in their own maps.
type assessmentBatchRecord struct {
	id        string
	courseID  string
	kind      assessment.BatchKind
	audit     shared.Audit
	file      shared.SourceFile
	createdAt time.Time
	items     []assessmentBatchItem
}

type assessmentBatchItem struct {
	assessmentID string
	removed      []assessment.Component
	before       assessment.Snapshot
}

type studentBatchRecord struct {
	id        string
	courseID  string
	kind      student.BatchKind
	audit     shared.Audit
	file      shared.SourceFile
	createdAt time.Time
	items     []studentBatchItem
}

type studentBatchItem struct {
	studentID    string
	newStudent   bool
	change       student.PlacementChange
	enrollmentID string
	placementID  string
	previous     *student.Placement
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		assessments:       make(map[string]assessment.Assessment),
		assessmentKeys:    make(map[string]string),
		assessmentBatches: make(map[string]assessmentBatchRecord),
		students:          make(map[string]student.Student),
		enrollments:       make(map[string]student.Enrollment),
		placements:        make(map[string]student.Placement),
		studentBatches:    make(map[string]studentBatchRecord),
		courses:           make(map[string]course.Course),
		disciplines:       make(map[string]course.Discipline),
		poles:             make(map[string]course.Pole),
		managers:          make(map[string]manager.Manager),
	}
}

// Repositories bundles every repository over one store.
type Repositories struct {
	Assessments       *AssessmentRepository
	AssessmentBatches *AssessmentBatchRepository
	Students          *StudentRepository
	Enrollments       *EnrollmentRepository
	Placements        *PlacementRepository
	StudentBatches    *StudentBatchRepository
	Courses           *CourseRepository
	Disciplines       *DisciplineRepository
	Poles             *PoleRepository
	Managers          *ManagerRepository
	Reports           *ReportRepository
}

// NewRepositories builds every repository over store. Writes of aggregates
// are followed by dispatcher.Dispatch.
func NewRepositories(store *Store, dispatcher shared.AggregateDispatcher) *Repositories {
	return &Repositories{
		Assessments:       &AssessmentRepository{store: store, dispatcher: dispatcher},
		AssessmentBatches: &AssessmentBatchRepository{store: store, dispatcher: dispatcher},
		Students:          &StudentRepository{store: store},
		Enrollments:       &EnrollmentRepository{store: store, dispatcher: dispatcher},
		Placements:        &PlacementRepository{store: store},
		StudentBatches:    &StudentBatchRepository{store: store, dispatcher: dispatcher},
		Courses:           &CourseRepository{store: store},
		Disciplines:       &DisciplineRepository{store: store},
		Poles:             &PoleRepository{store: store},
		Managers:          &ManagerRepository{store: store},
		Reports:           &ReportRepository{store: store},
	}
}

func paginate[T any](items []T, opts shared.ListOptions) []T {
	opts = opts.Normalized()
	if opts.Offset >= len(items) {
		return []T{}
	}
	end := opts.Offset + opts.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[opts.Offset:end]
}
