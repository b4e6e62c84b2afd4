package postgres

import (
	"strings"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// Repositories bundles every PostgreSQL repository over one pool.
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

// NewRepositories wires every repository. Writes dispatch through dispatcher
// after they commit.
func NewRepositories(conn *Connection, dispatcher shared.AggregateDispatcher) *Repositories {
	return &Repositories{
		Assessments:       NewAssessmentRepository(conn, dispatcher),
		AssessmentBatches: NewAssessmentBatchRepository(conn, dispatcher),
		Students:          NewStudentRepository(conn),
		Enrollments:       NewEnrollmentRepository(conn, dispatcher),
		Placements:        NewPlacementRepository(conn),
		StudentBatches:    NewStudentBatchRepository(conn, dispatcher),
		Courses:           NewCourseRepository(conn),
		Disciplines:       NewDisciplineRepository(conn),
		Poles:             NewPoleRepository(conn),
		Managers:          NewManagerRepository(conn),
		Reports:           NewReportRepository(conn),
	}
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// nullable maps an empty optional reference to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
