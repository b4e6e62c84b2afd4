// Package student holds the student side of the academic records domain.
//
// The package defines:
//
//   - Entities: Student, Enrollment (a student's link to a course), Placement
//     (a student's pole within a course)
//   - Aggregates: Enrollment, Batch
//   - Domain events: EnrollmentStatusChanged, StudentBatchCreated,
//     StudentBatchUpdated
//   - Repository interfaces: Repository, EnrollmentRepository,
//     PlacementRepository, BatchRepository
//
// # Enrollment status
//
// Toggling an enrollment queues an event on the aggregate; it only reaches
// subscribers after the enrollment repository saves it:
//
//	if err := enrollment.SetActive(false, actor.Audit()); err != nil {
//	    return err
//	}
//	return enrollments.Save(ctx, enrollment)
//
// # Bulk import
//
// A Batch wraps every row of one bulk submission. Each BatchItem says whether
// the student is new and how their placement changes:
//
//   - PlacementEnroll: no course link yet, create enrollment and placement
//   - PlacementMove: pole differs, replace the placement and keep the enrollment
//   - PlacementUnchanged: already placed correctly, nothing to write
//
// The batch repository persists every child inside one transaction, so a
// batch is either fully applied or not at all.
package student
