package tracker

import (
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/duedate"
	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
)

// ResolveDueDate returns the first valid due date found in candidates,
// tried in order. The wall clock is read in loc.
func ResolveDueDate(loc *time.Location, candidates ...DueCandidate) (time.Time, bool) {
	return duedate.Resolve(loc, candidates...)
}

// NormalizeAssignment turns a scraped page into an Assignment, or reports
// false when the record lacks a course code or an id.
func NormalizeAssignment(raw RawAssignment, reg *CourseRegistry, loc *time.Location) (Assignment, bool) {
	return assignment.Normalize(raw, reg, loc)
}

// ActiveAssignments keeps the candidates still awaiting a first attempt
// and due after now.
func ActiveAssignments(candidates []Assignment, now time.Time) *AssignmentSet {
	return assignment.Active(candidates, now)
}

// DiffCourseSnapshots lists the per-course changes from previous to
// current. A nil previous is a cold start.
func DiffCourseSnapshots(current, previous *CourseSnapshot) []CourseUpdate {
	return course.Diff(current, previous)
}

// DiffAssignmentSets returns the new and modified records of current.
func DiffAssignmentSets(current, previous *AssignmentSet) (added, modified []Assignment) {
	return assignment.Diff(current, previous)
}

// DroppedAssignments returns the records of previous absent from current.
func DroppedAssignments(current, previous *AssignmentSet) []Assignment {
	return assignment.Dropped(current, previous)
}

// ClassifyUrgency maps the time left before due onto an urgency tier.
func ClassifyUrgency(due, now time.Time) Urgency {
	return notice.Classify(due, now)
}

// FormatNotification renders the body of an assignment notice.
func FormatNotification(a Assignment, now time.Time) string {
	return notice.FormatAssignment(a, now)
}

// NewCourseRegistry builds a registry from entries with unique codes.
func NewCourseRegistry(entries ...CourseEntry) (*CourseRegistry, error) {
	return course.NewRegistry(entries...)
}

// NewCourseSnapshot returns an empty snapshot.
func NewCourseSnapshot() *CourseSnapshot { return course.NewSnapshot() }

// NewAssignmentSet returns a set holding as, in order.
func NewAssignmentSet(as ...Assignment) *AssignmentSet { return assignment.NewSet(as...) }
