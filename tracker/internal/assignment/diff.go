package assignment

import "time"

// Reasons an assignment is left out of the tracked set.
const (
	ReasonAttempted = "attempted"
	ReasonNoDueDate = "no due date"
	ReasonPastDue   = "past due"
)

// Exclusion returns why a is not tracked at now, or "" when it is.
func Exclusion(a Assignment, now time.Time) string {
	switch {
	case a.SubmissionStatus != StatusNoAttempt:
		return ReasonAttempted
	case a.DueDate == nil:
		return ReasonNoDueDate
	case !a.DueDate.After(now):
		return ReasonPastDue
	}
	return ""
}

// IsActive reports whether a is still awaiting a first attempt and due
// strictly after now.
func IsActive(a Assignment, now time.Time) bool {
	return Exclusion(a, now) == ""
}

// Active keeps the active candidates, in order. A repeated id replaces the
// earlier record in place.
func Active(candidates []Assignment, now time.Time) *Set {
	s := NewSet()
	for _, a := range candidates {
		if IsActive(a, now) {
			s.Put(a)
		}
	}
	return s
}

// Diff returns the records of current whose id is absent from previous
// (added) and those present in both but no longer Equal (modified), in
// current order.
func Diff(current, previous *Set) (added, modified []Assignment) {
	for a := range current.All() {
		old, ok := previous.Get(a.ID)
		switch {
		case !ok:
			added = append(added, a)
		case !Equal(a, old):
			modified = append(modified, a)
		}
	}
	return added, modified
}

// Dropped returns the records of previous that current no longer tracks,
// in previous order.
func Dropped(current, previous *Set) []Assignment {
	var out []Assignment
	for a := range previous.All() {
		if _, ok := current.Get(a.ID); !ok {
			out = append(out, a)
		}
	}
	return out
}
