// CLAUDE:SUMMARY Assignment record, ordered assignment set with order-preserving JSON, field-wise equality.
// Package assignment normalizes scraped assignment pages into records and
// computes which tracked assignments are new or changed.
package assignment

import (
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/ordered"
)

// Default field values used when the portal omits a row.
const (
	StatusNoAttempt     = "No attempt"
	GradingNotGraded    = "Not graded"
	LastModifiedUnknown = "-"
)

// Assignment is one normalized assignment.
//
// CourseName is display data copied from the course registry; it is
// persisted but is not part of equality.
type Assignment struct {
	CourseCode       string     `json:"course_code"`
	CourseName       string     `json:"course_name,omitempty"`
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	DueDate          *time.Time `json:"due_date"`
	SubmissionStatus string     `json:"submission_status"`
	GradingStatus    string     `json:"grading_status"`
	Description      string     `json:"description"`
	URL              string     `json:"url"`
	LastModified     string     `json:"last_modified"`
}

// Equal compares the tracked fields of a and b. Due dates compare as
// instants; two absent due dates are equal.
func Equal(a, b Assignment) bool {
	return a.CourseCode == b.CourseCode &&
		a.ID == b.ID &&
		a.Name == b.Name &&
		sameDue(a.DueDate, b.DueDate) &&
		a.SubmissionStatus == b.SubmissionStatus &&
		a.GradingStatus == b.GradingStatus &&
		a.Description == b.Description &&
		a.URL == b.URL &&
		a.LastModified == b.LastModified
}

func sameDue(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Set is an id-keyed collection that remembers insertion order.
// A nil *Set behaves as an empty set for reads.
type Set struct {
	order []string
	items map[string]Assignment
}

// NewSet returns a set holding as, in order.
func NewSet(as ...Assignment) *Set {
	s := &Set{items: make(map[string]Assignment, len(as))}
	for _, a := range as {
		s.Put(a)
	}
	return s
}

// Put inserts a or replaces the record with the same id in place.
func (s *Set) Put(a Assignment) {
	if s.items == nil {
		s.items = make(map[string]Assignment)
	}
	if _, ok := s.items[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.items[a.ID] = a
}

// Get returns the record for id.
func (s *Set) Get(id string) (Assignment, bool) {
	if s == nil {
		return Assignment{}, false
	}
	a, ok := s.items[id]
	return a, ok
}

// Len returns the number of records.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// All iterates over records in insertion order.
func (s *Set) All() iter.Seq[Assignment] {
	return func(yield func(Assignment) bool) {
		if s == nil {
			return
		}
		for _, id := range s.order {
			if !yield(s.items[id]) {
				return
			}
		}
	}
}

// Slice returns the records in insertion order.
func (s *Set) Slice() []Assignment {
	out := make([]Assignment, 0, s.Len())
	for a := range s.All() {
		out = append(out, a)
	}
	return out
}

// Equal reports whether both sets hold equal records for the same ids.
// Order is ignored.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for a := range s.All() {
		b, ok := o.Get(a.ID)
		if !ok || !Equal(a, b) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as one object keyed by id, in order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var w ordered.Writer
	for a := range s.All() {
		if err := w.Field(a.ID, a); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// UnmarshalJSON decodes the id-keyed object, keeping document order.
// A record without an id takes its key.
func (s *Set) UnmarshalJSON(data []byte) error {
	out := NewSet()
	err := ordered.Decode(data, func(id string, raw json.RawMessage) error {
		var a Assignment
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("assignment: record %s: %w", id, err)
		}
		if a.ID == "" {
			a.ID = id
		}
		out.Put(a)
		return nil
	})
	if err != nil {
		return err
	}
	*s = *out
	return nil
}
