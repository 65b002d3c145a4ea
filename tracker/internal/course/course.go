// CLAUDE:SUMMARY Course registry, course content snapshot (ordered courses -> sections -> activities) and its order-preserving JSON form.
// Package course models the tracked courses and the section/activity layout
// scraped from each course page.
package course

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/coursewatch/tracker/internal/ordered"
)

// ErrInvalidRegistry is returned when registry entries are missing a code
// or repeat one.
var ErrInvalidRegistry = errors.New("course: invalid registry")

// Entry is one tracked course.
type Entry struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Registry is the ordered set of tracked courses.
type Registry struct {
	entries []Entry
	byCode  map[string]int
}

// NewRegistry builds a registry. Codes must be non-empty and unique.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{byCode: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Code == "" {
			return nil, fmt.Errorf("%w: empty course code", ErrInvalidRegistry)
		}
		if _, dup := r.byCode[e.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate course code %s", ErrInvalidRegistry, e.Code)
		}
		r.byCode[e.Code] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// Entries returns the courses in registration order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the entry for code.
func (r *Registry) Lookup(code string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	i, ok := r.byCode[code]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Name returns the display name for code, or the code itself when the
// course is unknown or unnamed.
func (r *Registry) Name(code string) string {
	if e, ok := r.Lookup(code); ok && e.Name != "" {
		return e.Name
	}
	return code
}

// Len returns the number of tracked courses.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Activity is one item listed in a course section.
type Activity struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Section is one topic or week block of a course page.
type Section struct {
	ID         string     `json:"-"`
	Name       string     `json:"name"`
	Activities []Activity `json:"activities"`
}

// Snapshot is the scraped layout of every course, in scrape order.
type Snapshot struct {
	order   []string
	courses map[string][]Section
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{courses: make(map[string][]Section)}
}

// Put stores the sections of a course. Re-putting a course keeps its position.
func (s *Snapshot) Put(code string, sections []Section) {
	if s.courses == nil {
		s.courses = make(map[string][]Section)
	}
	if _, ok := s.courses[code]; !ok {
		s.order = append(s.order, code)
	}
	if sections == nil {
		sections = []Section{}
	}
	s.courses[code] = sections
}

// Sections returns the sections recorded for code.
func (s *Snapshot) Sections(code string) ([]Section, bool) {
	if s == nil {
		return nil, false
	}
	secs, ok := s.courses[code]
	return secs, ok
}

// Codes returns course codes in snapshot order.
func (s *Snapshot) Codes() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of courses in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// MarshalJSON encodes the snapshot as
// {course: {section_id: {"name": ..., "activities": [...]}}}.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var top ordered.Writer
	if s != nil {
		for _, code := range s.order {
			var secs ordered.Writer
			for _, sec := range s.courses[code] {
				acts := sec.Activities
				if acts == nil {
					acts = []Activity{}
				}
				if err := secs.Field(sec.ID, Section{Name: sec.Name, Activities: acts}); err != nil {
					return nil, err
				}
			}
			if err := top.Raw(code, secs.Bytes()); err != nil {
				return nil, err
			}
		}
	}
	return top.Bytes(), nil
}

// UnmarshalJSON decodes the nested-object form, keeping document order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	out := NewSnapshot()
	err := ordered.Decode(data, func(code string, raw json.RawMessage) error {
		var sections []Section
		err := ordered.Decode(raw, func(id string, raw json.RawMessage) error {
			var sec Section
			if err := json.Unmarshal(raw, &sec); err != nil {
				return fmt.Errorf("course: section %s/%s: %w", code, id, err)
			}
			sec.ID = id
			sections = append(sections, sec)
			return nil
		})
		if err != nil {
			return err
		}
		out.Put(code, sections)
		return nil
	})
	if err != nil {
		return err
	}
	*s = *out
	return nil
}
