// CLAUDE:SUMMARY Tolerant due-date resolution: structured field layout first, then "Due dd/mm/yy" and "Due d Month yyyy" patterns over title and text.
// Package duedate resolves an assignment due date from the free-form strings
// a Moodle assignment page exposes. Every candidate is optional; the first
// one that yields a valid calendar date wins.
package duedate

import (
	"regexp"
	"strings"
	"time"
)

// Kind tells Resolve how to read a candidate string.
type Kind int

const (
	// Field is the structured "Due date" row of the assignment page.
	Field Kind = iota
	// Title is the activity title carried along with the assignment link.
	Title
	// Text is free text: the description, or the name when there is none.
	Text
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case Field:
		return "field"
	case Title:
		return "title"
	case Text:
		return "text"
	}
	return "unknown"
}

// Candidate is one source of a possible due date.
type Candidate struct {
	Kind Kind
	Text string
}

// FieldLayout is the layout Moodle uses for the "Due date" row,
// e.g. "Friday, 14 March 2025, 11:59 PM".
const FieldLayout = "Monday, 2 January 2006, 3:04 PM"

type pattern struct {
	re     *regexp.Regexp
	layout string
}

// Patterns are tried in order against Title and Text candidates.
// The short form only accepts a two digit year.
var patterns = []pattern{
	{re: regexp.MustCompile(`(?i)due (\d{1,2}/\d{1,2}/\d{2,4})`), layout: "2/1/06"},
	{re: regexp.MustCompile(`(?i)due (\d{1,2} [A-Za-z]+ \d{4})`), layout: "2 January 2006"},
}

var meridiem = regexp.MustCompile(`(?i)\s(am|pm)$`)

// Resolve returns the first due date found among candidates, in argument
// order. Dates are built as wall-clock times in loc. Empty candidates and
// strings that do not parse are skipped; ok is false when nothing matched.
func Resolve(loc *time.Location, candidates ...Candidate) (due time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, c := range candidates {
		s := strings.TrimSpace(c.Text)
		if s == "" {
			continue
		}
		switch c.Kind {
		case Field:
			if t, ok := parseField(s, loc); ok {
				return t, true
			}
		default:
			if t, ok := scan(s, loc); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParseField parses a structured "Due date" value.
func ParseField(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	return parseField(strings.TrimSpace(s), loc)
}

func parseField(s string, loc *time.Location) (time.Time, bool) {
	s = meridiem.ReplaceAllStringFunc(s, strings.ToUpper)
	t, err := time.ParseInLocation(FieldLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// scan tries each pattern in turn, and every occurrence of it, before
// moving to the next pattern.
func scan(s string, loc *time.Location) (time.Time, bool) {
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatch(s, -1) {
			t, err := time.ParseInLocation(p.layout, m[1], loc)
			if err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
