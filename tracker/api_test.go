package tracker

import (
	"testing"
	"time"
)

func TestDiffAssignmentSets_IdempotentAndOrderIndependent(t *testing.T) {
	// WHAT: A set diffed against itself is quiet, and insertion order does
	// not change which ids are new or modified.
	due := time.Date(2025, 3, 14, 23, 59, 0, 0, gmt8)
	later := due.Add(24 * time.Hour)
	a := Assignment{CourseCode: "MAT101", ID: "1", Name: "A", DueDate: &due, SubmissionStatus: "No attempt"}
	b := Assignment{CourseCode: "MAT101", ID: "2", Name: "B", DueDate: &due, SubmissionStatus: "No attempt"}
	c := Assignment{CourseCode: "PHY102", ID: "3", Name: "C", DueDate: &due, SubmissionStatus: "No attempt"}

	s := NewAssignmentSet(a, b, c)
	if added, modified := DiffAssignmentSets(s, s); len(added)+len(modified) != 0 {
		t.Fatalf("self diff: %v %v", added, modified)
	}

	b2 := b
	b2.DueDate = &later
	prev := NewAssignmentSet(a, b)
	for _, cur := range []*AssignmentSet{NewAssignmentSet(a, b2, c), NewAssignmentSet(c, b2, a)} {
		added, modified := DiffAssignmentSets(cur, prev)
		if len(added) != 1 || added[0].ID != "3" || len(modified) != 1 || modified[0].ID != "2" {
			t.Fatalf("diff: added %v modified %v", added, modified)
		}
	}
	if dropped := DroppedAssignments(NewAssignmentSet(c), prev); len(dropped) != 2 {
		t.Fatalf("dropped: %v", dropped)
	}
}

func TestResolveDueDate_Priority(t *testing.T) {
	due, ok := ResolveDueDate(gmt8,
		DueCandidate{Kind: DueField, Text: ""},
		DueCandidate{Kind: DueTitle, Text: "Quiz (due 5/4/25)"},
		DueCandidate{Kind: DueText, Text: "Due 9 April 2025"},
	)
	if !ok {
		t.Fatal("no due date")
	}
	if want := time.Date(2025, 4, 5, 0, 0, 0, 0, gmt8); !due.Equal(want) {
		t.Fatalf("due: %v, want %v", due, want)
	}
	if _, ok := ResolveDueDate(gmt8, DueCandidate{Kind: DueText, Text: "no dates here"}); ok {
		t.Fatal("unexpected match")
	}
}

func TestClassifyUrgencyAndFormat(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, gmt8)
	due := now.Add(30 * time.Minute)
	if u := ClassifyUrgency(due, now); u.Tier.String() != "critical" {
		t.Fatalf("tier: %s", u.Tier)
	}
	a := Assignment{CourseCode: "MAT101", CourseName: "Mathematics", ID: "1", Name: "Quiz", DueDate: &due, SubmissionStatus: "No attempt"}
	if FormatNotification(a, now) != FormatNotification(a, now) {
		t.Fatal("format is not deterministic")
	}
}

func TestActiveAssignments(t *testing.T) {
	// WHAT: Only unattempted records due strictly after now survive, in order.
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, gmt8)
	soon := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	cands := []Assignment{
		{ID: "1", DueDate: &soon, SubmissionStatus: "No attempt"},
		{ID: "2", DueDate: &soon, SubmissionStatus: "Submitted for grading"},
		{ID: "3", DueDate: &past, SubmissionStatus: "No attempt"},
		{ID: "4", SubmissionStatus: "No attempt"},
		{ID: "5", DueDate: &now, SubmissionStatus: "No attempt"},
		{ID: "6", DueDate: &soon, SubmissionStatus: "No attempt"},
	}
	got := ActiveAssignments(cands, now).Slice()
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "6" {
		t.Fatalf("active: %v", got)
	}
}
