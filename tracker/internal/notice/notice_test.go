package notice

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
)

var myt = time.FixedZone("+08", 8*3600)

var now = time.Date(2025, time.March, 1, 8, 0, 0, 0, myt)

func after(d time.Duration) time.Time { return now.Add(d) }

func TestUntil(t *testing.T) {
	tests := []struct {
		delta time.Duration
		want  Remaining
	}{
		{5*24*time.Hour + 30*time.Minute, Remaining{Days: 5, Hours: 0, Minutes: 30}},
		{26*time.Hour + 59*time.Minute + 59*time.Second, Remaining{Days: 1, Hours: 2, Minutes: 59}},
		{45 * time.Second, Remaining{}},
		{-30 * time.Minute, Remaining{Days: -1, Hours: 23, Minutes: 30}},
		{-24 * time.Hour, Remaining{Days: -1}},
	}
	for _, tt := range tests {
		if got := Until(after(tt.delta), now); got != tt.want {
			t.Errorf("Until(%v): got %+v, want %+v", tt.delta, got, tt.want)
		}
	}
}

func TestClassify_Boundaries(t *testing.T) {
	// WHAT: Tier boundaries follow whole days, then hours on the last day.
	// WHY: These thresholds decide which glyph students see.
	tests := []struct {
		name  string
		delta time.Duration
		tier  Tier
		esc   Escalation
	}{
		{"six days", 6 * 24 * time.Hour, Calendar, NoEscalation},
		{"exactly five days", 5 * 24 * time.Hour, Warning, NoEscalation},
		{"three days", 3*24*time.Hour + time.Hour, Warning, NoEscalation},
		{"two days", 2*24*time.Hour + 23*time.Hour, Alert, NoEscalation},
		{"one day", 24 * time.Hour, Alert, NoEscalation},
		{"twenty hours", 20 * time.Hour, Alarm, NoEscalation},
		{"eleven hours", 11*time.Hour + 59*time.Minute, Alarm, DueToday},
		{"five hours", 5 * time.Hour, Alarm, Urgent},
		{"two hours", 2 * time.Hour, Alarm, Urgent},
		{"one hour", time.Hour + 59*time.Minute, Critical, Urgent},
		{"minutes", 59 * time.Minute, Critical, VeryUrgent},
		{"overdue", -time.Hour, Critical, NoEscalation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Classify(after(tt.delta), now)
			if u.Tier != tt.tier {
				t.Fatalf("tier: got %s, want %s (remaining %+v)", u.Tier, tt.tier, u.Remaining)
			}
			if u.Escalation != tt.esc {
				t.Fatalf("escalation: got %d, want %d", u.Escalation, tt.esc)
			}
		})
	}
}

func TestRemainingString(t *testing.T) {
	tests := []struct {
		r    Remaining
		want string
	}{
		{Remaining{Days: 2, Hours: 3, Minutes: 10}, "2 days, 3 hours"},
		{Remaining{Days: 2}, "2 days"},
		{Remaining{Hours: 0, Minutes: 45}, "0 hours, 45 minutes"},
		{Remaining{Hours: 4}, "4 hours"},
		{Remaining{Days: -1, Hours: 3}, "overdue"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("%+v: got %q, want %q", tt.r, got, tt.want)
		}
	}
}

func sample() assignment.Assignment {
	due := time.Date(2025, time.March, 1, 11, 59, 0, 0, myt)
	return assignment.Assignment{
		CourseCode:       "SMP25503",
		CourseName:       "Advanced Mathematics",
		ID:               "42",
		Name:             "Tutorial 3",
		DueDate:          &due,
		SubmissionStatus: "No attempt",
		GradingStatus:    "Not graded",
		URL:              "https://e/mod/assign/view.php?id=42",
		LastModified:     "-",
	}
}

func TestFormatAssignment(t *testing.T) {
	// WHAT: The card carries every field and the urgency lines.
	// WHY: It is the only thing the student reads.
	msg := FormatAssignment(sample(), now)
	want := "📚 Assignment Details\n\n" +
		"Course: Advanced Mathematics\n" +
		rule + "\n" +
		"Name: Tutorial 3\n" +
		"Due Date: 01 March 2025, 11:59 AM\n" +
		"\n⏰ Time Remaining: 3 hours, 59 minutes\n" +
		"❗️URGENT: Less than 6 hours remaining!\n" +
		"Status: No attempt\n" +
		"Grading: Not graded\n\n" +
		"Description:\nNo description available\n\n" +
		"Link: https://e/mod/assign/view.php?id=42\n" + rule
	if msg != want {
		t.Fatalf("got:\n%s\nwant:\n%s", msg, want)
	}
	if again := FormatAssignment(sample(), now); again != msg {
		t.Fatal("formatting must be deterministic")
	}
}

func TestFormatAssignment_NoDueDate(t *testing.T) {
	a := sample()
	a.DueDate = nil
	a.Description = "Read chapter 4."
	a.CourseName = ""
	msg := FormatAssignment(a, now)
	if !strings.Contains(msg, "Due Date: Not specified\n") {
		t.Fatalf("missing placeholder:\n%s", msg)
	}
	if strings.Contains(msg, "Time Remaining") {
		t.Fatalf("no remaining line without due date:\n%s", msg)
	}
	if !strings.Contains(msg, "Course: SMP25503") || !strings.Contains(msg, "Read chapter 4.") {
		t.Fatalf("unexpected body:\n%s", msg)
	}
}

func TestHeaders(t *testing.T) {
	if !strings.HasPrefix(NewAssignment(sample(), now), HeaderNew+"\n📚") {
		t.Fatal("new header")
	}
	if !strings.HasPrefix(UpdatedAssignment(sample(), now), HeaderUpdated+"\n📚") {
		t.Fatal("updated header")
	}
	if !strings.Contains(Dropped(sample()), "Tutorial 3") {
		t.Fatal("dropped notice must name the assignment")
	}
}

func TestCourseUpdates(t *testing.T) {
	reg, _ := course.NewRegistry(course.Entry{Code: "C1", Name: "Calculus"}, course.Entry{Code: "C2", Name: "Physics"})
	msg := CourseUpdates([]course.Update{
		{
			Code:          "C1",
			NewSections:   []course.Section{{ID: "s2", Name: "Week 2"}},
			NewActivities: []course.Activity{{Name: "Lab 2", Status: "Not completed"}},
			ModifiedActivities: []course.ActivityChange{
				{Name: "Quiz 1", Old: course.Activity{Name: "Quiz 1", Status: "Not completed"}, New: course.Activity{Name: "Quiz 1", Status: "Completed"}},
			},
		},
		{
			Code:      "C2",
			NewCourse: true,
			Sections:  []course.Section{{ID: "s1", Activities: []course.Activity{{Name: "Forum", Status: "Unknown"}}}},
		},
	}, reg)

	for _, want := range []string{
		"Course: Calculus\n",
		"🆕 New Sections:\n• Week 2\n",
		"🆕 New Activities:\n• Lab 2\n  Status: Not completed\n",
		"📝 Modified Activities:\n• Quiz 1\n  Status changed: Not completed ➡️ Completed\n",
		"Course: Physics\n" + rule + "\nNew/Updated Activities:\n• Forum\n  Status: Unknown\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}

func TestTrackedSummary(t *testing.T) {
	reg, _ := course.NewRegistry(course.Entry{Code: "SMP25503", Name: "Advanced Mathematics"}, course.Entry{Code: "X", Name: "Other"})
	if got := TrackedSummary(assignment.NewSet(), reg, now); got != "No active assignments being tracked." {
		t.Fatalf("empty: got %q", got)
	}

	late := sample()
	late.ID, late.Name = "2", "Essay"
	d := now.Add(72 * time.Hour)
	late.DueDate = &d
	other := sample()
	other.ID, other.CourseCode, other.Name = "3", "X", "Lab"

	msg := TrackedSummary(assignment.NewSet(late, other, sample()), reg, now)
	if strings.Index(msg, "Tutorial 3") > strings.Index(msg, "Essay") {
		t.Fatalf("sooner deadline should come first:\n%s", msg)
	}
	if !strings.Contains(msg, "📚 Other\n") || !strings.Contains(msg, "  Due: 01 Mar 2025, 11:59 AM\n") {
		t.Fatalf("unexpected summary:\n%s", msg)
	}
	if !strings.Contains(msg, "  Remaining: 3 days\n") {
		t.Fatalf("remaining missing:\n%s", msg)
	}
}

func TestLifecycleMessages(t *testing.T) {
	reg, _ := course.NewRegistry(course.Entry{Code: "C1", Name: "Calculus"}, course.Entry{Code: "C2"})
	msg := Startup(reg, []string{"07:00 AM", "07:00 PM"}, "GMT+8")
	if !strings.Contains(msg, "• Calculus (C1)\n• C2 (C2)\n") {
		t.Fatalf("courses:\n%s", msg)
	}
	if !strings.Contains(msg, "Checking at 07:00 AM and 07:00 PM daily (GMT+8)") {
		t.Fatalf("schedule:\n%s", msg)
	}

	got := CycleFailed(errors.New("boom"), 2, 3, time.Minute)
	if got != "An error occurred during monitoring: boom\nRetrying in 1 minute... (attempt 2/3)" {
		t.Fatalf("cycle failed: %q", got)
	}
	if !strings.Contains(GaveUp(errors.New("boom"), 3), "Failed after 3 attempts. Last error: boom") {
		t.Fatal("gave up message")
	}
	if Shutdown() == "" {
		t.Fatal("shutdown message")
	}
	if joinList([]string{"a", "b", "c"}) != "a, b and c" {
		t.Fatal("joinList")
	}
	if humanDuration(90*time.Second) != "90 seconds" || humanDuration(2*time.Minute) != "2 minutes" {
		t.Fatal("humanDuration")
	}
}
