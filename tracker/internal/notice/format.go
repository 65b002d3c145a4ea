package notice

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
)

const rule = "----------------------------------------"

// Date layouts used in messages.
const (
	LongDate  = "02 January 2006, 03:04 PM"
	ShortDate = "02 Jan 2006, 03:04 PM"
)

// Message headers.
const (
	HeaderNew     = "🆕 New Assignment!"
	HeaderUpdated = "📝 Assignment Updated!"
)

// FormatAssignment renders the detail card of one assignment as seen at now.
// The output depends only on its arguments.
func FormatAssignment(a assignment.Assignment, now time.Time) string {
	var b strings.Builder
	b.WriteString("📚 Assignment Details\n\n")
	fmt.Fprintf(&b, "Course: %s\n", courseLabel(a))
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	if a.DueDate == nil {
		b.WriteString("Due Date: Not specified\n")
	} else {
		fmt.Fprintf(&b, "Due Date: %s\n", a.DueDate.Format(LongDate))
		u := Classify(*a.DueDate, now)
		fmt.Fprintf(&b, "\n%s Time Remaining: %s\n", u.Tier.Glyph(), u.Remaining)
		if line := u.Escalation.Line(); line != "" {
			b.WriteString(line + "\n")
		}
	}
	fmt.Fprintf(&b, "Status: %s\n", a.SubmissionStatus)
	fmt.Fprintf(&b, "Grading: %s\n\n", a.GradingStatus)
	b.WriteString("Description:\n")
	if strings.TrimSpace(a.Description) == "" {
		b.WriteString("No description available")
	} else {
		b.WriteString(a.Description)
	}
	fmt.Fprintf(&b, "\n\nLink: %s\n%s", a.URL, rule)
	return b.String()
}

// NewAssignment renders the notification for a newly tracked assignment.
func NewAssignment(a assignment.Assignment, now time.Time) string {
	return HeaderNew + "\n" + FormatAssignment(a, now)
}

// UpdatedAssignment renders the notification for a changed assignment.
func UpdatedAssignment(a assignment.Assignment, now time.Time) string {
	return HeaderUpdated + "\n" + FormatAssignment(a, now)
}

// Dropped renders the notice for an assignment that left the tracked set.
func Dropped(a assignment.Assignment) string {
	var b strings.Builder
	b.WriteString("📭 Assignment no longer tracked\n\n")
	fmt.Fprintf(&b, "Course: %s\n", courseLabel(a))
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	fmt.Fprintf(&b, "Last known status: %s\n", a.SubmissionStatus)
	fmt.Fprintf(&b, "Link: %s", a.URL)
	return b.String()
}

func courseLabel(a assignment.Assignment) string {
	if a.CourseName != "" {
		return a.CourseName
	}
	return a.CourseCode
}

// CourseUpdates renders the course page changes of one poll.
func CourseUpdates(updates []course.Update, reg *course.Registry) string {
	var b strings.Builder
	b.WriteString("📚 E-Learning Updates\n\n")
	for _, u := range updates {
		fmt.Fprintf(&b, "Course: %s\n", reg.Name(u.Code))
		b.WriteString(rule + "\n")

		if u.NewCourse {
			b.WriteString("New/Updated Activities:\n")
			for _, sec := range u.Sections {
				for _, act := range sec.Activities {
					writeActivity(&b, act)
				}
			}
			b.WriteString(rule + "\n\n")
			continue
		}

		if len(u.NewSections) > 0 {
			b.WriteString("🆕 New Sections:\n")
			for _, sec := range u.NewSections {
				fmt.Fprintf(&b, "• %s\n", sec.Name)
			}
		}
		if len(u.NewActivities) > 0 {
			b.WriteString("\n🆕 New Activities:\n")
			for _, act := range u.NewActivities {
				writeActivity(&b, act)
			}
		}
		if len(u.ModifiedActivities) > 0 {
			b.WriteString("\n📝 Modified Activities:\n")
			for _, ch := range u.ModifiedActivities {
				fmt.Fprintf(&b, "• %s\n", ch.Name)
				if ch.Old.Status != ch.New.Status {
					fmt.Fprintf(&b, "  Status changed: %s ➡️ %s\n", ch.Old.Status, ch.New.Status)
				}
			}
		}
		b.WriteString(rule + "\n\n")
	}
	return b.String()
}

func writeActivity(b *strings.Builder, act course.Activity) {
	fmt.Fprintf(b, "• %s\n", act.Name)
	fmt.Fprintf(b, "  Status: %s\n", act.Status)
}

// TrackedSummary lists tracked assignments grouped by course, soonest
// deadline first.
func TrackedSummary(set *assignment.Set, reg *course.Registry, now time.Time) string {
	if set.Len() == 0 {
		return "No active assignments being tracked."
	}
	list := set.Slice()
	slices.SortStableFunc(list, func(a, b assignment.Assignment) int {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	})

	var codes []string
	byCourse := make(map[string][]assignment.Assignment)
	for _, a := range list {
		if _, ok := byCourse[a.CourseCode]; !ok {
			codes = append(codes, a.CourseCode)
		}
		byCourse[a.CourseCode] = append(byCourse[a.CourseCode], a)
	}

	var b strings.Builder
	b.WriteString("📋 Currently Tracked Assignments\n\n")
	for _, code := range codes {
		fmt.Fprintf(&b, "📚 %s\n", cmp.Or(nameFor(byCourse[code][0], reg), code))
		b.WriteString(rule + "\n")
		for _, a := range byCourse[code] {
			fmt.Fprintf(&b, "• %s\n", a.Name)
			if a.DueDate != nil {
				fmt.Fprintf(&b, "  Due: %s\n", a.DueDate.Format(ShortDate))
				fmt.Fprintf(&b, "  Remaining: %s\n", Until(*a.DueDate, now))
			}
			fmt.Fprintf(&b, "  Status: %s\n\n", a.SubmissionStatus)
		}
		b.WriteString(rule + "\n\n")
	}
	return b.String()
}

func nameFor(a assignment.Assignment, reg *course.Registry) string {
	if _, ok := reg.Lookup(a.CourseCode); ok {
		return reg.Name(a.CourseCode)
	}
	return a.CourseName
}

// Startup announces the tracked courses and the check schedule.
func Startup(reg *course.Registry, checks []string, zone string) string {
	var b strings.Builder
	b.WriteString("🤖 coursewatch is now connected and monitoring courses!\n\n")
	b.WriteString("📚 Tracked Courses:\n")
	for _, e := range reg.Entries() {
		fmt.Fprintf(&b, "• %s (%s)\n", cmp.Or(e.Name, e.Code), e.Code)
	}
	if len(checks) > 0 {
		fmt.Fprintf(&b, "\n⏰ Checking at %s daily (%s)\n", joinList(checks), zone)
	}
	return b.String()
}

// Shutdown is sent when the service stops.
func Shutdown() string {
	return "🔴 coursewatch has stopped running. Service will be unavailable until restart."
}

// CycleFailed reports a failed poll that will be retried.
func CycleFailed(err error, attempt, max int, retry time.Duration) string {
	return fmt.Sprintf("An error occurred during monitoring: %v\nRetrying in %s... (attempt %d/%d)",
		err, humanDuration(retry), attempt, max)
}

// GaveUp reports that the service stops after repeated failures.
func GaveUp(err error, attempts int) string {
	return fmt.Sprintf("❌ Failed after %d attempts. Last error: %v\nThe service will now exit for a restart.", attempts, err)
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int(d/time.Second), "second")
	}
	return d.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
