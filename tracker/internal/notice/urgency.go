// CLAUDE:SUMMARY Urgency tiers and remaining-time breakdown for a due date, with same-day escalation notes.
// Package notice classifies how close an assignment is to its deadline and
// renders the text sent to messaging channels.
package notice

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a coarse urgency level.
type Tier int

const (
	Calendar Tier = iota // more than 5 whole days left
	Warning              // 3 to 5 whole days
	Alert                // 1 or 2 whole days
	Alarm                // same day, more than 1 hour
	Critical             // same day, 1 hour or less, or overdue
)

var tierNames = [...]string{"calendar", "warning", "alert", "alarm", "critical"}

// tierGlyphs are rendered in front of the remaining time.
var tierGlyphs = [...]string{"📆", "⚠️", "🚨", "⏰", "🔥"}

// String returns the lowercase tier name.
func (t Tier) String() string {
	if t < Calendar || t > Critical {
		return "unknown"
	}
	return tierNames[t]
}

// Glyph returns the emoji shown for the tier.
func (t Tier) Glyph() string {
	if t < Calendar || t > Critical {
		return ""
	}
	return tierGlyphs[t]
}

// Escalation is an extra same-day warning line.
type Escalation int

const (
	NoEscalation Escalation = iota
	DueToday                // less than 12 hours
	Urgent                  // less than 6 hours
	VeryUrgent              // less than 1 hour
)

// Line returns the text rendered for the escalation, or "".
func (e Escalation) Line() string {
	switch e {
	case VeryUrgent:
		return "❗️VERY URGENT: Less than 1 hour remaining!"
	case Urgent:
		return "❗️URGENT: Less than 6 hours remaining!"
	case DueToday:
		return "⚠️ Due today - less than 12 hours remaining!"
	}
	return ""
}

// Remaining splits the time left into whole days plus hours and minutes
// within the last day. Days are floored, so an overdue delta has negative
// Days and non-negative Hours and Minutes.
type Remaining struct {
	Days    int
	Hours   int
	Minutes int
}

// Until computes the time remaining from now to due.
func Until(due, now time.Time) Remaining {
	d := due.Sub(now).Truncate(time.Second)
	const day = 24 * time.Hour
	days := d / day
	rem := d - days*day
	if rem < 0 {
		days--
		rem += day
	}
	return Remaining{
		Days:    int(days),
		Hours:   int(rem / time.Hour),
		Minutes: int(rem % time.Hour / time.Minute),
	}
}

// Overdue reports whether the deadline has passed.
func (r Remaining) Overdue() bool { return r.Days < 0 }

// String renders "2 days, 3 hours": days when positive, hours when positive
// or on the last day, minutes only on the last day.
func (r Remaining) String() string {
	if r.Overdue() {
		return "overdue"
	}
	var parts []string
	if r.Days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", r.Days))
	}
	if r.Hours > 0 || r.Days == 0 {
		parts = append(parts, fmt.Sprintf("%d hours", r.Hours))
	}
	if r.Minutes > 0 && r.Days == 0 {
		parts = append(parts, fmt.Sprintf("%d minutes", r.Minutes))
	}
	return strings.Join(parts, ", ")
}

// Urgency is the classification of one due date at one instant.
type Urgency struct {
	Tier       Tier
	Escalation Escalation
	Remaining  Remaining
}

// Classify maps the time left before due onto a tier and, on the last day,
// an escalation. Overdue dates are Critical without escalation.
func Classify(due, now time.Time) Urgency {
	r := Until(due, now)
	u := Urgency{Remaining: r}
	switch {
	case r.Days > 5:
		u.Tier = Calendar
	case r.Days > 2:
		u.Tier = Warning
	case r.Days > 0:
		u.Tier = Alert
	case r.Days == 0 && r.Hours > 1:
		u.Tier = Alarm
	default:
		u.Tier = Critical
	}
	if r.Days == 0 {
		switch {
		case r.Hours < 1:
			u.Escalation = VeryUrgent
		case r.Hours < 6:
			u.Escalation = Urgent
		case r.Hours < 12:
			u.Escalation = DueToday
		}
	}
	return u
}
