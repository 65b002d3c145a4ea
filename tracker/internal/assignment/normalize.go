package assignment

import (
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/duedate"
)

// Detail row labels on a Moodle assignment page.
const (
	DetailSubmission   = "Submission status"
	DetailGrading      = "Grading status"
	DetailDueDate      = "Due date"
	DetailLastModified = "Last modified"
)

// titleFragment prefixes the URL fragment carrying the activity title.
const titleFragment = "title="

// Raw is an assignment page as scraped, before normalization.
type Raw struct {
	CourseCode string
	Name       string
	// Description is the intro as shown in notices (markdown).
	Description string
	// Text is the intro as plain text. Due dates are searched here, since
	// markup like **Due** hides them from the patterns.
	Text      string
	Details   map[string]string
	SourceURL string
}

// Normalize turns a scraped page into an Assignment. It fails, dropping the
// whole record, when the course code is missing or the URL has no id.
// Due dates are resolved in loc.
func Normalize(raw Raw, reg *course.Registry, loc *time.Location) (Assignment, bool) {
	if raw.CourseCode == "" {
		return Assignment{}, false
	}
	canonical, title, id, ok := splitURL(raw.SourceURL)
	if !ok {
		return Assignment{}, false
	}

	text := raw.Text
	if strings.TrimSpace(text) == "" {
		text = raw.Description
	}
	if strings.TrimSpace(text) == "" {
		text = raw.Name
	}
	a := Assignment{
		CourseCode:       raw.CourseCode,
		CourseName:       reg.Name(raw.CourseCode),
		ID:               id,
		Name:             raw.Name,
		SubmissionStatus: detail(raw.Details, DetailSubmission, StatusNoAttempt),
		GradingStatus:    detail(raw.Details, DetailGrading, GradingNotGraded),
		Description:      raw.Description,
		URL:              canonical,
		LastModified:     detail(raw.Details, DetailLastModified, LastModifiedUnknown),
	}
	due, found := duedate.Resolve(loc,
		duedate.Candidate{Kind: duedate.Field, Text: raw.Details[DetailDueDate]},
		duedate.Candidate{Kind: duedate.Title, Text: title},
		duedate.Candidate{Kind: duedate.Text, Text: text},
	)
	if found {
		a.DueDate = &due
	}
	return a, true
}

// detail returns the trimmed row value, or def when the row is missing or blank.
func detail(d map[string]string, key, def string) string {
	if v := strings.TrimSpace(d[key]); v != "" {
		return v
	}
	return def
}

// splitURL strips the fragment from raw and extracts the id query parameter
// and the title carried in a "#title=" fragment.
func splitURL(raw string) (canonical, title, id string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", "", false
	}
	if frag, found := strings.CutPrefix(u.EscapedFragment(), titleFragment); found {
		if t, err := url.QueryUnescape(frag); err == nil {
			title = t
		} else {
			title = frag
		}
	}
	u.Fragment = ""
	u.RawFragment = ""
	id = u.Query().Get("id")
	if id == "" {
		return "", "", "", false
	}
	return u.String(), title, id, true
}

// IDFromURL returns the assignment id carried by an assignment link.
func IDFromURL(link string) (string, bool) {
	_, _, id, ok := splitURL(link)
	return id, ok
}

// WithTitle appends the activity title to an assignment link so the
// normalizer can read a due date from it later.
func WithTitle(link, title string) string {
	if title == "" {
		return link
	}
	return link + "#" + titleFragment + url.QueryEscape(title)
}
