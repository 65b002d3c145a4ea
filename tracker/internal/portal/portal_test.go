package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
)

const loginPage = `<html><body>
<form id="login" method="post" action="/login/index.php">
  <input type="hidden" name="logintoken" value="tok123">
  <input type="text" name="username" value="">
  <input type="password" name="password" value="">
  <input type="submit" name="submitbtn" value="Log in">
</form>
<div class="loginerrors">%s</div>
</body></html>`

const coursePage = `<html><body><ul class="topics">
<li id="section-0" class="section main clearfix" role="region">
  <h3 class="sectionname"><span>General</span></h3>
  <ul class="section img-text">
    <li class="activity forum modtype_forum" id="module-1">
      <a class="aalink" href="/mod/forum/view.php?id=1"><span class="instancename">Announcements<span class="accesshide "> Forum</span></span></a>
    </li>
  </ul>
</li>
<li id="section-1" class="section main clearfix">
  <h3 class="sectionname">Week 1</h3>
  <ul class="section img-text">
    <li class="activity assign modtype_assign" id="module-11">
      <a class="aalink" href="/mod/assign/view.php?id=11"><span class="instancename">Tutorial 1 (Due 14/03/25)<span class="accesshide "> Assignment</span></span></a>
      <img class="icon" alt="Not completed: Tutorial 1" src="x.png">
    </li>
    <li class="activity assign modtype_assign" id="module-12">
      <a class="aalink" href="https://HOST/mod/assign/view.php?id=12"><span class="instancename">Report</span></a>
      <img alt="Completed: Report" src="y.png">
    </li>
    <li class="activity label modtype_label"><div>no name here</div></li>
  </ul>
</li>
<li id="section-2" class="section main clearfix"><div>hidden section without heading</div></li>
</ul></body></html>`

const assignPage = `<html><body>
<h2>Tutorial 1</h2>
<div id="intro" class="box generalbox"><p>Solve <strong>all</strong> questions.</p><script>alert(1)</script></div>
<table class="generaltable">
<tr><th>Submission status</th><td>No attempt</td></tr>
<tr><th>Grading status</th><td>Not graded</td></tr>
<tr><th>Due date</th><td>Friday, 14 March 2025, 11:59 PM</td></tr>
<tr><th>Time remaining</th><td>5 days</td></tr>
<tr><td>orphan cell</td></tr>
</table>
</body></html>`

// fakeMoodle is a minimal Moodle: a login form, a session cookie, one
// course page and two assignment pages.
type fakeMoodle struct {
	srv        *httptest.Server
	mu         sync.Mutex
	sessions   map[string]bool
	logins     atomic.Int32
	courseHits atomic.Int32
	password   string
	failPage   string
}

func newFakeMoodle(t *testing.T) *fakeMoodle {
	t.Helper()
	m := &fakeMoodle{sessions: make(map[string]bool), password: "secret"}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *fakeMoodle) authed(r *http.Request) bool {
	c, err := r.Cookie("MoodleSession")
	if err != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[c.Value]
}

func (m *fakeMoodle) expireAll() {
	m.mu.Lock()
	m.sessions = make(map[string]bool)
	m.mu.Unlock()
}

func (m *fakeMoodle) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/login/index.php" && r.Method == http.MethodPost:
		r.ParseForm()
		if r.PostForm.Get("logintoken") != "tok123" || r.PostForm.Get("password") != m.password || r.PostForm.Get("username") != "student" {
			http.Redirect(w, r, "/login/index.php?err=1", http.StatusSeeOther)
			return
		}
		if _, ok := r.PostForm["anchor"]; !ok {
			http.Error(w, "anchor missing", http.StatusBadRequest)
			return
		}
		id := fmt.Sprintf("s%d", m.logins.Add(1))
		m.mu.Lock()
		m.sessions[id] = true
		m.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "MoodleSession", Value: id, Path: "/"})
		http.Redirect(w, r, "/my/", http.StatusSeeOther)
	case r.URL.Path == "/login/index.php":
		msg := ""
		if r.URL.Query().Get("err") != "" {
			msg = "Invalid login, please try again"
		}
		fmt.Fprintf(w, loginPage, msg)
	case !m.authed(r):
		http.Redirect(w, r, "/login/index.php?err=1", http.StatusSeeOther)
	case r.URL.Path == "/my/":
		fmt.Fprint(w, "<html><body>Dashboard</body></html>")
	case r.URL.Path == "/course/view.php":
		m.courseHits.Add(1)
		fmt.Fprint(w, strings.ReplaceAll(coursePage, "https://HOST", m.srv.URL))
	case r.URL.Path == "/mod/assign/view.php" && r.URL.Query().Get("id") == m.failPage:
		http.Error(w, "boom", http.StatusInternalServerError)
	case r.URL.Path == "/mod/assign/view.php":
		fmt.Fprint(w, assignPage)
	default:
		http.NotFound(w, r)
	}
}

func (m *fakeMoodle) client(t *testing.T, password string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: m.srv.URL + "/", Username: "student", Password: password}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func (m *fakeMoodle) entry() course.Entry {
	return course.Entry{Code: "SMP25503", Name: "Maths", URL: m.srv.URL + "/course/view.php?id=7360"}
}

func TestClient_FetchCourseState(t *testing.T) {
	// WHAT: Lazy login then course scrape.
	// WHY: The first request of a poll must transparently open the session.
	m := newFakeMoodle(t)
	c := m.client(t, "secret")

	sections, err := c.FetchCourseState(context.Background(), m.entry())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if m.logins.Load() != 1 {
		t.Fatalf("logins: got %d, want 1", m.logins.Load())
	}
	if len(sections) != 2 {
		t.Fatalf("sections: got %d, want 2 (%+v)", len(sections), sections)
	}
	if sections[0].ID != "section-0" || sections[0].Name != "General" {
		t.Fatalf("section 0: %+v", sections[0])
	}
	if got := sections[0].Activities; len(got) != 1 || got[0].Name != "Announcements" || got[0].Status != StatusUnknown {
		t.Fatalf("section 0 activities: %+v", got)
	}
	acts := sections[1].Activities
	if len(acts) != 2 {
		t.Fatalf("section 1 activities: %+v", acts)
	}
	if acts[0].Name != "Tutorial 1 (Due 14/03/25)" || acts[0].Status != "Not completed: Tutorial 1" {
		t.Fatalf("activity 0: %+v", acts[0])
	}
	if acts[1].Status != "Completed: Report" {
		t.Fatalf("activity 1: %+v", acts[1])
	}
}

func TestClient_FetchAssignmentPages(t *testing.T) {
	m := newFakeMoodle(t)
	m.failPage = "12"
	c := m.client(t, "secret")

	pages, err := c.FetchAssignmentPages(context.Background(), m.entry())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages: got %d, want 2", len(pages))
	}
	if pages[0].Err != nil || pages[1].Err == nil || pages[1].HTML != "" {
		t.Fatalf("page 12 should carry its download error: %+v", pages[1])
	}
	if !strings.HasSuffix(pages[1].URL, "id=12") {
		t.Fatalf("failed page url: %s", pages[1].URL)
	}
	if _, err := ParseAssignmentPage(pages[1], "SMP25503"); err == nil {
		t.Fatal("a failed page must not parse")
	}
	u, err := url.Parse(pages[0].URL)
	if err != nil {
		t.Fatalf("page url: %v", err)
	}
	if u.Query().Get("id") != "11" || !strings.HasPrefix(u.EscapedFragment(), "title=") {
		t.Fatalf("page url should carry the title: %s", pages[0].URL)
	}

	raw, err := ParseAssignmentPage(pages[0], "SMP25503")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if raw.Name != "Tutorial 1" || raw.CourseCode != "SMP25503" {
		t.Fatalf("raw: %+v", raw)
	}
	if raw.Details["Due date"] != "Friday, 14 March 2025, 11:59 PM" || raw.Details["Submission status"] != "No attempt" {
		t.Fatalf("details: %+v", raw.Details)
	}
	if !strings.Contains(raw.Description, "Solve **all** questions.") {
		t.Fatalf("description should be markdown: %q", raw.Description)
	}
	if strings.Contains(raw.Description, "alert") {
		t.Fatalf("script must be sanitized away: %q", raw.Description)
	}
}

func TestClient_CoursePageFetchedOncePerPoll(t *testing.T) {
	// WHAT: FetchAssignmentPages reuses the course page FetchCourseState
	// just read; a later call without it downloads the page again.
	m := newFakeMoodle(t)
	c := m.client(t, "secret")
	ctx := context.Background()

	if _, err := c.FetchCourseState(ctx, m.entry()); err != nil {
		t.Fatalf("state: %v", err)
	}
	if _, err := c.FetchAssignmentPages(ctx, m.entry()); err != nil {
		t.Fatalf("pages: %v", err)
	}
	if got := m.courseHits.Load(); got != 1 {
		t.Fatalf("course page downloads: got %d, want 1", got)
	}
	if _, err := c.FetchAssignmentPages(ctx, m.entry()); err != nil {
		t.Fatalf("pages again: %v", err)
	}
	if got := m.courseHits.Load(); got != 2 {
		t.Fatalf("cached page must be used once: got %d downloads", got)
	}

	// A stale copy is not reused.
	now := time.Now()
	c.now = func() time.Time { return now }
	if _, err := c.FetchCourseState(ctx, m.entry()); err != nil {
		t.Fatalf("state: %v", err)
	}
	now = now.Add(coursePageTTL)
	if _, err := c.FetchAssignmentPages(ctx, m.entry()); err != nil {
		t.Fatalf("pages: %v", err)
	}
	if got := m.courseHits.Load(); got != 4 {
		t.Fatalf("stale page reused: got %d downloads, want 4", got)
	}
}

func TestClient_ReloginOnExpiredSession(t *testing.T) {
	// WHAT: A request bounced to the login form triggers one fresh login.
	// WHY: Moodle sessions expire between the twice-daily polls.
	m := newFakeMoodle(t)
	c := m.client(t, "secret")
	ctx := context.Background()

	if _, err := c.FetchCourseState(ctx, m.entry()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	m.expireAll()
	if _, err := c.FetchCourseState(ctx, m.entry()); err != nil {
		t.Fatalf("fetch after expiry: %v", err)
	}
	if m.logins.Load() != 2 {
		t.Fatalf("logins: got %d, want 2", m.logins.Load())
	}
}

func TestClient_LoginFailures(t *testing.T) {
	m := newFakeMoodle(t)

	err := m.client(t, "wrong").Login(context.Background())
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("got %v, want ErrLoginFailed", err)
	}
	if !strings.Contains(err.Error(), "Invalid login") {
		t.Fatalf("error should carry the portal message: %v", err)
	}

	_, err = m.client(t, "").FetchCourseState(context.Background(), m.entry())
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("got %v, want ErrNoCredentials", err)
	}

	if _, err := New(Config{BaseURL: "not a url"}, nil); err == nil {
		t.Fatal("invalid base url should be rejected")
	}
}

func TestParseAssignmentLinks_Dedup(t *testing.T) {
	base, _ := url.Parse("https://e.example/course/view.php?id=1")
	page := `<ul>
<li class="activity assign modtype_assign"><a class="aalink" href="/mod/assign/view.php?id=5#section"><span class="instancename">Essay</span></a></li>
<li class="activity assign modtype_assign"><a class="aalink" href="/mod/assign/view.php?id=5"><span class="instancename">Essay again</span></a></li>
<li class="activity quiz modtype_quiz"><a class="aalink" href="/mod/quiz/view.php?id=6"><span class="instancename">Quiz due soon</span></a></li>
<li class="activity assign modtype_assign"><span>no link</span></li>
</ul>`
	links, err := ParseAssignmentLinks(page, base)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(links) != 1 || links[0] != "https://e.example/mod/assign/view.php?id=5" {
		t.Fatalf("links: %v", links)
	}
}

func TestParseAssignmentPage_Minimal(t *testing.T) {
	raw, err := ParseAssignmentPage(Page{URL: "https://e/view.php?id=1", HTML: "<p>nothing</p>"}, "C1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if raw.Name != "" || raw.Description != "" || len(raw.Details) != 0 {
		t.Fatalf("raw: %+v", raw)
	}
}

func TestParseAssignmentPage_DueDateInsideMarkup(t *testing.T) {
	// WHAT: An intro with emphasis around "Due" still yields a due date.
	// WHY: Lecturers often bold the deadline, and markdown would hide it as **Due**.
	myt := time.FixedZone("GMT+8", 8*3600)
	tests := []struct {
		intro string
		want  time.Time
	}{
		{`<p><strong>Due</strong> 14/3/26</p>`, time.Date(2026, 3, 14, 0, 0, 0, 0, myt)},
		{`<p><em>Due</em> 14 March 2026</p>`, time.Date(2026, 3, 14, 0, 0, 0, 0, myt)},
		{`<p>Due 14 March 2026</p>`, time.Date(2026, 3, 14, 0, 0, 0, 0, myt)},
	}
	for _, tt := range tests {
		page := Page{
			URL:  "https://e.example/mod/assign/view.php?id=7",
			HTML: `<html><body><h2>Lab</h2><div id="intro">` + tt.intro + `</div></body></html>`,
		}
		raw, err := ParseAssignmentPage(page, "SMP25503")
		if err != nil {
			t.Fatalf("%s: parse: %v", tt.intro, err)
		}
		a, ok := assignment.Normalize(raw, nil, myt)
		if !ok {
			t.Fatalf("%s: normalize failed", tt.intro)
		}
		if a.DueDate == nil || !a.DueDate.Equal(tt.want) {
			t.Fatalf("%s: due %v, want %v (text %q)", tt.intro, a.DueDate, tt.want, raw.Text)
		}
	}
}
