package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/coursewatch/channels"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/portal"
	"github.com/hazyhaar/coursewatch/tracker/internal/store"
)

var gmt8 = time.FixedZone("GMT+8", 8*3600)

const dueField = "Friday, 14 March 2025, 11:59 PM"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, gmt8)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	mu       sync.Mutex
	sections map[string][]course.Section
	pages    map[string][]portal.Page
	stateErr map[string]error
	pagesErr map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		sections: map[string][]course.Section{},
		pages:    map[string][]portal.Page{},
		stateErr: map[string]error{},
		pagesErr: map[string]error{},
	}
}

func (f *fakeFetcher) FetchCourseState(_ context.Context, e course.Entry) ([]course.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.stateErr[e.Code]; err != nil {
		return nil, err
	}
	return f.sections[e.Code], nil
}

func (f *fakeFetcher) FetchAssignmentPages(_ context.Context, e course.Entry) ([]portal.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pagesErr[e.Code]; err != nil {
		return nil, err
	}
	return f.pages[e.Code], nil
}

// failAll makes every fetch of every course fail.
func (f *fakeFetcher) failAll(codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range codes {
		f.stateErr[c] = errors.New("connection refused")
		f.pagesErr[c] = errors.New("connection refused")
	}
}

type stubNotifier struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (n *stubNotifier) Broadcast(_ context.Context, text string) []channels.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	d := channels.Delivery{Channel: "stub", Platform: "stdout", Recipient: "test"}
	if n.fail {
		d.Err = errors.New("destination down")
	}
	return []channels.Delivery{d}
}

func (n *stubNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func testConfig() *Config {
	return &Config{
		Timezone:               "+08:00",
		CheckTimes:             []string{"07:00", "19:00"},
		RetryDelay:             time.Minute,
		MaxConsecutiveFailures: 3,
		Courses: []course.Entry{
			{Code: "MAT101", Name: "Mathematics", URL: "https://moodle.test/course/view.php?id=1"},
			{Code: "PHY102", Name: "Physics", URL: "https://moodle.test/course/view.php?id=2"},
		},
	}
}

type testEnv struct {
	svc     *Service
	store   *store.Store
	fetcher *fakeFetcher
	notes   *stubNotifier
	clock   *fakeClock
}

func setupTest(t *testing.T, cfg *Config, opts ...ServiceOption) *testEnv {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		store:   store.NewStore(db),
		fetcher: newFakeFetcher(),
		notes:   &stubNotifier{},
		clock:   newFakeClock(),
	}
	var ids atomic.Int64
	base := []ServiceOption{
		WithClock(env.clock.Now),
		WithIDs(func() string { return fmt.Sprintf("id-%04d", ids.Add(1)) }),
	}
	svc, err := New(cfg, env.fetcher, db, env.notes, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	env.svc = svc
	return env
}

func assignPage(id, name, status, due string) portal.Page {
	html := fmt.Sprintf(`<html><body>
<h2>%s</h2>
<div id="intro"><p>Read chapter %s.</p></div>
<table class="generaltable">
<tr><th>Submission status</th><td>%s</td></tr>
<tr><th>Grading status</th><td>Not graded</td></tr>
<tr><th>Due date</th><td>%s</td></tr>
<tr><th>Last modified</th><td>-</td></tr>
</table>
</body></html>`, name, id, status, due)
	return portal.Page{URL: "https://moodle.test/mod/assign/view.php?id=" + id, HTML: html}
}

func week(activities ...course.Activity) []course.Section {
	return []course.Section{{ID: "section-1", Name: "Week 1", Activities: activities}}
}

func (f *fakeFetcher) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.stateErr)
	clear(f.pagesErr)
}
