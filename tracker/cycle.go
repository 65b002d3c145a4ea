// CLAUDE:SUMMARY Poll-cycle orchestration: isolated per-course fetch with carry-forward, dual diff, notify then atomic save, cycle log.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/coursewatch/channels"
	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
	"github.com/hazyhaar/coursewatch/tracker/internal/portal"
	"github.com/hazyhaar/coursewatch/tracker/internal/store"
)

// Notification kinds recorded with each delivery.
const (
	KindCourseUpdates = "course_updates"
	KindNew           = "new"
	KindUpdated       = "updated"
	KindDropped       = "dropped"
	KindService       = "service"
)

// CycleReport describes one poll cycle.
type CycleReport struct {
	ID               string                  `json:"id"`
	StartedAt        time.Time               `json:"started_at"`
	FinishedAt       time.Time               `json:"finished_at"`
	Status           string                  `json:"status"`
	DryRun           bool                    `json:"dry_run,omitempty"`
	CoursesOK        int                     `json:"courses_ok"`
	CoursesFailed    []string                `json:"courses_failed,omitempty"`
	PagesFailed      []string                `json:"pages_failed,omitempty"`
	CourseUpdates    []course.Update         `json:"course_updates,omitempty"`
	Added            []assignment.Assignment `json:"added,omitempty"`
	Modified         []assignment.Assignment `json:"modified,omitempty"`
	Dropped          []assignment.Assignment `json:"dropped,omitempty"`
	Tracked          int                     `json:"tracked"`
	Deliveries       []DeliveryReport        `json:"deliveries,omitempty"`
	DeliveryFailures int                     `json:"delivery_failures"`
	Error            string                  `json:"error,omitempty"`
}

// DeliveryReport is one notice sent to one destination.
type DeliveryReport struct {
	Kind      string `json:"kind"`
	Channel   string `json:"channel"`
	Platform  string `json:"platform"`
	Recipient string `json:"recipient,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// RunCycle performs one poll cycle, waiting for any running cycle to end.
//
// Courses are fetched independently. A course whose state cannot be
// fetched keeps its previous snapshot, and one whose assignment pages
// cannot be fetched keeps its previously tracked assignments. A single
// assignment page that fails keeps its previously tracked record. When no
// course can be fetched at all the cycle fails with ErrFetch and nothing
// is notified or saved.
func (s *Service) RunCycle(ctx context.Context) (*CycleReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCycle(ctx)
}

// CheckNow is RunCycle for on-demand checks: it returns ErrBusy instead of
// waiting when a cycle is already running.
func (s *Service) CheckNow(ctx context.Context) (*CycleReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) (*CycleReport, error) {
	now := s.now()
	rep := &CycleReport{ID: s.newID(), StartedAt: now, DryRun: s.dryRun}
	s.logger.Info("tracker: cycle started", "cycle", rep.ID, "courses", s.reg.Len(), "dry_run", s.dryRun)

	prevCourses, prevSet, err := s.loadState(ctx)
	if err != nil {
		return s.fail(ctx, rep, err)
	}

	curCourses := course.NewSnapshot()
	var candidates []assignment.Assignment
	var errs []error
	for _, e := range s.reg.Entries() {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, rep, err)
		}
		found, err := s.fetchCourse(ctx, rep, e, curCourses, prevCourses, prevSet, &errs)
		candidates = append(candidates, found...)
		if err != nil {
			errs = append(errs, err)
			rep.CoursesFailed = append(rep.CoursesFailed, e.Code)
			continue
		}
		rep.CoursesOK++
	}
	if rep.CoursesOK == 0 {
		return s.fail(ctx, rep, fmt.Errorf("%w: %w", ErrFetch, errors.Join(errs...)))
	}

	for _, a := range candidates {
		if reason := assignment.Exclusion(a, now); reason != "" {
			s.logger.Debug("tracker: assignment not tracked", "course", a.CourseCode, "id", a.ID, "name", a.Name, "reason", reason)
		}
	}
	active := assignment.Active(candidates, now)
	rep.Tracked = active.Len()
	rep.CourseUpdates = course.Diff(curCourses, prevCourses)
	rep.Added, rep.Modified = assignment.Diff(active, prevSet)
	rep.Dropped = assignment.Dropped(active, prevSet)

	if len(rep.CourseUpdates) > 0 {
		s.notify(ctx, rep, KindCourseUpdates, notice.CourseUpdates(rep.CourseUpdates, s.reg))
	}
	for _, a := range rep.Added {
		s.notify(ctx, rep, KindNew, notice.NewAssignment(a, now))
	}
	for _, a := range rep.Modified {
		s.notify(ctx, rep, KindUpdated, notice.UpdatedAssignment(a, now))
	}
	for _, a := range rep.Dropped {
		if s.cfg.NotifyDropped {
			s.notify(ctx, rep, KindDropped, notice.Dropped(a))
		} else {
			s.logger.Info("tracker: assignment dropped", "course", a.CourseCode, "id", a.ID, "name", a.Name)
		}
	}

	if err := s.saveState(ctx, curCourses, active); err != nil {
		return s.fail(ctx, rep, err)
	}

	rep.Status = store.CycleOK
	if len(rep.CoursesFailed) > 0 || len(rep.PagesFailed) > 0 {
		rep.Status = store.CyclePartial
		rep.Error = errors.Join(errs...).Error()
	}
	rep.FinishedAt = s.now()
	s.record(ctx, rep)
	s.logger.Info("tracker: cycle finished",
		"cycle", rep.ID, "status", rep.Status,
		"courses_ok", rep.CoursesOK, "courses_failed", len(rep.CoursesFailed), "pages_failed", len(rep.PagesFailed),
		"course_updates", len(rep.CourseUpdates), "added", len(rep.Added),
		"modified", len(rep.Modified), "dropped", len(rep.Dropped),
		"tracked", rep.Tracked, "delivery_failures", rep.DeliveryFailures,
		"duration", rep.FinishedAt.Sub(rep.StartedAt))
	return rep, nil
}

// fetchCourse fetches one course into cur and returns its assignment
// candidates. On a fetch error the previous data of the course is carried
// forward and the error is returned. Failed assignment pages do not fail the
// course: their previous records are carried forward and the page errors
// are appended to pageErrs.
func (s *Service) fetchCourse(ctx context.Context, rep *CycleReport, e course.Entry, cur, prevCourses *course.Snapshot, prevSet *assignment.Set, pageErrs *[]error) ([]assignment.Assignment, error) {
	var failed []error

	sections, err := s.fetcher.FetchCourseState(ctx, e)
	if err != nil {
		s.logger.Warn("tracker: course state fetch failed", "course", e.Code, "error", err)
		failed = append(failed, fmt.Errorf("course %s state: %w", e.Code, err))
		if prev, ok := prevCourses.Sections(e.Code); ok {
			cur.Put(e.Code, prev)
		}
	} else {
		cur.Put(e.Code, sections)
	}

	var found []assignment.Assignment
	pages, err := s.fetcher.FetchAssignmentPages(ctx, e)
	if err != nil {
		s.logger.Warn("tracker: assignment fetch failed", "course", e.Code, "error", err)
		failed = append(failed, fmt.Errorf("course %s assignments: %w", e.Code, err))
		for a := range prevSet.All() {
			if a.CourseCode == e.Code {
				found = append(found, a)
			}
		}
		return found, errors.Join(failed...)
	}
	for _, p := range pages {
		if p.Err != nil {
			s.logger.Warn("tracker: assignment page fetch failed", "course", e.Code, "url", p.URL, "error", p.Err)
			rep.PagesFailed = append(rep.PagesFailed, p.URL)
			*pageErrs = append(*pageErrs, fmt.Errorf("course %s page %s: %w", e.Code, p.URL, p.Err))
			if id, ok := assignment.IDFromURL(p.URL); ok {
				if a, ok := prevSet.Get(id); ok && a.CourseCode == e.Code {
					found = append(found, a)
				}
			}
			continue
		}
		raw, err := portal.ParseAssignmentPage(p, e.Code)
		if err != nil {
			s.logger.Warn("tracker: assignment page skipped", "course", e.Code, "url", p.URL, "error", err)
			continue
		}
		a, ok := assignment.Normalize(raw, s.reg, s.loc)
		if !ok {
			s.logger.Debug("tracker: assignment record dropped", "course", e.Code, "url", p.URL)
			continue
		}
		found = append(found, a)
	}
	return found, errors.Join(failed...)
}

// notify broadcasts one notice and records its deliveries.
func (s *Service) notify(ctx context.Context, rep *CycleReport, kind, text string) {
	for _, d := range s.notifier.Broadcast(ctx, text) {
		dr := deliveryReport(kind, d)
		if !dr.OK {
			rep.DeliveryFailures++
		}
		rep.Deliveries = append(rep.Deliveries, dr)
	}
}

func deliveryReport(kind string, d channels.Delivery) DeliveryReport {
	dr := DeliveryReport{Kind: kind, Channel: d.Channel, Platform: d.Platform, Recipient: d.Recipient, OK: d.OK()}
	if d.Err != nil {
		dr.Error = d.Err.Error()
	}
	return dr
}

func (s *Service) fail(ctx context.Context, rep *CycleReport, err error) (*CycleReport, error) {
	rep.Status = store.CycleFailed
	rep.Error = err.Error()
	rep.FinishedAt = s.now()
	s.logger.Error("tracker: cycle failed", "cycle", rep.ID, "error", err)
	s.record(context.WithoutCancel(ctx), rep)
	return rep, err
}

// record writes the cycle and its deliveries to the log. Log failures do
// not fail the cycle.
func (s *Service) record(ctx context.Context, rep *CycleReport) {
	if s.dryRun || s.log == nil {
		return
	}
	c := &store.Cycle{
		ID:               rep.ID,
		StartedAt:        rep.StartedAt.UnixMilli(),
		FinishedAt:       rep.FinishedAt.UnixMilli(),
		Status:           rep.Status,
		CoursesOK:        rep.CoursesOK,
		CoursesFailed:    len(rep.CoursesFailed),
		CourseUpdates:    len(rep.CourseUpdates),
		Tracked:          rep.Tracked,
		Added:            len(rep.Added),
		Modified:         len(rep.Modified),
		Dropped:          len(rep.Dropped),
		DeliveryFailures: rep.DeliveryFailures,
		Error:            rep.Error,
	}
	if err := s.log.RecordCycle(ctx, c); err != nil {
		s.logger.Warn("tracker: record cycle", "cycle", rep.ID, "error", err)
		return
	}
	for _, d := range rep.Deliveries {
		err := s.log.InsertDelivery(ctx, &store.Delivery{
			ID:        s.newID(),
			CycleID:   rep.ID,
			Channel:   d.Channel,
			Platform:  d.Platform,
			Recipient: d.Recipient,
			Kind:      d.Kind,
			OK:        d.OK,
			Error:     d.Error,
			SentAt:    rep.FinishedAt.UnixMilli(),
		})
		if err != nil {
			s.logger.Warn("tracker: record delivery", "cycle", rep.ID, "error", err)
		}
	}
}

// loadState reads both state blobs. Absent blobs decode as nil: a cold
// start where every course and active assignment is new.
func (s *Service) loadState(ctx context.Context) (*course.Snapshot, *assignment.Set, error) {
	var snap *course.Snapshot
	raw, ok, err := s.loadBlob(ctx, store.KeyCourseSnapshot)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		snap = course.NewSnapshot()
		if err := json.Unmarshal(raw, snap); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, store.KeyCourseSnapshot, err)
		}
	}

	var set *assignment.Set
	raw, ok, err = s.loadBlob(ctx, store.KeyAssignments)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		set = assignment.NewSet()
		if err := json.Unmarshal(raw, set); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, store.KeyAssignments, err)
		}
	}
	return snap, set, nil
}

func (s *Service) loadBlob(ctx context.Context, key string) ([]byte, bool, error) {
	s.stateMu.RLock()
	if s.dryState != nil {
		b, ok := s.dryState[key]
		s.stateMu.RUnlock()
		return b, ok, nil
	}
	s.stateMu.RUnlock()
	b, ok, err := s.state.LoadState(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: load %s: %w", ErrPersistence, key, err)
	}
	return b, ok, nil
}

// saveState writes both blobs together. In dry-run mode they are kept in
// memory only.
func (s *Service) saveState(ctx context.Context, snap *course.Snapshot, set *assignment.Set) error {
	courses, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, store.KeyCourseSnapshot, err)
	}
	tracked, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, store.KeyAssignments, err)
	}
	values := map[string][]byte{
		store.KeyCourseSnapshot: courses,
		store.KeyAssignments:    tracked,
	}
	if s.dryRun {
		s.stateMu.Lock()
		s.dryState = values
		s.stateMu.Unlock()
		return nil
	}
	if err := s.state.SaveStates(ctx, values); err != nil {
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	return nil
}
