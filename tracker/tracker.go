// CLAUDE:SUMMARY Service owning one poll cycle: fetch every course with isolation, diff against stored state, notify, then persist.
// Package tracker watches a Moodle portal for course and assignment changes
// and notifies the configured channels.
//
// One cycle fetches every tracked course, diffs the course sections and the
// active assignment set against the last persisted state, broadcasts the
// changes and only then persists the new state. Delivery is therefore
// at-least-once: a crash between notify and save repeats the notices.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/schedule"
	"github.com/hazyhaar/coursewatch/tracker/internal/store"
)

// Service runs poll cycles.
type Service struct {
	cfg      *Config
	reg      *course.Registry
	loc      *time.Location
	clocks   []schedule.Clock
	fetcher  Fetcher
	state    StateStore
	log      CycleLog
	notifier Notifier
	logger   *slog.Logger

	now    func() time.Time
	newID  func() string
	sleep  func(ctx context.Context, d time.Duration) error
	dryRun bool

	// mu serializes cycles and state resets.
	mu sync.Mutex
	// stateMu guards dryState. Queries take it instead of mu.
	stateMu sync.RWMutex
	// dryState holds the state a dry run would have saved.
	dryState map[string][]byte
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the cycle and delivery ID generator.
func WithIDs(gen func() string) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// WithSleep replaces the wait used between scheduled checks and retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) { s.sleep = sleep }
}

// WithDryRun makes cycles notify without persisting state or logs. The
// state a cycle would have saved is kept in memory for the next cycle.
func WithDryRun(on bool) ServiceOption {
	return func(s *Service) { s.dryRun = on }
}

// WithStateStore replaces the state store, typically to inject failures.
func WithStateStore(st StateStore) ServiceOption {
	return func(s *Service) { s.state = st }
}

// WithCycleLog replaces the cycle log.
func WithCycleLog(l CycleLog) ServiceOption {
	return func(s *Service) { s.log = l }
}

// New creates a Service. db, opened with OpenDB, backs both the state
// blobs and the cycle log unless overridden by options.
func New(cfg *Config, fetcher Fetcher, db *sql.DB, notifier Notifier, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if fetcher == nil || notifier == nil {
		return nil, errors.New("tracker: fetcher and notifier are required")
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	clocks, err := schedule.ParseClocks(cfg.CheckTimes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	s := &Service{
		cfg:      cfg,
		reg:      reg,
		loc:      loc,
		clocks:   clocks,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		sleep:    sleepCtx,
	}
	if db != nil {
		st := store.NewStore(db)
		s.state = st
		s.log = st
	}
	for _, o := range opts {
		o(s)
	}
	if s.state == nil {
		return nil, errors.New("tracker: a state store is required")
	}
	return s, nil
}

// Registry returns the tracked courses.
func (s *Service) Registry() *course.Registry { return s.reg }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
