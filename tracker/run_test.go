package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
	"github.com/hazyhaar/coursewatch/tracker/internal/portal"
)

func TestRun_GivesUpAfterConsecutiveFailures(t *testing.T) {
	// WHAT: Failed cycles are retried after retry_delay and announced; the
	// third failure in a row ends Run with ErrTooManyFailures.
	// WHY: A supervisor restart is the recovery path for a stuck session.
	cfg := testConfig()
	cfg.RunOnStart = true
	var sleeps []time.Duration
	env := setupTest(t, cfg, WithSleep(func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}))
	env.fetcher.failAll("MAT101", "PHY102")

	err := env.svc.Run(context.Background())
	if !errors.Is(err, ErrTooManyFailures) || !errors.Is(err, ErrFetch) {
		t.Fatalf("error: %v", err)
	}
	if len(sleeps) != 2 || sleeps[0] != time.Minute || sleeps[1] != time.Minute {
		t.Fatalf("retry sleeps: %v", sleeps)
	}
	texts := env.notes.sent()
	if len(texts) != 5 {
		t.Fatalf("notices: %d, want 5: %q", len(texts), texts)
	}
	if !strings.Contains(texts[0], "Mathematics (MAT101)") || !strings.Contains(texts[0], "7:00 AM and 7:00 PM") || !strings.Contains(texts[0], "GMT+8") {
		t.Fatalf("startup: %q", texts[0])
	}
	if !strings.Contains(texts[1], "attempt 1/3") || !strings.Contains(texts[2], "attempt 2/3") {
		t.Fatalf("retry notices: %q / %q", texts[1], texts[2])
	}
	if !strings.Contains(texts[3], "Failed after 3 attempts") {
		t.Fatalf("give up: %q", texts[3])
	}
	if texts[4] != notice.Shutdown() {
		t.Fatalf("shutdown: %q", texts[4])
	}
}

func TestRun_WaitsForNextCheckAndStopsOnCancel(t *testing.T) {
	// WHAT: Without run_on_start the first cycle waits for the next check
	// time; cancelling the context ends Run cleanly with a shutdown notice.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var env *testEnv
	var sleeps []time.Duration
	env = setupTest(t, testConfig(), WithSleep(func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 1 {
			env.clock.Advance(d)
			return nil
		}
		cancel()
		return ctx.Err()
	}))
	env.fetcher.pages["MAT101"] = []portal.Page{assignPage("101", "Homework 1", "No attempt", dueField)}

	if err := env.svc.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	// 09:00 -> 19:00 the same day, then 19:00 -> 07:00 the next morning.
	if len(sleeps) != 2 || sleeps[0] != 10*time.Hour || sleeps[1] != 12*time.Hour {
		t.Fatalf("sleeps: %v", sleeps)
	}
	texts := env.notes.sent()
	if len(texts) != 4 {
		t.Fatalf("notices: %d, want 4: %q", len(texts), texts)
	}
	if !strings.HasPrefix(texts[2], notice.HeaderNew) || texts[3] != notice.Shutdown() {
		t.Fatalf("notices: %q", texts)
	}
}

func TestRun_SuccessResetsFailureCount(t *testing.T) {
	cfg := testConfig()
	cfg.RunOnStart = true
	cfg.MaxConsecutiveFailures = 2
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var env *testEnv
	calls := 0
	env = setupTest(t, cfg, WithSleep(func(ctx context.Context, d time.Duration) error {
		calls++
		switch calls {
		case 1: // retry after the first failure
			env.fetcher.heal()
		case 2: // wait for the next check
			env.clock.Advance(d)
			env.fetcher.failAll("MAT101", "PHY102")
		default:
			cancel()
			return ctx.Err()
		}
		return nil
	}))
	env.fetcher.failAll("MAT101", "PHY102")

	if err := env.svc.Run(ctx); err != nil {
		t.Fatalf("run should not give up: %v", err)
	}
	cycles, err := env.svc.RecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 3 || cycles[0].Status != "failed" || cycles[1].Status != "ok" || cycles[2].Status != "failed" {
		t.Fatalf("cycles: %+v", cycles)
	}
}

func TestRun_AnnouncesTrackedSummary(t *testing.T) {
	env := setupTest(t, testConfig(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}))
	env.fetcher.pages["MAT101"] = []portal.Page{assignPage("101", "Homework 1", "No attempt", dueField)}
	if _, err := env.svc.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := len(env.notes.sent())

	if err := env.svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	texts := env.notes.sent()[before:]
	if len(texts) != 3 {
		t.Fatalf("notices: %q", texts)
	}
	if !strings.Contains(texts[1], "Homework 1") {
		t.Fatalf("summary: %q", texts[1])
	}
}
