package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
	"github.com/hazyhaar/coursewatch/tracker/internal/schedule"
)

const shutdownNoticeTimeout = 30 * time.Second

// Run announces the service, then runs a cycle at every configured check
// time until ctx is done. A failed cycle is retried after retry_delay; after
// max_consecutive_failures failures in a row Run gives up and returns
// ErrTooManyFailures. A cancelled ctx makes Run return nil.
func (s *Service) Run(ctx context.Context) error {
	s.announce(ctx, notice.Startup(s.reg, s.checkTimes(), s.zoneLabel()))
	if set, err := s.Tracked(ctx); err != nil {
		s.logger.Warn("tracker: read tracked assignments", "error", err)
	} else if set.Len() > 0 {
		s.announce(ctx, notice.TrackedSummary(set, s.reg, s.now()))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownNoticeTimeout)
		defer cancel()
		s.announce(sctx, notice.Shutdown())
	}()

	maxFailures := max(s.cfg.MaxConsecutiveFailures, 1)
	failures := 0
	runNow := s.cfg.RunOnStart
	for {
		if !runNow {
			next := schedule.Next(s.now(), s.clocks, s.loc)
			s.logger.Info("tracker: next check", "at", next.Format(time.RFC3339))
			if err := s.sleep(ctx, next.Sub(s.now())); err != nil {
				return nil
			}
		}
		runNow = false

		_, err := s.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		if failures >= maxFailures {
			s.announce(ctx, notice.GaveUp(err, failures))
			return fmt.Errorf("%w: %w", ErrTooManyFailures, err)
		}
		s.logger.Warn("tracker: retrying", "attempt", failures, "max", maxFailures, "delay", s.cfg.RetryDelay)
		s.announce(ctx, notice.CycleFailed(err, failures, maxFailures, s.cfg.RetryDelay))
		if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
			return nil
		}
		runNow = true
	}
}

// announce broadcasts a service notice. Failures are only logged.
func (s *Service) announce(ctx context.Context, text string) {
	for _, d := range s.notifier.Broadcast(ctx, text) {
		if d.Err != nil {
			s.logger.Warn("tracker: service notice not delivered", "channel", d.Channel, "recipient", d.Recipient, "error", d.Err)
		}
	}
}

func (s *Service) checkTimes() []string {
	out := make([]string, len(s.clocks))
	for i, c := range s.clocks {
		out[i] = c.Kitchen()
	}
	return out
}

func (s *Service) zoneLabel() string {
	_, offset := s.now().In(s.loc).Zone()
	return schedule.ZoneLabel(offset)
}
