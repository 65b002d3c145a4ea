package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/hazyhaar/coursewatch/channels"
	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
	"github.com/hazyhaar/coursewatch/tracker/internal/store"
)

// Tracked returns the persisted active assignment set. It is empty before
// the first successful cycle. A running cycle does not block it; it sees
// the state saved by the last completed cycle.
func (s *Service) Tracked(ctx context.Context) (*assignment.Set, error) {
	raw, ok, err := s.loadBlob(ctx, store.KeyAssignments)
	if err != nil {
		return nil, err
	}
	set := assignment.NewSet()
	if !ok {
		return set, nil
	}
	if err := json.Unmarshal(raw, set); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, store.KeyAssignments, err)
	}
	return set, nil
}

// Summary renders the tracked assignments the way the startup notice does.
func (s *Service) Summary(ctx context.Context) (string, error) {
	set, err := s.Tracked(ctx)
	if err != nil {
		return "", err
	}
	return notice.TrackedSummary(set, s.reg, s.now()), nil
}

// ResetState forgets both state blobs. The next cycle is a cold start.
func (s *Service) ResetState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dryRun {
		s.stateMu.Lock()
		s.dryState = map[string][]byte{}
		s.stateMu.Unlock()
		return nil
	}
	if err := s.state.DeleteStates(ctx, store.KeyAssignments, store.KeyCourseSnapshot); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrPersistence, err)
	}
	s.logger.Info("tracker: state reset")
	return nil
}

// RecentCycles returns the latest logged cycles, newest first.
func (s *Service) RecentCycles(ctx context.Context, limit int) ([]*store.Cycle, error) {
	if s.log == nil {
		return nil, nil
	}
	cycles, err := s.log.RecentCycles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return cycles, nil
}

// channelLister is implemented by channels.Dispatcher.
type channelLister interface {
	ListChannels() iter.Seq[channels.ChannelInfo]
}

// Channels lists the notifier's channels when it can enumerate them.
func (s *Service) Channels() []channels.ChannelInfo {
	out := []channels.ChannelInfo{}
	l, ok := s.notifier.(channelLister)
	if !ok {
		return out
	}
	for info := range l.ListChannels() {
		out = append(out, info)
	}
	return out
}
