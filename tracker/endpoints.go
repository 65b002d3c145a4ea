package tracker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hazyhaar/coursewatch/kit"
	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
)

// checkTimeout bounds an on-demand cycle, which outlives the request.
const checkTimeout = 10 * time.Minute

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 500
)

// AssignmentView is a tracked assignment with its current urgency.
type AssignmentView struct {
	Assignment
	Tier      string `json:"tier"`
	Remaining string `json:"remaining"`
}

// AssignmentList answers list_assignments.
type AssignmentList struct {
	Count       int              `json:"count"`
	Assignments []AssignmentView `json:"assignments"`
}

type listRequest struct {
	Course string `json:"course"`
}

type cyclesRequest struct {
	Limit int `json:"limit"`
}

func (s *Service) listAssignments(ctx context.Context, r any) (any, error) {
	var course string
	if req, ok := r.(*listRequest); ok && req != nil {
		course = req.Course
	}
	set, err := s.Tracked(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := &AssignmentList{Assignments: []AssignmentView{}}
	for a := range set.All() {
		if course != "" && a.CourseCode != course {
			continue
		}
		v := AssignmentView{Assignment: a}
		if a.DueDate != nil {
			u := notice.Classify(*a.DueDate, now)
			v.Tier = u.Tier.String()
			v.Remaining = u.Remaining.String()
		}
		out.Assignments = append(out.Assignments, v)
	}
	out.Count = len(out.Assignments)
	return out, nil
}

func (s *Service) summary(ctx context.Context, _ any) (any, error) {
	text, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"text": text}, nil
}

func (s *Service) checkNow(ctx context.Context, _ any) (any, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkTimeout)
	defer cancel()
	return s.CheckNow(ctx)
}

func (s *Service) recentCycles(ctx context.Context, r any) (any, error) {
	limit := defaultCycleLimit
	if req, ok := r.(*cyclesRequest); ok && req != nil && req.Limit > 0 {
		limit = min(req.Limit, maxCycleLimit)
	}
	return s.RecentCycles(ctx, limit)
}

func (s *Service) resetState(ctx context.Context, _ any) (any, error) {
	if err := s.ResetState(ctx); err != nil {
		return nil, err
	}
	return map[string]bool{"reset": true}, nil
}

func (s *Service) listChannels(_ context.Context, _ any) (any, error) {
	return s.Channels(), nil
}

// endpoint wraps fn with logging and HTTP status mapping.
func (s *Service) endpoint(op string, fn kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, op), statusErrors)(fn)
}

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) StatusCode() int { return e.code }

func statusErrors(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		resp, err := next(ctx, req)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, ErrBusy):
			return nil, &statusError{http.StatusConflict, err}
		case errors.Is(err, ErrFetch):
			return nil, &statusError{http.StatusBadGateway, err}
		}
		return nil, err
	}
}
