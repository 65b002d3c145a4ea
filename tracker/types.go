package tracker

import (
	"context"

	"github.com/hazyhaar/coursewatch/channels"
	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/duedate"
	"github.com/hazyhaar/coursewatch/tracker/internal/notice"
	"github.com/hazyhaar/coursewatch/tracker/internal/portal"
	"github.com/hazyhaar/coursewatch/tracker/internal/store"
)

// Re-exported domain types.
type (
	Assignment     = assignment.Assignment
	AssignmentSet  = assignment.Set
	RawAssignment  = assignment.Raw
	CourseEntry    = course.Entry
	CourseRegistry = course.Registry
	CourseSnapshot = course.Snapshot
	CourseUpdate   = course.Update
	Section        = course.Section
	Activity       = course.Activity
	Urgency        = notice.Urgency
	Tier           = notice.Tier
	Page           = portal.Page
	Cycle          = store.Cycle
	DueCandidate   = duedate.Candidate
)

// Due-date candidate kinds, in the usual priority order.
const (
	DueField = duedate.Field
	DueTitle = duedate.Title
	DueText  = duedate.Text
)

// Fetcher reads course state and assignment pages from the portal.
// portal.Client implements it.
type Fetcher interface {
	FetchCourseState(ctx context.Context, e course.Entry) ([]course.Section, error)
	FetchAssignmentPages(ctx context.Context, e course.Entry) ([]portal.Page, error)
}

// StateStore persists the two state blobs. store.Store implements it.
type StateStore interface {
	LoadState(ctx context.Context, key string) ([]byte, bool, error)
	SaveStates(ctx context.Context, values map[string][]byte) error
	DeleteStates(ctx context.Context, keys ...string) error
}

// CycleLog records cycles and deliveries. store.Store implements it.
type CycleLog interface {
	RecordCycle(ctx context.Context, c *store.Cycle) error
	InsertDelivery(ctx context.Context, d *store.Delivery) error
	RecentCycles(ctx context.Context, limit int) ([]*store.Cycle, error)
}

// Notifier fans a text out to every destination. channels.Dispatcher
// implements it.
type Notifier interface {
	Broadcast(ctx context.Context, text string) []channels.Delivery
}
