package store

import (
	"context"
	"fmt"
)

// RecordCycle inserts a poll log row.
func (s *Store) RecordCycle(ctx context.Context, c *Cycle) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO cycles (id, started_at, finished_at, status, courses_ok, courses_failed,
		 course_updates, tracked, added, modified, dropped, delivery_failures, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StartedAt, c.FinishedAt, c.Status, c.CoursesOK, c.CoursesFailed,
		c.CourseUpdates, c.Tracked, c.Added, c.Modified, c.Dropped, c.DeliveryFailures, c.Error)
	if err != nil {
		return fmt.Errorf("store: record cycle: %w", err)
	}
	return nil
}

// RecentCycles returns the latest poll log rows, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]*Cycle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, courses_ok, courses_failed,
		 course_updates, tracked, added, modified, dropped, delivery_failures, error
		 FROM cycles ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent cycles: %w", err)
	}
	defer rows.Close()

	var out []*Cycle
	for rows.Next() {
		var c Cycle
		if err := rows.Scan(&c.ID, &c.StartedAt, &c.FinishedAt, &c.Status, &c.CoursesOK, &c.CoursesFailed,
			&c.CourseUpdates, &c.Tracked, &c.Added, &c.Modified, &c.Dropped, &c.DeliveryFailures, &c.Error); err != nil {
			return nil, fmt.Errorf("store: scan cycle: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// InsertDelivery logs one notification attempt.
func (s *Store) InsertDelivery(ctx context.Context, d *Delivery) error {
	ok := 0
	if d.OK {
		ok = 1
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO deliveries (id, cycle_id, channel, platform, recipient, kind, ok, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CycleID, d.Channel, d.Platform, d.Recipient, d.Kind, ok, d.Error, d.SentAt)
	if err != nil {
		return fmt.Errorf("store: insert delivery: %w", err)
	}
	return nil
}

// Deliveries returns the attempts logged for a cycle, oldest first.
func (s *Store) Deliveries(ctx context.Context, cycleID string) ([]*Delivery, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, cycle_id, channel, platform, recipient, kind, ok, error, sent_at
		 FROM deliveries WHERE cycle_id = ? ORDER BY sent_at, id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("store: deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		var d Delivery
		var ok int
		if err := rows.Scan(&d.ID, &d.CycleID, &d.Channel, &d.Platform, &d.Recipient, &d.Kind, &ok, &d.Error, &d.SentAt); err != nil {
			return nil, fmt.Errorf("store: scan delivery: %w", err)
		}
		d.OK = ok == 1
		out = append(out, &d)
	}
	return out, rows.Err()
}
