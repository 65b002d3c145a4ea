package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// LoadState returns the blob stored under key. ok is false when the key has
// never been written.
func (s *Store) LoadState(ctx context.Context, key string) (value []byte, ok bool, err error) {
	var v string
	err = s.DB.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load %s: %w", key, err)
	}
	return []byte(v), true, nil
}

// SaveStates writes every key/value pair in one transaction. Either all
// keys are replaced or none is.
func (s *Store) SaveStates(ctx context.Context, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	now := time.Now().UnixMilli()
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, string(values[k]), now)
			if err != nil {
				return fmt.Errorf("store: save %s: %w", k, err)
			}
		}
		return nil
	})
}

// DeleteStates removes the given keys. The next poll behaves as a cold start
// for them.
func (s *Store) DeleteStates(ctx context.Context, keys ...string) error {
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, k); err != nil {
				return fmt.Errorf("store: delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// StateUpdatedAt returns when key was last written.
func (s *Store) StateUpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.DB.QueryRowContext(ctx, `SELECT updated_at FROM state WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: state updated_at: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
