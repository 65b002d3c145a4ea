package channels

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Admin provides CRUD operations on the channels table.
//
// All mutations go through SQLite, so the Watch loop picks up changes
// without a manual Reload.
type Admin struct {
	db *sql.DB
}

// NewAdmin creates an Admin backed by the given database.
// The database must have the channels schema applied (via Init).
func NewAdmin(db *sql.DB) *Admin {
	return &Admin{db: db}
}

// ChannelRow represents a single row from the channels table.
type ChannelRow struct {
	Name      string          `json:"name"`
	Platform  string          `json:"platform"`
	Enabled   bool            `json:"enabled"`
	Config    json.RawMessage `json:"config,omitempty"`
	UpdatedAt int64           `json:"updated_at"`
}

// ListChannels returns all channels from the SQLite table.
func (a *Admin) ListChannels(ctx context.Context) ([]ChannelRow, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, platform, enabled, COALESCE(config, '{}'), updated_at FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("admin: list channels: %w", err)
	}
	defer rows.Close()

	var result []ChannelRow
	for rows.Next() {
		var r ChannelRow
		var cfgStr string
		var enabled int
		if err := rows.Scan(&r.Name, &r.Platform, &enabled, &cfgStr, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("admin: scan channel: %w", err)
		}
		r.Enabled = enabled == 1
		r.Config = json.RawMessage(cfgStr)
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetChannel returns a single channel by name, or nil if it does not exist.
func (a *Admin) GetChannel(ctx context.Context, name string) (*ChannelRow, error) {
	var r ChannelRow
	var cfgStr string
	var enabled int
	err := a.db.QueryRowContext(ctx,
		`SELECT name, platform, enabled, COALESCE(config, '{}'), updated_at FROM channels WHERE name = ?`,
		name).Scan(&r.Name, &r.Platform, &enabled, &cfgStr, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("admin: get channel: %w", err)
	}
	r.Enabled = enabled == 1
	r.Config = json.RawMessage(cfgStr)
	return &r, nil
}

// UpsertChannel inserts or updates a channel in the channels table.
// The watcher detects the change and reloads.
func (a *Admin) UpsertChannel(ctx context.Context, name, platform string, enabled bool, config json.RawMessage) error {
	if config == nil {
		config = json.RawMessage(`{}`)
	}
	if !json.Valid(config) {
		return fmt.Errorf("admin: channel %q: config is not valid JSON", name)
	}
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO channels (name, platform, enabled, config)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     platform = excluded.platform,
		     enabled  = excluded.enabled,
		     config   = excluded.config
		 WHERE channels.platform IS NOT excluded.platform
		    OR channels.enabled IS NOT excluded.enabled
		    OR channels.config IS NOT excluded.config`,
		name, platform, enabledInt, string(config))
	if err != nil {
		return fmt.Errorf("admin: upsert channel: %w", err)
	}
	return nil
}

// DeleteChannel removes a channel from the channels table.
func (a *Admin) DeleteChannel(ctx context.Context, name string) error {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM channels WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("admin: delete channel: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &ErrChannelNotFound{Channel: name}
	}
	return nil
}

// SetEnabled enables or disables a channel without deleting its config.
func (a *Admin) SetEnabled(ctx context.Context, name string, enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	result, err := a.db.ExecContext(ctx,
		`UPDATE channels SET enabled = ? WHERE name = ?`,
		enabledInt, name)
	if err != nil {
		return fmt.Errorf("admin: set enabled: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &ErrChannelNotFound{Channel: name}
	}
	return nil
}
