package channels

import (
	"database/sql"
	"fmt"
)

// Schema defines the channels table. Each row maps a channel name to a
// platform and its JSON configuration.
//
// Platforms:
//   - "telegram": Bot API sendMessage to one or more chat ids.
//   - "discord":  incoming webhook URL.
//   - "webhook":  generic JSON POST, optionally HMAC-signed.
//   - "stdout":   prints to standard output (dry runs).
//
// Set enabled=0 to silence a channel without deleting its config. Any write
// to this table bumps PRAGMA data_version, which Dispatcher.Watch polls.
const Schema = `
CREATE TABLE IF NOT EXISTS channels (
    name       TEXT PRIMARY KEY,
    platform   TEXT NOT NULL CHECK(platform IN ('telegram','discord','webhook','stdout')),
    enabled    INTEGER NOT NULL DEFAULT 1 CHECK(enabled IN (0, 1)),
    config     TEXT DEFAULT '{}',
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);

CREATE INDEX IF NOT EXISTS idx_channels_platform ON channels(platform);

CREATE TRIGGER IF NOT EXISTS trg_channels_updated_at
AFTER UPDATE ON channels
FOR EACH ROW
BEGIN
    UPDATE channels SET updated_at = strftime('%s','now') WHERE name = NEW.name;
END;
`

// Init creates the channels table if it doesn't exist.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("channels: init schema: %w", err)
	}
	return nil
}
