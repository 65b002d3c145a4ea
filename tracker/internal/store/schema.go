package store

import (
	"database/sql"
	"fmt"
)

// Schema holds the tracker tables.
//
// state keeps one JSON blob per key. cycles logs each poll with its
// counters, and deliveries logs every notification attempt per destination.
const Schema = `
CREATE TABLE IF NOT EXISTS state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id                  TEXT PRIMARY KEY,
    started_at          INTEGER NOT NULL,
    finished_at         INTEGER NOT NULL,
    status              TEXT NOT NULL CHECK(status IN ('ok','partial','failed')),
    courses_ok          INTEGER NOT NULL DEFAULT 0,
    courses_failed      INTEGER NOT NULL DEFAULT 0,
    course_updates      INTEGER NOT NULL DEFAULT 0,
    tracked             INTEGER NOT NULL DEFAULT 0,
    added               INTEGER NOT NULL DEFAULT 0,
    modified            INTEGER NOT NULL DEFAULT 0,
    dropped             INTEGER NOT NULL DEFAULT 0,
    delivery_failures   INTEGER NOT NULL DEFAULT 0,
    error               TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);

CREATE TABLE IF NOT EXISTS deliveries (
    id         TEXT PRIMARY KEY,
    cycle_id   TEXT NOT NULL DEFAULT '',
    channel    TEXT NOT NULL,
    platform   TEXT NOT NULL,
    recipient  TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL,
    ok         INTEGER NOT NULL CHECK(ok IN (0, 1)),
    error      TEXT NOT NULL DEFAULT '',
    sent_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_cycle ON deliveries(cycle_id);
`

// ApplySchema creates the tracker tables if they do not exist.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}
