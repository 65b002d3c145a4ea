package shield

import (
	"database/sql"
	"fmt"
)

// Schema defines the rate_limits table read by RateLimiter. Endpoints are
// "METHOD /path". The default rule throttles on-demand portal checks.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        INTEGER NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO rate_limits (endpoint, max_requests, window_seconds, enabled)
VALUES ('POST /api/check', 3, 300, 1);
`

// Init creates the shield tables if they don't exist.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("shield: init schema: %w", err)
	}
	return nil
}
