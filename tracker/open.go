package tracker

import (
	"database/sql"
	"log/slog"

	"github.com/hazyhaar/coursewatch/tracker/internal/portal"
	"github.com/hazyhaar/coursewatch/tracker/internal/store"
)

// OpenDB opens the SQLite database at path with production pragmas and
// the tracker schema. The caller must blank-import modernc.org/sqlite.
func OpenDB(path string) (*sql.DB, error) {
	return store.Open(path)
}

// NewPortalClient returns a Fetcher for the configured Moodle portal. The
// session opens on first use.
func NewPortalClient(cfg PortalConfig, logger *slog.Logger) (Fetcher, error) {
	c, err := portal.New(portal.Config{
		BaseURL:   cfg.BaseURL,
		Username:  cfg.Username,
		Password:  cfg.Password,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		MaxBytes:  cfg.MaxBytes,
	}, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
