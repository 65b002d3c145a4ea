package channels

import (
	"context"
	"database/sql"
	"time"
)

// Watch polls PRAGMA data_version on the database at the given interval.
// When the version changes (any write to the database from another
// connection), it triggers a Reload.
//
// Watch blocks until ctx is cancelled. Run it in a goroutine:
//
//	go dispatcher.Watch(ctx, db, 2*time.Second)
func (d *Dispatcher) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastVersion int64

	if err := d.Reload(ctx, db); err != nil {
		d.logger.Error("channels: initial reload failed", "error", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&lastVersion); err != nil {
		d.logger.Warn("channels: data_version read failed", "error", err)
	}

	d.logger.Info("channels: watcher started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("channels: watcher stopped")
			return
		case <-ticker.C:
			var ver int64
			if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&ver); err != nil {
				d.logger.Warn("channels: data_version poll failed", "error", err)
				continue
			}
			if ver != lastVersion {
				d.logger.Info("channels: change detected, reloading",
					"old_version", lastVersion, "new_version", ver)
				if err := d.Reload(ctx, db); err != nil {
					d.logger.Error("channels: reload failed", "error", err)
				}
				lastVersion = ver
			}
		}
	}
}
