package channels

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// channelEntry holds a running channel and its config fingerprint.
type channelEntry struct {
	channel     Channel
	platform    string
	fingerprint string
}

// Dispatcher manages the active channels. It reconciles them against the
// SQLite channels table and broadcasts notifications to all of them.
type Dispatcher struct {
	mu        sync.RWMutex
	channels  map[string]*channelEntry
	factories map[string]ChannelFactory
	failed    map[string]ChannelInfo // enabled channels that failed to start on the last reload
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates an empty Dispatcher.
// Register platform factories before calling Reload or Watch.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		channels:  make(map[string]*channelEntry),
		factories: make(map[string]ChannelFactory),
		failed:    make(map[string]ChannelInfo),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RegisterPlatform registers a ChannelFactory for a platform name.
// Example: d.RegisterPlatform("telegram", TelegramFactory())
func (d *Dispatcher) RegisterPlatform(platform string, f ChannelFactory) {
	d.mu.Lock()
	d.factories[platform] = f
	d.mu.Unlock()
}

// Add activates a channel directly, outside the channels table. The next
// Reload closes it.
func (d *Dispatcher) Add(name, platform string, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.channels[name]; ok {
		d.closeEntry(name, old)
	}
	d.channels[name] = &channelEntry{channel: ch, platform: platform}
}

// Broadcast sends text to every recipient of every active channel, one at a
// time in channel name order. A failing destination is logged and reported
// in its Delivery; it never prevents delivery to the others.
func (d *Dispatcher) Broadcast(ctx context.Context, text string) []Delivery {
	type target struct {
		name  string
		entry *channelEntry
	}
	d.mu.RLock()
	targets := make([]target, 0, len(d.channels))
	for name, entry := range d.channels {
		targets = append(targets, target{name, entry})
	}
	d.mu.RUnlock()
	slices.SortFunc(targets, func(a, b target) int { return cmp.Compare(a.name, b.name) })

	var out []Delivery
	for _, t := range targets {
		for _, rcpt := range t.entry.channel.Recipients() {
			err := ctx.Err()
			if err == nil {
				err = t.entry.channel.Send(ctx, Message{
					ChannelName: t.name,
					Platform:    t.entry.platform,
					Recipient:   rcpt,
					Text:        text,
					Timestamp:   time.Now(),
				})
			}
			if err != nil {
				d.logger.Error("channels: delivery failed",
					"channel", t.name, "platform", t.entry.platform, "recipient", rcpt, "error", err)
			}
			out = append(out, Delivery{Channel: t.name, Platform: t.entry.platform, Recipient: rcpt, Err: err})
		}
	}
	if len(targets) == 0 {
		d.logger.Warn("channels: broadcast with no active channel")
	}
	return out
}

// Status returns the ChannelStatus for a named channel.
// Returns ok=false if the channel is not active.
func (d *Dispatcher) Status(name string) (ChannelStatus, bool) {
	d.mu.RLock()
	entry, ok := d.channels[name]
	d.mu.RUnlock()

	if !ok {
		return ChannelStatus{}, false
	}
	return entry.channel.Status(), true
}

// channelRow is an internal representation of a row in the channels table.
type channelRow struct {
	Name     string
	Platform string
	Enabled  bool
	Config   json.RawMessage
}

// fingerprint returns a string that changes when the channel config changes.
func (cr channelRow) fingerprint() string {
	return cr.Platform + "|" + string(cr.Config)
}

// Reload reads the channels table and reconciles the active channel set.
// New enabled channels are started, removed or disabled channels are closed,
// and channels with changed config are restarted.
func (d *Dispatcher) Reload(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT name, platform, enabled, COALESCE(config, '{}') FROM channels`)
	if err != nil {
		return fmt.Errorf("channels: query channels: %w", err)
	}
	defer rows.Close()

	desired := make(map[string]channelRow)
	for rows.Next() {
		var cr channelRow
		var cfgStr string
		var enabled int
		if err := rows.Scan(&cr.Name, &cr.Platform, &enabled, &cfgStr); err != nil {
			return fmt.Errorf("channels: scan channel: %w", err)
		}
		cr.Enabled = enabled == 1
		cr.Config = json.RawMessage(cfgStr)
		desired[cr.Name] = cr
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("channels: rows: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for name, entry := range d.channels {
		cr, exists := desired[name]
		if !exists || !cr.Enabled || cr.fingerprint() != entry.fingerprint {
			d.closeEntry(name, entry)
			delete(d.channels, name)
		}
	}

	clear(d.failed)
	for name, cr := range desired {
		if !cr.Enabled {
			continue
		}
		if _, active := d.channels[name]; active {
			continue
		}

		factory, ok := d.factories[cr.Platform]
		if !ok {
			err := &ErrNoPlatformFactory{Channel: name, Platform: cr.Platform}
			d.failed[name] = ChannelInfo{Name: name, Platform: cr.Platform, Error: err.Error()}
			d.logger.Warn("channels: no factory for platform",
				"channel", name, "platform", cr.Platform)
			continue
		}

		ch, err := factory(name, cr.Config)
		if err != nil {
			d.failed[name] = ChannelInfo{Name: name, Platform: cr.Platform, Error: err.Error()}
			d.logger.Error("channels: factory failed",
				"channel", name, "platform", cr.Platform, "error", err)
			continue
		}

		d.channels[name] = &channelEntry{
			channel:     ch,
			platform:    cr.Platform,
			fingerprint: cr.fingerprint(),
		}
		d.logger.Info("channels: channel started",
			"channel", name, "platform", cr.Platform, "recipients", len(ch.Recipients()))
	}

	d.logger.Info("channels: reloaded",
		"active", len(d.channels),
		"configured", len(desired))

	return nil
}

// closeEntry shuts down a channel entry.
func (d *Dispatcher) closeEntry(name string, entry *channelEntry) {
	if err := entry.channel.Close(); err != nil {
		d.logger.Error("channels: close failed",
			"channel", name, "platform", entry.platform, "error", err)
	} else {
		d.logger.Info("channels: channel stopped",
			"channel", name, "platform", entry.platform)
	}
}

// Close shuts down all active channels.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, entry := range d.channels {
		d.closeEntry(name, entry)
	}
	d.channels = make(map[string]*channelEntry)
	return nil
}
