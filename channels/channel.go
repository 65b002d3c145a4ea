// CLAUDE:SUMMARY Outbound notification channels (telegram, discord, webhook, stdout) behind one Channel interface, reconciled from the SQLite channels table.
// Package channels delivers notification text to messaging platforms such as
// Telegram, Discord, generic webhooks and stdout.
//
// Each configured connector is a row in the SQLite channels table. The
// Dispatcher reconciles its active set against that table and fans a
// notification out to every recipient of every active channel.
//
//	d := channels.NewDispatcher(channels.WithLogger(logger))
//	d.RegisterPlatform("telegram", channels.TelegramFactory())
//	d.RegisterPlatform("discord", channels.DiscordFactory())
//	go d.Watch(ctx, db, 2*time.Second)
//	deliveries := d.Broadcast(ctx, "🆕 New Assignment!")
//
// Change the table at runtime and the Dispatcher picks up the new config on
// the next data_version tick.
package channels

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one outbound text addressed to one recipient of a channel.
type Message struct {
	ChannelName string    `json:"channel"`
	Platform    string    `json:"platform"`
	Recipient   string    `json:"recipient"` // chat id, webhook label, "stdout"
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChannelStatus describes the current state of a channel.
type ChannelStatus struct {
	Connected   bool      `json:"connected"`
	Platform    string    `json:"platform"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	LastMessage time.Time `json:"last_message"`
	Error       string    `json:"error,omitempty"`
}

// Channel is an outbound connection to a messaging platform.
type Channel interface {
	// Send delivers msg.Text to msg.Recipient.
	Send(ctx context.Context, msg Message) error

	// Recipients lists the destinations a broadcast reaches on this channel.
	Recipients() []string

	// Status returns the current delivery status.
	Status() ChannelStatus

	// Close releases resources. Send fails after Close.
	Close() error
}

// ChannelFactory creates a Channel from a name and JSON config.
// The name is the channel's identifier in the channels table (e.g. "tg_main").
// The config is the per-channel JSON from the config column.
type ChannelFactory func(name string, config json.RawMessage) (Channel, error)

// Delivery is the outcome of sending one broadcast to one recipient.
type Delivery struct {
	Channel   string `json:"channel"`
	Platform  string `json:"platform"`
	Recipient string `json:"recipient"`
	Err       error  `json:"-"`
}

// OK reports whether the delivery succeeded.
func (d Delivery) OK() bool { return d.Err == nil }
