package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// discordLimit is the maximum content length of a webhook message.
const discordLimit = 2000

// DiscordConfig is the per-channel JSON config for Discord webhooks.
type DiscordConfig struct {
	// WebhookURL is the channel's incoming webhook (Server Settings >
	// Integrations > Webhooks).
	WebhookURL string `json:"webhook_url"`
	// Username overrides the webhook's display name.
	Username string `json:"username,omitempty"`
}

// DiscordFactory returns a ChannelFactory for Discord incoming webhooks.
//
// Config example:
//
//	{"webhook_url": "https://discord.com/api/webhooks/123/abc", "username": "coursewatch"}
func DiscordFactory() ChannelFactory {
	return func(name string, config json.RawMessage) (Channel, error) {
		var cfg DiscordConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("discord: parse config: %w", err)
		}
		if cfg.WebhookURL == "" {
			return nil, errors.New("discord: webhook_url is required")
		}
		return &discordChannel{
			channelState: newChannelState(name, "discord"),
			config:       cfg,
			client:       &http.Client{Timeout: defaultHTTPTimeout},
		}, nil
	}
}

// discordChannel implements Channel for a Discord webhook.
type discordChannel struct {
	channelState
	config DiscordConfig
	client *http.Client
}

// Recipients returns a single label: the webhook is bound to one channel.
func (c *discordChannel) Recipients() []string { return []string{"webhook"} }

func (c *discordChannel) Send(ctx context.Context, msg Message) error {
	if err := c.begin(); err != nil {
		return err
	}
	for _, chunk := range splitText(msg.Text, discordLimit, countRunes) {
		if err := c.post(ctx, chunk); err != nil {
			return c.record(err)
		}
	}
	return c.record(nil)
}

func (c *discordChannel) post(ctx context.Context, content string) error {
	payload := map[string]any{"content": content}
	if c.config.Username != "" {
		payload["username"] = c.config.Username
	}
	for attempt := 0; ; attempt++ {
		status, body, err := postJSON(ctx, c.client, c.config.WebhookURL, payload, nil)
		if err != nil {
			return err
		}
		if status >= 200 && status < 300 {
			return nil
		}
		if status == http.StatusTooManyRequests && attempt == 0 {
			var rl struct {
				RetryAfter float64 `json:"retry_after"`
			}
			if json.Unmarshal(body, &rl) == nil && rl.RetryAfter > 0 && rl.RetryAfter <= 30 {
				if err := sleepCtx(ctx, time.Duration(rl.RetryAfter*float64(time.Second))); err != nil {
					return err
				}
				continue
			}
		}
		return fmt.Errorf("webhook returned HTTP %d", status)
	}
}
