package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Telegram Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// telegramLimit is the Bot API maximum message length in UTF-16 code units.
const telegramLimit = 4096

// TelegramConfig is the per-channel JSON config for Telegram connections.
type TelegramConfig struct {
	// BotToken is the Telegram bot API token (from @BotFather).
	BotToken string `json:"bot_token"`
	// ChatIDs lists the groups or users that receive every broadcast.
	// Numbers and strings ("@channel") are both accepted.
	ChatIDs ChatIDs `json:"chat_ids"`
	// APIURL overrides the Bot API base URL.
	APIURL string `json:"api_url,omitempty"`
	// TimeoutSeconds bounds each API call. Defaults to 15.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ChatIDs is a list of Telegram chat ids that decodes from JSON numbers or
// strings.
type ChatIDs []string

func (c *ChatIDs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("chat_ids: %w", err)
	}
	ids := make(ChatIDs, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		var id string
		if len(r) > 0 && r[0] == '"' {
			if err := json.Unmarshal(r, &id); err != nil {
				return fmt.Errorf("chat_ids: %w", err)
			}
		} else {
			id = string(r)
		}
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	*c = ids
	return nil
}

// TelegramFactory returns a ChannelFactory for Telegram bots.
//
// Config example:
//
//	{"bot_token": "123456:ABC-DEF", "chat_ids": ["-1001234567890"]}
func TelegramFactory() ChannelFactory {
	return func(name string, config json.RawMessage) (Channel, error) {
		var cfg TelegramConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("telegram: parse config: %w", err)
		}
		if cfg.BotToken == "" {
			return nil, errors.New("telegram: bot_token is required")
		}
		if len(cfg.ChatIDs) == 0 {
			return nil, errors.New("telegram: chat_ids is required")
		}
		return newTelegramChannel(name, cfg), nil
	}
}

// telegramChannel implements Channel for the Telegram Bot API.
type telegramChannel struct {
	channelState
	config TelegramConfig
	client *http.Client
}

func newTelegramChannel(name string, cfg TelegramConfig) *telegramChannel {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultTelegramAPI
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &telegramChannel{
		channelState: newChannelState(name, "telegram"),
		config:       cfg,
		client:       &http.Client{Timeout: timeout},
	}
}

func (c *telegramChannel) Recipients() []string {
	return append([]string(nil), c.config.ChatIDs...)
}

// telegramResponse is the Bot API envelope.
type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (c *telegramChannel) Send(ctx context.Context, msg Message) error {
	if err := c.begin(); err != nil {
		return err
	}
	for _, chunk := range splitText(msg.Text, telegramLimit, countUTF16) {
		if err := c.sendChunk(ctx, msg.Recipient, chunk); err != nil {
			return c.record(err)
		}
	}
	return c.record(nil)
}

// sendChunk calls sendMessage, honouring one flood-control retry_after.
func (c *telegramChannel) sendChunk(ctx context.Context, chatID, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	for attempt := 0; ; attempt++ {
		var resp telegramResponse
		status, err := c.call(ctx, "sendMessage", payload, &resp)
		if err != nil {
			return err
		}
		if resp.OK {
			return nil
		}
		if status == http.StatusTooManyRequests && attempt == 0 && resp.Parameters.RetryAfter > 0 && resp.Parameters.RetryAfter <= 30 {
			if err := sleepCtx(ctx, time.Duration(resp.Parameters.RetryAfter)*time.Second); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("chat %s: HTTP %d: %s", chatID, status, resp.Description)
	}
}

func (c *telegramChannel) call(ctx context.Context, method string, payload any, out *telegramResponse) (int, error) {
	endpoint := c.config.APIURL + "/bot" + c.config.BotToken + "/" + method
	status, body, err := postJSON(ctx, c.client, endpoint, payload, nil)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, fmt.Errorf("%s: HTTP %d: decode response: %w", method, status, err)
	}
	return status, nil
}

// TelegramChat is a chat the bot has seen in its recent updates.
type TelegramChat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// TelegramChats lists the chats found in the bot's pending updates, so an
// operator can discover the ids to put in chat_ids. Send a message to the
// bot (or add it to a group) first.
func TelegramChats(ctx context.Context, apiURL, token string) ([]TelegramChat, error) {
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	ch := newTelegramChannel("discover", TelegramConfig{BotToken: token, APIURL: apiURL})
	var resp telegramResponse
	status, err := ch.call(ctx, "getUpdates", map[string]any{}, &resp)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram: getUpdates: HTTP %d: %s", status, resp.Description)
	}

	var updates []struct {
		Message *struct {
			Chat struct {
				ID        int64  `json:"id"`
				Type      string `json:"type"`
				Title     string `json:"title"`
				FirstName string `json:"first_name"`
			} `json:"chat"`
		} `json:"message"`
	}
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	var chats []TelegramChat
	seen := make(map[int64]bool)
	for _, u := range updates {
		if u.Message == nil || seen[u.Message.Chat.ID] {
			continue
		}
		chat := u.Message.Chat
		seen[chat.ID] = true
		title := chat.Title
		if title == "" {
			title = chat.FirstName
		}
		if title == "" {
			title = "Unknown"
		}
		chats = append(chats, TelegramChat{ID: chat.ID, Type: chat.Type, Title: title})
	}
	return chats, nil
}
