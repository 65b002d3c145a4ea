package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body,
// GitHub-style ("sha256=<hex>").
const SignatureHeader = "X-Signature-256"

// WebhookConfig is the per-channel JSON config for generic outbound webhooks.
type WebhookConfig struct {
	// URL receives one JSON POST per notification.
	URL string `json:"url"`
	// Secret, when set, signs each body with HMAC-SHA256 in X-Signature-256.
	Secret string `json:"secret,omitempty"`
	// Headers are added to every request (e.g. an Authorization token).
	Headers map[string]string `json:"headers,omitempty"`
	// TimeoutSeconds bounds each POST. Defaults to 15.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// WebhookPayload is the JSON body POSTed for each notification.
type WebhookPayload struct {
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookFactory returns a ChannelFactory for generic outbound webhooks.
// Any HTTP endpoint can receive notifications this way.
//
// Config example:
//
//	{"url": "https://hooks.example/coursewatch", "secret": "hmac_key"}
func WebhookFactory() ChannelFactory {
	return func(name string, config json.RawMessage) (Channel, error) {
		var cfg WebhookConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("webhook: parse config: %w", err)
		}
		if cfg.URL == "" {
			return nil, errors.New("webhook: url is required")
		}
		u, err := url.Parse(cfg.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("webhook: invalid url %q", cfg.URL)
		}
		timeout := defaultHTTPTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		return &webhookChannel{
			channelState: newChannelState(name, "webhook"),
			config:       cfg,
			host:         u.Host,
			client:       &http.Client{Timeout: timeout},
		}, nil
	}
}

// webhookChannel implements Channel for generic HTTP webhooks.
type webhookChannel struct {
	channelState
	config WebhookConfig
	host   string
	client *http.Client
}

// Recipients returns the endpoint host.
func (c *webhookChannel) Recipients() []string { return []string{c.host} }

// Sign returns the X-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a X-Signature-256 value against body. The
// "sha256=" prefix is optional.
func VerifySignature(secret string, body []byte, signature string) bool {
	const prefix = "sha256="
	if len(signature) > len(prefix) && signature[:len(prefix)] == prefix {
		signature = signature[len(prefix):]
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil || len(decoded) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), decoded)
}

func (c *webhookChannel) Send(ctx context.Context, msg Message) error {
	if err := c.begin(); err != nil {
		return err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	body, err := json.Marshal(WebhookPayload{Channel: c.name, Text: msg.Text, Timestamp: ts.UTC()})
	if err != nil {
		return c.record(fmt.Errorf("marshal payload: %w", err))
	}

	header := http.Header{}
	for k, v := range c.config.Headers {
		header.Set(k, v)
	}
	if c.config.Secret != "" {
		header.Set(SignatureHeader, Sign(c.config.Secret, body))
	}

	status, _, err := postBody(ctx, c.client, c.config.URL, body, header)
	if err != nil {
		return c.record(err)
	}
	if status >= 300 {
		return c.record(fmt.Errorf("webhook returned HTTP %d", status))
	}
	return c.record(nil)
}
