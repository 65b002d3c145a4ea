// CLAUDE:SUMMARY Defines coursewatch config structs, loads YAML with ${ENV} expansion, env fallbacks, defaults and validation.
// Package config handles coursewatch configuration from YAML files and the
// process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/coursewatch/tracker/internal/course"
	"github.com/hazyhaar/coursewatch/tracker/internal/schedule"
)

// ErrInvalid is returned when the configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Environment variables read as fallbacks.
const (
	EnvPortalUsername = "PORTAL_USERNAME"
	EnvPortalPassword = "PORTAL_PASSWORD"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChats  = "TELEGRAM_CHAT_IDS"
)

// Config is the top-level coursewatch configuration.
type Config struct {
	Timezone               string          `yaml:"timezone"`
	CheckTimes             []string        `yaml:"check_times"`
	RunOnStart             bool            `yaml:"run_on_start"`
	RetryDelay             time.Duration   `yaml:"retry_delay"`
	MaxConsecutiveFailures int             `yaml:"max_consecutive_failures"`
	NotifyDropped          bool            `yaml:"notify_dropped"`
	Database               string          `yaml:"database"`
	HTTP                   HTTPConfig      `yaml:"http"`
	Portal                 PortalConfig    `yaml:"portal"`
	Courses                []course.Entry  `yaml:"courses"`
	Channels               []ChannelConfig `yaml:"channels"`
}

// HTTPConfig controls the status API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PortalConfig holds the Moodle connection settings.
type PortalConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// ChannelConfig seeds one row of the channels table.
type ChannelConfig struct {
	Name     string         `yaml:"name"`
	Platform string         `yaml:"platform"` // telegram | discord | webhook | stdout
	Enabled  *bool          `yaml:"enabled"`
	Config   map[string]any `yaml:"config"`
}

// IsEnabled defaults to true when enabled is omitted.
func (c ChannelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// JSON returns the per-channel config as stored in the channels table.
func (c ChannelConfig) JSON() (json.RawMessage, error) {
	if c.Config == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(c.Config)
	if err != nil {
		return nil, fmt.Errorf("config: channel %s: %w", c.Name, err)
	}
	return data, nil
}

// LoadFile reads a YAML configuration file. ${VAR} references are expanded
// from the environment before parsing.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, completes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.Portal.Username == "" {
		c.Portal.Username = os.Getenv(EnvPortalUsername)
	}
	if c.Portal.Password == "" {
		c.Portal.Password = os.Getenv(EnvPortalPassword)
	}
	if len(c.Channels) > 0 {
		return
	}
	token := os.Getenv(EnvTelegramToken)
	chats := splitList(os.Getenv(EnvTelegramChats))
	if token == "" || len(chats) == 0 {
		return
	}
	ids := make([]any, len(chats))
	for i, id := range chats {
		ids[i] = id
	}
	c.Channels = append(c.Channels, ChannelConfig{
		Name:     "telegram",
		Platform: "telegram",
		Config:   map[string]any{"bot_token": token, "chat_ids": ids},
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "+08:00"
	}
	if len(c.CheckTimes) == 0 {
		c.CheckTimes = []string{"07:00", "19:00"}
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 3
	}
	if c.Database == "" {
		c.Database = "data/coursewatch.db"
	}
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = "https://elearning.unimap.edu.my"
	}
	c.Portal.BaseURL = strings.TrimRight(c.Portal.BaseURL, "/")
	if c.Portal.UserAgent == "" {
		c.Portal.UserAgent = "coursewatch/1.0"
	}
	if c.Portal.Timeout <= 0 {
		c.Portal.Timeout = 30 * time.Second
	}
	if c.Portal.MaxBytes <= 0 {
		c.Portal.MaxBytes = 10 * 1024 * 1024
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Courses) == 0 {
		return fmt.Errorf("%w: no courses configured", ErrInvalid)
	}
	if _, err := course.NewRegistry(c.Courses...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, e := range c.Courses {
		if e.URL == "" {
			return fmt.Errorf("%w: course %s has no url", ErrInvalid, e.Code)
		}
	}
	if _, err := schedule.ParseClocks(c.CheckTimes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := schedule.ParseZone(c.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Name == "" || ch.Platform == "" {
			return fmt.Errorf("%w: channel needs a name and a platform", ErrInvalid)
		}
		if seen[ch.Name] {
			return fmt.Errorf("%w: duplicate channel %s", ErrInvalid, ch.Name)
		}
		seen[ch.Name] = true
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return schedule.ParseZone(c.Timezone)
}

// Registry builds the course registry.
func (c *Config) Registry() (*course.Registry, error) {
	return course.NewRegistry(c.Courses...)
}
