package tracker

import (
	"github.com/hazyhaar/coursewatch/tracker/internal/config"
)

// Config is the top-level coursewatch configuration. Re-exported from internal.
type Config = config.Config

// HTTPConfig controls the status API.
type HTTPConfig = config.HTTPConfig

// PortalConfig holds the Moodle connection settings.
type PortalConfig = config.PortalConfig

// ChannelConfig seeds one row of the channels table.
type ChannelConfig = config.ChannelConfig

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = config.ErrInvalid

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes, completes and validates a YAML document.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// Environment variables read as fallbacks by LoadConfigFile.
const (
	EnvPortalUsername = config.EnvPortalUsername
	EnvPortalPassword = config.EnvPortalPassword
	EnvTelegramToken  = config.EnvTelegramToken
	EnvTelegramChats  = config.EnvTelegramChats
)
