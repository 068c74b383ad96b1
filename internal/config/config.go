// Package config handles configuration loading and validation for eitype.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"eitype/internal/xkb"
)

// Config holds the complete eitype configuration.
type Config struct {
	// Rules, Model, Layout, Variant and Options select an explicit XKB
	// keymap. When all are empty the keyboard device's keymap is used.
	Rules   string `toml:"rules" json:"rules" yaml:"rules"`
	Model   string `toml:"model" json:"model" yaml:"model"`
	Layout  string `toml:"layout" json:"layout" yaml:"layout"`
	Variant string `toml:"variant" json:"variant" yaml:"variant"`
	Options string `toml:"options" json:"options" yaml:"options"`

	// LayoutIndex selects the active layout. Unset means auto-detect.
	LayoutIndex *uint32 `toml:"layout_index" json:"layout_index" yaml:"layout_index"`

	// DelayMS is applied after every press and release of a tap.
	DelayMS int `toml:"delay_ms" json:"delay_ms" yaml:"delay_ms"`

	// Connection selects and tunes the EI transport.
	Connection ConnectionConfig `toml:"connection" json:"connection" yaml:"connection"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// ConnectionConfig holds transport configuration.
type ConnectionConfig struct {
	// Portal connects through the XDG RemoteDesktop portal.
	Portal bool `toml:"portal" json:"portal" yaml:"portal"`

	// Socket is the EIS socket path. Empty means $LIBEI_SOCKET.
	Socket string `toml:"socket" json:"socket" yaml:"socket"`

	// RestoreToken is passed to the portal to skip the authorization dialog.
	RestoreToken string `toml:"restore_token" json:"restore_token" yaml:"restore_token"`

	// WaitMS waits up to this long for the socket to appear. Zero does not wait.
	WaitMS int `toml:"wait_ms" json:"wait_ms" yaml:"wait_ms"`

	// DeviceTimeoutMS bounds the wait for a keyboard device. Zero waits forever.
	DeviceTimeoutMS int `toml:"device_timeout_ms" json:"device_timeout_ms" yaml:"device_timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "trace", "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			DeviceTimeoutMS: 30000,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if p := os.Getenv("EITYPE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. XKB_DEFAULT_* select the keymap; EITYPE_* cover the rest.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("XKB_DEFAULT_RULES"); v != "" {
		c.Rules = v
	}
	if v := os.Getenv("XKB_DEFAULT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("XKB_DEFAULT_LAYOUT"); v != "" {
		c.Layout = v
	}
	if v := os.Getenv("XKB_DEFAULT_VARIANT"); v != "" {
		c.Variant = v
	}
	if v := os.Getenv("XKB_DEFAULT_OPTIONS"); v != "" {
		c.Options = v
	}

	if v := os.Getenv("EITYPE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DelayMS = n
		}
	}
	if v := os.Getenv("EITYPE_LAYOUT_INDEX"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			idx := uint32(n)
			c.LayoutIndex = &idx
		}
	}
	if v := os.Getenv("EITYPE_RESTORE_TOKEN"); v != "" {
		c.Connection.RestoreToken = v
	}

	// Logging overrides
	if v := os.Getenv("EITYPE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EITYPE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// RuleNames returns the explicit keymap selection.
func (c *Config) RuleNames() xkb.RuleNames {
	return xkb.RuleNames{
		Rules:   c.Rules,
		Model:   c.Model,
		Layout:  c.Layout,
		Variant: c.Variant,
		Options: c.Options,
	}
}

// Delay returns DelayMS as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// SocketWait returns Connection.WaitMS as a duration.
func (c *Config) SocketWait() time.Duration {
	return time.Duration(c.Connection.WaitMS) * time.Millisecond
}

// DeviceTimeout returns Connection.DeviceTimeoutMS as a duration.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.Connection.DeviceTimeoutMS) * time.Millisecond
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.LayoutIndex != nil {
		idx := *c.LayoutIndex
		clone.LayoutIndex = &idx
	}
	return &clone
}
