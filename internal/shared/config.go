package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Channel  ChannelConfig  `toml:"channel"`
	Polling  PollingConfig  `toml:"polling"`
	UI       UIConfig       `toml:"ui"`
	Limits   LimitsConfig   `toml:"limits"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig locates the separation backend.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// ChannelConfig contains the push channel reconnection policy.
type ChannelConfig struct {
	Enabled           bool          `toml:"enabled"`
	Protocol          string        `toml:"protocol"`
	Path              string        `toml:"path"`
	ReconnectAttempts int           `toml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `toml:"reconnect_delay"`
	Timeout           time.Duration `toml:"timeout"`
}

// PollingConfig contains the status polling fallback settings.
type PollingConfig struct {
	Interval time.Duration `toml:"interval"`
}

// UIConfig contains presentation settings shared by the TUI and CLI.
type UIConfig struct {
	ErrorDisplay time.Duration `toml:"error_display"`
	DownloadDir  string        `toml:"download_dir"`
	Player       string        `toml:"player"`
}

// LimitsConfig contains the local upload constraints.
type LimitsConfig struct {
	MaxUploadMB int      `toml:"max_upload_mb"`
	Extensions  []string `toml:"extensions"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// MaxUploadBytes returns the upload size limit in bytes.
func (l LimitsConfig) MaxUploadBytes() int64 {
	return int64(l.MaxUploadMB) * 1024 * 1024
}

// LoadConfig reads a TOML configuration file from the specified path and overlays it on the defaults.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks values that would make the client misbehave rather than fail loudly.
func (c *Config) Validate() error {
	switch {
	case c.Server.BaseURL == "":
		return fmt.Errorf("%w: server.base_url is required", ErrInvalidConfig)
	case c.Channel.Protocol != "socketio" && c.Channel.Protocol != "json":
		return fmt.Errorf("%w: channel.protocol must be socketio or json, got %q", ErrInvalidConfig, c.Channel.Protocol)
	case c.Channel.ReconnectAttempts < 0:
		return fmt.Errorf("%w: channel.reconnect_attempts must not be negative", ErrInvalidConfig)
	case c.Polling.Interval <= 0:
		return fmt.Errorf("%w: polling.interval must be positive", ErrInvalidConfig)
	case c.UI.ErrorDisplay <= 0:
		return fmt.Errorf("%w: ui.error_display must be positive", ErrInvalidConfig)
	case c.Limits.MaxUploadMB <= 0:
		return fmt.Errorf("%w: limits.max_upload_mb must be positive", ErrInvalidConfig)
	case len(c.Limits.Extensions) == 0:
		return fmt.Errorf("%w: limits.extensions must not be empty", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
