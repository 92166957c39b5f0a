package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.BaseURL != "http://localhost:5000" {
			t.Errorf("expected base URL http://localhost:5000, got %s", config.Server.BaseURL)
		}
		if config.Channel.ReconnectAttempts != 10 {
			t.Errorf("expected 10 reconnect attempts, got %d", config.Channel.ReconnectAttempts)
		}
		if config.Channel.ReconnectDelay != 2*time.Second {
			t.Errorf("expected reconnect delay 2s, got %v", config.Channel.ReconnectDelay)
		}
		if config.Channel.Timeout != 20*time.Second {
			t.Errorf("expected channel timeout 20s, got %v", config.Channel.Timeout)
		}
		if config.Polling.Interval != 2*time.Second {
			t.Errorf("expected poll interval 2s, got %v", config.Polling.Interval)
		}
		if config.UI.ErrorDisplay != 5*time.Second {
			t.Errorf("expected error display 5s, got %v", config.UI.ErrorDisplay)
		}
		if config.Limits.MaxUploadBytes() != 50*1024*1024 {
			t.Errorf("expected 50MB upload limit, got %d", config.Limits.MaxUploadBytes())
		}
		if len(config.Limits.Extensions) != 5 {
			t.Errorf("expected 5 accepted extensions, got %v", config.Limits.Extensions)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig overlays defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
base_url = "http://separator.lan:5000"
token = "secret"

[channel]
protocol = "json"
reconnect_attempts = 3
reconnect_delay = "500ms"

[polling]
interval = "750ms"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.BaseURL != "http://separator.lan:5000" {
			t.Errorf("expected overridden base URL, got %s", config.Server.BaseURL)
		}
		if config.Channel.Protocol != "json" {
			t.Errorf("expected json protocol, got %s", config.Channel.Protocol)
		}
		if config.Channel.ReconnectDelay != 500*time.Millisecond {
			t.Errorf("expected 500ms reconnect delay, got %v", config.Channel.ReconnectDelay)
		}
		if config.Polling.Interval != 750*time.Millisecond {
			t.Errorf("expected 750ms poll interval, got %v", config.Polling.Interval)
		}
		if config.Channel.Timeout != 20*time.Second {
			t.Errorf("expected default channel timeout to survive, got %v", config.Channel.Timeout)
		}
		if config.UI.ErrorDisplay != 5*time.Second {
			t.Errorf("expected default error display to survive, got %v", config.UI.ErrorDisplay)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tc := []struct {
			name    string
			content string
		}{
			{name: "unknown protocol", content: "[channel]\nprotocol = \"sse\"\n"},
			{name: "zero poll interval", content: "[polling]\ninterval = \"0s\"\n"},
			{name: "empty base url", content: "[server]\nbase_url = \"\"\n"},
			{name: "negative attempts", content: "[channel]\nreconnect_attempts = -1\n"},
			{name: "malformed toml", content: "[server\n"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				_, err := LoadConfig(configPath)
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
