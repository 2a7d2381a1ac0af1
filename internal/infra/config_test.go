package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: coinfox\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval() = %v, want 5s", cfg.PollInterval())
	}
	if cfg.Stream.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Stream.MaxAttempts)
	}
	if cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() = true without credentials")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() on missing file error = %v", err)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval() = %v, want default 5s", cfg.PollInterval())
	}
}

func TestLoadConfig_CheckIntervalFloor(t *testing.T) {
	path := writeConfig(t, "alerts:\n  check_interval_sec: 2\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.CheckInterval() != 5*time.Second {
		t.Errorf("CheckInterval() = %v, want floored to 5s", cfg.CheckInterval())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no symbols", "market:\n  symbols: []\n"},
		{"bad stream url", "stream:\n  url: http://not-a-ws\n"},
		{"zero max attempts", "stream:\n  max_attempts: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.yaml)); err == nil {
				t.Error("LoadConfig() = nil error, want validation failure")
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("COINFOX_REMOTE_URL", "https://store.example.com")
	t.Setenv("COINFOX_USER_ID", "user-1")
	t.Setenv("COINFOX_USER_SECRET", "hunter2")

	path := writeConfig(t, "storage:\n  remote_url: https://file-value\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Storage.RemoteURL != "https://store.example.com" {
		t.Errorf("RemoteURL = %q, env must win over the file", cfg.Storage.RemoteURL)
	}
	if !cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() = false with full credentials")
	}
}
