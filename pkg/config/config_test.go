package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingTokenFailsFast(t *testing.T) {
	if _, err := Load(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
transport: telegram
telegram:
  token: "123:abc"
storage:
  backend: sqlite
  sqlite_path: /var/lib/relayclaw/relay.db
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != TransportTelegram {
		t.Errorf("transport %q", cfg.Transport)
	}
	if cfg.Token() != "123:abc" {
		t.Errorf("token %q", cfg.Token())
	}
	if cfg.Storage.Backend != StorageSQLite {
		t.Errorf("backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.SQLitePath != "/var/lib/relayclaw/relay.db" {
		t.Errorf("sqlite path %q", cfg.Storage.SQLitePath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
discord:
  token: from-file
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token() != "from-env" {
		t.Errorf("env override lost: token %q", cfg.Token())
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "fax" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "clay-tablet" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Discord.Token = "x"
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
