// Package config loads relay configuration from an optional YAML file
// with environment-variable overrides. The bot token is the one setting
// without a default: startup fails fast when it is missing.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrMissingToken means no credential is configured for the selected
// transport. This is the only fatal misconfiguration.
var ErrMissingToken = errors.New("bot token not configured")

// Transport selection values.
const (
	TransportDiscord  = "discord"
	TransportTelegram = "telegram"
)

// Storage backend selection values.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config is the full relay configuration.
type Config struct {
	// Transport selects the chat platform: discord or telegram.
	Transport string `yaml:"transport" env:"RELAY_TRANSPORT"`

	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
	Storage  StorageConfig  `yaml:"storage"`

	// LogLevel: debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"RELAY_LOG_LEVEL"`
}

// DiscordConfig configures the Discord transport.
type DiscordConfig struct {
	Token string `yaml:"token" env:"BOT_TOKEN"`
}

// TelegramConfig configures the Telegram transport.
type TelegramConfig struct {
	Token string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
}

// StorageConfig selects and configures the rule persistence medium.
type StorageConfig struct {
	Backend    string `yaml:"backend" env:"RELAY_STORAGE_BACKEND"`
	DataDir    string `yaml:"data_dir" env:"RELAY_DATA_DIR"`
	SQLitePath string `yaml:"sqlite_path" env:"RELAY_SQLITE_PATH"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport: TransportDiscord,
		Storage: StorageConfig{
			Backend:    StorageFile,
			DataDir:    "./data",
			SQLitePath: "./data/relayclaw.db",
		},
		LogLevel: "info",
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (if it exists), then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks transport selection and credential presence.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportDiscord:
		if c.Discord.Token == "" {
			return fmt.Errorf("%w: set BOT_TOKEN or discord.token", ErrMissingToken)
		}
	case TransportTelegram:
		if c.Telegram.Token == "" {
			return fmt.Errorf("%w: set TELEGRAM_BOT_TOKEN or telegram.token", ErrMissingToken)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	switch c.Storage.Backend {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// Token returns the credential for the selected transport.
func (c Config) Token() string {
	if c.Transport == TransportTelegram {
		return c.Telegram.Token
	}
	return c.Discord.Token
}
