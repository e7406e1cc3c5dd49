// Package config provides configuration management for presencelink.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/presencelink/presencelink/internal/logging"
)

// Config represents the presencelink configuration file.
//
// Config file location:
//   - Windows: %APPDATA%\presencelink\presence.conf
//   - Unix: <UserConfigDir>/presencelink/presence.conf
//
// INI format:
//
//	[client]
//	application_id = 1234567890
//	handshake_timeout_seconds = 5
//	read_poll_interval_ms = 20
//
//	[log]
//	level = info
type Config struct {
	Client ClientConfig
	Log    LogConfig
}

// ClientConfig contains the rich presence client settings.
type ClientConfig struct {
	// ApplicationID is the Discord application (client) id.
	// Required by the set and clear commands.
	ApplicationID string `ini:"application_id"`

	// HandshakeTimeoutSeconds bounds the wait for READY.
	// Minimum: 1, Maximum: 60, Default: 5
	HandshakeTimeoutSeconds int `ini:"handshake_timeout_seconds"`

	// ReadPollIntervalMs is the sleep between empty non-blocking reads.
	// Minimum: 1, Maximum: 1000, Default: 20
	ReadPollIntervalMs int `ini:"read_poll_interval_ms"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `ini:"level"`
}

// Environment overrides, applied after the file is read.
const (
	EnvApplicationID = "PRESENCELINK_APP_ID"
	EnvLogLevel      = "PRESENCELINK_LOG_LEVEL"
)

// Config validation errors
var (
	ErrMissingApplicationID    = errors.New("application_id is required")
	ErrInvalidApplicationID    = errors.New("application_id must be numeric")
	ErrInvalidHandshakeTimeout = errors.New("handshake_timeout_seconds must be between 1 and 60")
	ErrInvalidReadPollInterval = errors.New("read_poll_interval_ms must be between 1 and 1000")
	ErrInvalidLogLevel         = errors.New("log level must be debug, info, warn or error")
)

// DefaultPath returns the default path for presence.conf.
func DefaultPath() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		return filepath.Join(appData, "presencelink", "presence.conf"), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "presencelink", "presence.conf"), nil
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Client: ClientConfig{
			ApplicationID:           "",
			HandshakeTimeoutSeconds: 5,
			ReadPollIntervalMs:      20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, or from DefaultPath when path is empty.
// A missing file yields the defaults and no error. Environment overrides are
// applied in both cases.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err == nil {
		iniFile, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
		}

		client := iniFile.Section("client")
		cfg.Client.ApplicationID = strings.TrimSpace(client.Key("application_id").String())
		cfg.Client.HandshakeTimeoutSeconds = client.Key("handshake_timeout_seconds").MustInt(5)
		cfg.Client.ReadPollIntervalMs = client.Key("read_poll_interval_ms").MustInt(20)

		logSection := iniFile.Section("log")
		cfg.Log.Level = logSection.Key("level").MustString("info")
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvApplicationID)); v != "" {
		cfg.Client.ApplicationID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
}

// Save writes cfg to path, or to DefaultPath when path is empty.
// Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	client, err := iniFile.NewSection("client")
	if err != nil {
		return fmt.Errorf("failed to create client section: %w", err)
	}
	client.Key("application_id").SetValue(cfg.Client.ApplicationID)
	client.Key("handshake_timeout_seconds").SetValue(fmt.Sprintf("%d", cfg.Client.HandshakeTimeoutSeconds))
	client.Key("read_poll_interval_ms").SetValue(fmt.Sprintf("%d", cfg.Client.ReadPollIntervalMs))

	logSection, err := iniFile.NewSection("log")
	if err != nil {
		return fmt.Errorf("failed to create log section: %w", err)
	}
	logSection.Key("level").SetValue(cfg.Log.Level)

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the settings that apply regardless of the command run.
func (cfg *Config) Validate() error {
	if id := cfg.Client.ApplicationID; id != "" && strings.Trim(id, "0123456789") != "" {
		return ErrInvalidApplicationID
	}
	if cfg.Client.HandshakeTimeoutSeconds < 1 || cfg.Client.HandshakeTimeoutSeconds > 60 {
		return ErrInvalidHandshakeTimeout
	}
	if cfg.Client.ReadPollIntervalMs < 1 || cfg.Client.ReadPollIntervalMs > 1000 {
		return ErrInvalidReadPollInterval
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogLevel, err)
	}
	return nil
}

// RequireApplicationID validates cfg and additionally requires an application id.
func (cfg *Config) RequireApplicationID() error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Client.ApplicationID == "" {
		return ErrMissingApplicationID
	}
	return nil
}

// HandshakeTimeout returns the configured handshake timeout.
func (cfg *Config) HandshakeTimeout() time.Duration {
	return time.Duration(cfg.Client.HandshakeTimeoutSeconds) * time.Second
}

// ReadPollInterval returns the configured read poll interval.
func (cfg *Config) ReadPollInterval() time.Duration {
	return time.Duration(cfg.Client.ReadPollIntervalMs) * time.Millisecond
}
