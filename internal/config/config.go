// Package config handles loading caretaker.toml configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the caretaker.toml configuration file. Every field has
// a working default; a missing file yields the default config.
type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Dispatch Dispatch `toml:"dispatch"`
}

// Server contains REST server configuration.
type Server struct {
	// Listen is the address the REST server binds to.
	Listen string `toml:"listen"`
}

// Database contains storage configuration.
type Database struct {
	// Path is the SQLite database file.
	Path string `toml:"path"`

	// SnapshotPath, when set, enables an automatic JSONL export after
	// every mutation. Empty disables snapshots.
	SnapshotPath string `toml:"snapshot-path"`

	// Seed populates the collaborator tables with a demo portfolio on init.
	Seed bool `toml:"seed"`
}

// Dispatch contains outbound communication configuration.
type Dispatch struct {
	// SendTimeout bounds each email/SMS delivery attempt.
	SendTimeout duration `toml:"send-timeout"`
}

// duration wraps time.Duration so it decodes from strings like "10s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:   Server{Listen: ":8080"},
		Database: Database{Path: "caretaker.db"},
		Dispatch: Dispatch{SendTimeout: duration{10 * time.Second}},
	}
}

// Load reads the config file at path, filling unset fields with defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "caretaker.db"
	}
	if !meta.IsDefined("dispatch", "send-timeout") || cfg.Dispatch.SendTimeout.Duration <= 0 {
		cfg.Dispatch.SendTimeout = duration{10 * time.Second}
	}

	return cfg, nil
}

// SendTimeout returns the configured dispatch timeout.
func (c *Config) SendTimeout() time.Duration {
	return c.Dispatch.SendTimeout.Duration
}
