// Package config handles configuration loading for notero: environment
// variables first, with an optional YAML file supplying values the
// environment leaves unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	// Notion contains Notion API settings.
	Notion NotionConfig `yaml:"notion"`

	// Zotero contains Zotero API settings.
	Zotero ZoteroConfig `yaml:"zotero"`

	// Server contains HTTP server settings.
	Server ServerConfig `yaml:"server"`

	// DatabaseURL is the path of the local SQLite sync-state database.
	DatabaseURL string `yaml:"database_url"`

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// DeleteOrphanedNotes enables deleting Zotero notes whose source
	// blocks disappeared from Notion.
	DeleteOrphanedNotes bool `yaml:"delete_orphaned_notes"`
}

// NotionConfig holds Notion credentials and the watched database.
type NotionConfig struct {
	// APIKey is the Notion integration token.
	APIKey string `yaml:"api_key"`

	// DatabaseID is the Notion database holding the reference pages.
	DatabaseID string `yaml:"database_id"`

	// WebhookSecret verifies inbound webhook signatures. Empty disables
	// verification.
	WebhookSecret string `yaml:"webhook_secret"`
}

// ZoteroConfig holds Zotero credentials.
type ZoteroConfig struct {
	// APIKey is the Zotero API key.
	APIKey string `yaml:"api_key"`

	// GroupID is the target group library for bootstrap seeding.
	GroupID int64 `yaml:"group_id"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL: "notero.db",
		LogLevel:    "info",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
	}
}

// Load builds the configuration. A .env file is loaded best-effort, then the
// optional YAML file at path (empty skips it), then environment variables,
// which always win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from the environment.
func (c *Config) applyEnv() error {
	setString(&c.Notion.APIKey, "NOTION_API_KEY")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&c.Notion.WebhookSecret, "NOTION_WEBHOOK_SECRET")
	setString(&c.Zotero.APIKey, "ZOTERO_API_KEY")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.Server.Host, "HOST")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v, ok := lookup("ZOTERO_GROUP_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse ZOTERO_GROUP_ID: %w", err)
		}
		c.Zotero.GroupID = id
	}
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("DELETE_ORPHANED_NOTES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse DELETE_ORPHANED_NOTES: %w", err)
		}
		c.DeleteOrphanedNotes = b
	}
	return nil
}

// ValidateServe checks the fields the serve command requires.
func (c *Config) ValidateServe() error {
	if c.Notion.APIKey == "" {
		return fmt.Errorf("NOTION_API_KEY is required")
	}
	if c.Zotero.APIKey == "" {
		return fmt.Errorf("ZOTERO_API_KEY is required")
	}
	return nil
}

// ValidateBootstrap checks the fields the bootstrap commands require.
func (c *Config) ValidateBootstrap(needGroup bool) error {
	if err := c.ValidateServe(); err != nil {
		return err
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("NOTION_DATABASE_ID is required")
	}
	if needGroup && c.Zotero.GroupID == 0 {
		return fmt.Errorf("ZOTERO_GROUP_ID is required")
	}
	return nil
}

// ListenAddr returns the host:port the server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
