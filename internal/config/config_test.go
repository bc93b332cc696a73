package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DatabaseURL != "notero.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8000 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.DeleteOrphanedNotes {
		t.Error("orphan deletion must default to off")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NOTION_API_KEY", "nk")
	t.Setenv("NOTION_DATABASE_ID", "db-1")
	t.Setenv("NOTION_WEBHOOK_SECRET", "sec")
	t.Setenv("ZOTERO_API_KEY", "zk")
	t.Setenv("ZOTERO_GROUP_ID", "483726")
	t.Setenv("DATABASE_URL", "/tmp/other.db")
	t.Setenv("PORT", "9000")
	t.Setenv("DELETE_ORPHANED_NOTES", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Notion.APIKey != "nk" || cfg.Notion.DatabaseID != "db-1" || cfg.Notion.WebhookSecret != "sec" {
		t.Errorf("notion config = %+v", cfg.Notion)
	}
	if cfg.Zotero.APIKey != "zk" || cfg.Zotero.GroupID != 483726 {
		t.Errorf("zotero config = %+v", cfg.Zotero)
	}
	if cfg.DatabaseURL != "/tmp/other.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if !cfg.DeleteOrphanedNotes {
		t.Error("DELETE_ORPHANED_NOTES not applied")
	}
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
notion:
  api_key: file-key
log_level: debug
server:
  port: 7000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("NOTION_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Notion.APIKey != "env-key" {
		t.Errorf("APIKey = %q, environment must win", cfg.Notion.APIKey)
	}
	// File values apply where the environment is silent.
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	if _, err := Load(""); err == nil {
		t.Error("expected error for malformed PORT")
	}
}

func TestLoadRejectsBadGroupID(t *testing.T) {
	t.Setenv("ZOTERO_GROUP_ID", "abc")

	if _, err := Load(""); err == nil {
		t.Error("expected error for malformed ZOTERO_GROUP_ID")
	}
}

func TestValidateServe(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateServe(); err == nil {
		t.Error("expected error without credentials")
	}

	cfg.Notion.APIKey = "nk"
	if err := cfg.ValidateServe(); err == nil {
		t.Error("expected error without zotero key")
	}

	cfg.Zotero.APIKey = "zk"
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateBootstrap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notion.APIKey = "nk"
	cfg.Zotero.APIKey = "zk"

	if err := cfg.ValidateBootstrap(false); err == nil {
		t.Error("expected error without database id")
	}

	cfg.Notion.DatabaseID = "db-1"
	if err := cfg.ValidateBootstrap(false); err != nil {
		t.Errorf("snapshot validation: %v", err)
	}
	if err := cfg.ValidateBootstrap(true); err == nil {
		t.Error("seed must require a group id")
	}

	cfg.Zotero.GroupID = 483726
	if err := cfg.ValidateBootstrap(true); err != nil {
		t.Errorf("seed validation: %v", err)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ListenAddr(); got != "0.0.0.0:8000" {
		t.Errorf("ListenAddr = %q", got)
	}
}
