package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LISTEN_ADDR", "DATABASE_PATH", "FILESYSTEM_DISK", "CONFIG_FILE", "SLOW_QUERY_THRESHOLD"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "folio.db" {
		t.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.FilesystemDisk != "public" {
		t.Fatalf("expected public disk, got %q", cfg.FilesystemDisk)
	}
	if cfg.SlowQueryThreshold != time.Second {
		t.Fatalf("expected 1s slow query threshold, got %s", cfg.SlowQueryThreshold)
	}
	if cfg.AuditDeniedAttempts {
		t.Fatalf("expected denied attempts auditing to be off by default")
	}
}

func TestLoadFileOverridesNonEmptyValues(t *testing.T) {
	t.Setenv("DATABASE_PATH", "env.db")
	t.Setenv("UPLOAD_DIR", "env-uploads")
	t.Setenv("CONFIG_FILE", "")

	path := filepath.Join(t.TempDir(), "folio.yaml")
	content := "database_path: file.db\nmax_image_width: 800\naudit_denied_attempts: true\nslow_query_threshold: 250ms\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(Load(), path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.DatabasePath != "file.db" {
		t.Fatalf("expected yaml to override database path, got %q", cfg.DatabasePath)
	}
	if cfg.UploadDir != "env-uploads" {
		t.Fatalf("expected env upload dir to survive, got %q", cfg.UploadDir)
	}
	if cfg.MaxImageWidth != 800 {
		t.Fatalf("expected max image width 800, got %d", cfg.MaxImageWidth)
	}
	if !cfg.AuditDeniedAttempts {
		t.Fatalf("expected denied attempts auditing to be enabled")
	}
	if cfg.SlowQueryThreshold != 250*time.Millisecond {
		t.Fatalf("expected 250ms threshold, got %s", cfg.SlowQueryThreshold)
	}
}

func TestSuperRootRequiresBothValues(t *testing.T) {
	cfg := AppConfig{SuperRootUserName: "admin"}
	if _, _, err := cfg.SuperRoot(); err != ErrMissingSuperRoot {
		t.Fatalf("expected ErrMissingSuperRoot, got %v", err)
	}
}
