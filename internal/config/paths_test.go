package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "recall")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "recall.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Fatal("expected error when no config exists")
	}
}

func TestDefaultDataDir_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	if got := DefaultDataDir(); got != filepath.Join("/tmp/xdg-data", "recall") {
		t.Errorf("DefaultDataDir() = %q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RECALL_CONFIG", "/etc/recall.yaml")
	t.Setenv("RECALL_LOG_LEVEL", "debug")
	t.Setenv("RECALL_DATA_DIR", "/srv/recall")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if e.ConfigPath != "/etc/recall.yaml" || e.LogLevel != "debug" || e.DataDir != "/srv/recall" {
		t.Errorf("env = %+v", e)
	}

	path, err := e.ResolvePath("")
	if err != nil || path != "/etc/recall.yaml" {
		t.Errorf("ResolvePath(\"\") = %q, %v", path, err)
	}
	path, err = e.ResolvePath("explicit.yaml")
	if err != nil || path != "explicit.yaml" {
		t.Errorf("ResolvePath(explicit) = %q, %v", path, err)
	}
}
