package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/recall/modules/store/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.yaml")
	body := "version: \"1\"\n" +
		"data_dir: " + dataDir + "\n" +
		"provider:\n  api_key: sk-test\n  model: test-model\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "recall dev") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigCheck(t *testing.T) {
	dataDir := t.TempDir()
	out, err := execute(t, "config", "check", writeConfig(t, dataDir))
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	for _, want := range []string{"Configuration OK", filepath.Join(dataDir, "recall.db"), "window 3, trigger 10"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "config", "check", path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUsersAdd(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeConfig(t, dataDir)

	out, err := execute(t, "users", "add", "-c", cfgPath,
		"--id", "u1", "--name", "Ada Lovelace", "--age", "36",
		"--allergy", "penicillin", "--allergy", "nuts")
	if err != nil {
		t.Fatalf("users add: %v", err)
	}
	if !strings.Contains(out, "user u1 saved") {
		t.Errorf("output = %q", out)
	}

	store, err := sqlite.Open(t.Context(), sqlite.Config{Path: filepath.Join(dataDir, "recall.db")}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	p, err := store.Profile(t.Context(), "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.FullName != "Ada Lovelace" || p.Age != 36 || len(p.Allergies) != 2 {
		t.Errorf("profile = %+v", p)
	}
}

func TestUsersAdd_WithoutProviderSection(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "recall.yaml")
	body := "version: \"1\"\ndata_dir: " + dataDir + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := execute(t, "users", "add", "-c", cfgPath, "--id", "u2")
	if err != nil {
		t.Fatalf("users add: %v", err)
	}
	if !strings.Contains(out, "user u2 saved") {
		t.Errorf("output = %q", out)
	}
}

func TestUsersAdd_RequiresID(t *testing.T) {
	if _, err := execute(t, "users", "add", "--name", "Nobody"); err == nil {
		t.Fatal("expected error without --id")
	}
}
