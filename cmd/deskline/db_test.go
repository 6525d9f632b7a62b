package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "deskline.yaml")
	body := "tenant:\n  id: acme\ndatabase:\n  driver: sqlite\n  path: " +
		filepath.Join(dir, "deskline.db") + "\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDBInit(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"db", "init", "--config", configPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Migrated") {
		t.Errorf("expected migration output, got: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success output, got: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "deskline.db")); err != nil {
		t.Errorf("expected sqlite file created: %v", err)
	}
}

func TestDBInit_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"db", "init", "--config", "/nonexistent/deskline.yaml"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config")
	}
}
