package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "docsforge.yaml", "workspace:\n  root: "+dir+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Media.StaticPrefix != "/_/static" {
		t.Fatalf("default static prefix missing: %q", cfg.Media.StaticPrefix)
	}
	if cfg.Sync.Mode != "local" {
		t.Fatalf("default sync mode missing: %q", cfg.Sync.Mode)
	}
	if cfg.Daemon.Subject != "docsforge.builds" {
		t.Fatalf("default subject missing: %q", cfg.Daemon.Subject)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("DOCSFORGE_TEST_ROOT", "/srv/builds")
	dir := t.TempDir()
	path := writeFile(t, dir, "docsforge.yaml", "workspace:\n  root: ${DOCSFORGE_TEST_ROOT}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workspace.Root != "/srv/builds" {
		t.Fatalf("env var not expanded: %q", cfg.Workspace.Root)
	}
}

func TestValidateSyncMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "docsforge.yaml", "sync:\n  mode: carrier-pigeon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected invalid sync mode error")
	}

	path = writeFile(t, dir, "docsforge2.yaml", "sync:\n  mode: remote\n")
	if _, err := Load(path); err == nil {
		t.Fatal("remote mode without app servers must fail")
	}
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".docsforge.yaml", `version: 2
mkdocs:
  configuration: mkdocs.yml
python:
  install:
    - requirements: docs/requirements.txt
`)

	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("load project config: %v", err)
	}
	if cfg.Doctype() != "mkdocs" {
		t.Fatalf("expected mkdocs doctype, got %s", cfg.Doctype())
	}
	if len(cfg.Python.Install) != 1 || !cfg.Python.Install[0].IsRequirements() {
		t.Fatalf("install steps not parsed: %+v", cfg.Python.Install)
	}
}

func TestLoadProjectConfigAbsent(t *testing.T) {
	cfg, err := LoadProjectConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Doctype() != "sphinx" {
		t.Fatalf("default doctype should be sphinx, got %s", cfg.Doctype())
	}
}

func TestLoadProjectConfigBadVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".docsforge.yaml", "version: 7\n")
	if _, err := LoadProjectConfig(dir); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
