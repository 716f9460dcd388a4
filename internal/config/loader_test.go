package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("expected default port %d, got %d", def.Server.Port, cfg.Server.Port)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"server": map[string]any{
			"host": "10.0.0.5",
			"port": 9000,
		},
		"bus": map[string]any{
			"logMessages": true,
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "10.0.0.5" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server %+v", cfg.Server)
	}
	if !cfg.Bus.LogMessages {
		t.Error("expected logMessages=true")
	}
	if got := cfg.Endpoint(); got != "ws://10.0.0.5:9001/" {
		t.Errorf("unexpected endpoint %q", got)
	}
	if got := cfg.BusAddr(); got != "10.0.0.5:9001" {
		t.Errorf("unexpected bus address %q", got)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid JSON (falls back to default), got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Server.Host != def.Server.Host {
		t.Errorf("expected default host %q, got %q", def.Server.Host, cfg.Server.Host)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("server:\n  port: 8888\nliveness:\n  schedule: \"@every 5s\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("expected port 8888, got %d", cfg.Server.Port)
	}
	if cfg.Liveness.Schedule != "@every 5s" {
		t.Errorf("unexpected schedule %q", cfg.Liveness.Schedule)
	}
	if cfg.Server.Host != DefaultConfig().Server.Host {
		t.Errorf("unset host should keep its default, got %q", cfg.Server.Host)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		path := filepath.Join(t.TempDir(), name)

		original := DefaultConfig()
		original.Server.Port = 1234
		original.Hub.RelayNamespaces = []string{"chat", "echo"}

		if err := Save(&original, path); err != nil {
			t.Fatalf("%s: Save failed: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("%s: Load failed: %v", name, err)
		}
		if loaded.Server.Port != 1234 {
			t.Errorf("%s: port mismatch: got %d", name, loaded.Server.Port)
		}
		if len(loaded.Hub.RelayNamespaces) != 2 || loaded.Hub.RelayNamespaces[1] != "echo" {
			t.Errorf("%s: relay namespaces mismatch: %v", name, loaded.Hub.RelayNamespaces)
		}
	}
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected permissions 0600, got %04o", perm)
	}
}
