package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  api_keys:
    secret-a: alice
database:
  backend: sqlite
  sqlite_path: /tmp/bw.db
blob:
  backend: fs
  fs_root: /var/bw
sweeper:
  grace: 2h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if got := cfg.Auth.APIKeys["secret-a"]; got != "alice" {
		t.Errorf("api key principal = %q, want alice", got)
	}
	if cfg.Database.Backend != "sqlite" || cfg.Database.SQLitePath != "/tmp/bw.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Blob.Backend != "fs" || cfg.Blob.FSRoot != "/var/bw" {
		t.Errorf("blob = %+v", cfg.Blob)
	}
	if cfg.Sweeper.Grace != 2*time.Hour {
		t.Errorf("grace = %v, want 2h", cfg.Sweeper.Grace)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Backend != "postgres" || cfg.Blob.Backend != "minio" {
		t.Errorf("backends = %s/%s", cfg.Database.Backend, cfg.Blob.Backend)
	}
	if cfg.Inference.InputSize != 120 {
		t.Errorf("input size = %d, want 120", cfg.Inference.InputSize)
	}
	if len(cfg.Inference.OutputNames) != 2 {
		t.Errorf("output names = %v", cfg.Inference.OutputNames)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q", cfg.Logging.Format)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  host: db.internal
`)
	t.Setenv("BW_SERVER_PORT", "7070")
	t.Setenv("BW_API_KEYS", "k1:alice,k2:bob")
	t.Setenv("BW_BLOB_BACKEND", "s3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("yaml value lost: host = %q", cfg.Database.Host)
	}
	if cfg.Auth.APIKeys["k2"] != "bob" {
		t.Errorf("api keys = %v", cfg.Auth.APIKeys)
	}
	if cfg.Blob.Backend != "s3" {
		t.Errorf("blob backend = %q", cfg.Blob.Backend)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "blob:\n  backend: tape\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown blob backend")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, Name: "bw", User: "u", Password: "p"}
	want := "postgres://u:p@h:5432/bw?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
