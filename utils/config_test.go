package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  driver: sqlite
  dsn: annotations.sqlite
storage:
  root: /data/media
detector:
  url: http://detector:5000/predict
  model_version: hrnet-v2
  timeout_seconds: 20
  workers: 8
auth:
  secret: test-secret
  token_hours: 24
`)
	config, err := NewConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if config.Server.Port != "9090" {
		t.Errorf("port = %q", config.Server.Port)
	}
	if config.Database.DSN != "annotations.sqlite" {
		t.Errorf("dsn = %q", config.Database.DSN)
	}
	if config.Detector.Workers != 8 {
		t.Errorf("workers = %d", config.Detector.Workers)
	}
	if config.Auth.TokenHours != 24 {
		t.Errorf("token_hours = %d", config.Auth.TokenHours)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret: test-secret
`)
	config, err := NewConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if config.Server.Port != "8080" {
		t.Errorf("default port = %q", config.Server.Port)
	}
	if config.Database.Driver != "sqlite" {
		t.Errorf("default driver = %q", config.Database.Driver)
	}
	if config.Storage.Root != "media" {
		t.Errorf("default storage root = %q", config.Storage.Root)
	}
	if config.Auth.TokenHours != 12 {
		t.Errorf("default token_hours = %d", config.Auth.TokenHours)
	}
}

func TestNewConfigSecretFromEnv(t *testing.T) {
	t.Setenv("API_SECRET", "env-secret")
	config, err := NewConfig(writeConfig(t, "server:\n  port: \"8080\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if config.Auth.Secret != "env-secret" {
		t.Errorf("secret = %q", config.Auth.Secret)
	}
}

func TestNewConfigMissingSecret(t *testing.T) {
	t.Setenv("API_SECRET", "")
	if _, err := NewConfig(writeConfig(t, "server:\n  port: \"8080\"\n")); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestValidateConfigPath(t *testing.T) {
	if err := ValidateConfigPath(t.TempDir()); err == nil {
		t.Error("directory accepted as config file")
	}
	if err := ValidateConfigPath(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing file accepted")
	}
	if err := ValidateConfigPath(writeConfig(t, "server: {}\n")); err != nil {
		t.Errorf("regular file rejected: %v", err)
	}
}
