package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app_name: pipeline\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Endpoint != "localhost:9000" {
		t.Errorf("Storage.Endpoint = %q, want %q", cfg.Storage.Endpoint, "localhost:9000")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Queue.Queue != "pipeline.jobs" {
		t.Errorf("Queue.Queue = %q, want %q", cfg.Queue.Queue, "pipeline.jobs")
	}
	if cfg.Engine.URL != "http://localhost:8100" {
		t.Errorf("Engine.URL = %q, want %q", cfg.Engine.URL, "http://localhost:8100")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  endpoint: minio.internal:9000
  bucket: media-prod
  public_host: media.example.com
database:
  driver: postgres
  source: postgres://pipeline@db/pipeline
  conn_max_lifetime: 5m
engine:
  url: http://asr.internal:8100
  timeout: 20m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Bucket != "media-prod" {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, "media-prod")
	}
	if cfg.Storage.PublicHost != "media.example.com" {
		t.Errorf("Storage.PublicHost = %q, want %q", cfg.Storage.PublicHost, "media.example.com")
	}
	if cfg.Database.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("Database.ConnMaxLifetime = %v, want %v", cfg.Database.ConnMaxLifetime, 5*time.Minute)
	}
	if cfg.Engine.Timeout != 20*time.Minute {
		t.Errorf("Engine.Timeout = %v, want %v", cfg.Engine.Timeout, 20*time.Minute)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "localhost:6379")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Bucket != "media" {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, "media")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PIPELINE_STORAGE_ENDPOINT", "minio.test:9000")
	cfg, err := Load(writeConfig(t, "app_name: pipeline\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Endpoint != "minio.test:9000" {
		t.Errorf("Storage.Endpoint = %q, want %q", cfg.Storage.Endpoint, "minio.test:9000")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
