package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("DECODE_MAX_RASTER_BYTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Decode.MaxRasterBytes != 256<<20 {
		t.Fatalf("expected default raster budget, got %d", cfg.Decode.MaxRasterBytes)
	}
	if cfg.Decode.DefaultCornerRadius != 10 {
		t.Fatalf("expected default corner radius 10, got %d", cfg.Decode.DefaultCornerRadius)
	}
	if cfg.Fetch.Timeout != time.Second || cfg.Fetch.MaxRetries != 2 || cfg.Fetch.BackoffMultiplier != 2 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
}

func TestLoadFileValuesYieldToEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rasterflow.yaml")
	body := "DECODE_MAX_RASTER_BYTES: 1048576\nASYNC_QUEUE: decode\nHTTP_FETCH_TIMEOUT: 3s\nMINIO_USE_SSL: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("ASYNC_QUEUE", "override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Decode.MaxRasterBytes != 1<<20 {
		t.Fatalf("expected file raster budget, got %d", cfg.Decode.MaxRasterBytes)
	}
	if cfg.Queue.Name != "override" {
		t.Fatalf("expected env to win, got %s", cfg.Queue.Name)
	}
	if cfg.Fetch.Timeout != 3*time.Second {
		t.Fatalf("expected 3s fetch timeout, got %s", cfg.Fetch.Timeout)
	}
	if !cfg.Storage.UseSSL {
		t.Fatal("expected MINIO_USE_SSL from file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
