package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.WorkerCount != 3 {
		t.Fatalf("worker count = %d", cfg.WorkerCount)
	}
	if cfg.Environment != "sandbox" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	if cfg.QueueCapacityBytes <= 0 || cfg.IdleIntervalMs <= 0 {
		t.Fatalf("non-positive defaults: %+v", cfg)
	}
}

func TestSetWorkerCountIgnoresNonPositive(t *testing.T) {
	cfg := Default()
	cfg.SetWorkerCount(0)
	cfg.SetWorkerCount(-4)
	if cfg.WorkerCount != 3 {
		t.Fatalf("non-positive value applied: %d", cfg.WorkerCount)
	}
	cfg.SetWorkerCount(8)
	if cfg.WorkerCount != 8 {
		t.Fatalf("positive value ignored: %d", cfg.WorkerCount)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apnsd.json")
	body := `{"workerCount": 5, "environment": "production", "credentials": {"keyId": "K1", "teamId": "T1"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkerCount != 5 || cfg.Environment != "production" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Credentials.KeyID != "K1" || cfg.Credentials.TeamID != "T1" {
		t.Fatalf("credentials not applied: %+v", cfg.Credentials)
	}
	// untouched keys keep defaults
	if cfg.IdleIntervalMs != 200 || cfg.SendRetries != 3 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("want defaults, got %+v", cfg)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(path, []byte("{nope"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatalf("bad json accepted")
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("APNSD_WORKERS", "7")
	t.Setenv("APNSD_ENVIRONMENT", "production")
	t.Setenv("APNSD_KEY_ID", "ENVKEY")
	t.Setenv("APNSD_SEND_RETRIES", "5")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.WorkerCount != 7 || cfg.Environment != "production" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Credentials.KeyID != "ENVKEY" || cfg.SendRetries != 5 {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestFromEnvIgnoresNonPositiveWorkers(t *testing.T) {
	t.Setenv("APNSD_WORKERS", "-1")
	cfg := Default()
	FromEnv(&cfg)
	if cfg.WorkerCount != 3 {
		t.Fatalf("non-positive worker count applied: %d", cfg.WorkerCount)
	}
}
