package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// WorkerCount is the delivery worker pool size.
	WorkerCount int `json:"workerCount"`
	// QueueCapacityBytes is the shared queue store byte budget across all
	// slots. Size it generously relative to peak in-flight payloads:
	// overflowing it fails submissions hard.
	QueueCapacityBytes int `json:"queueCapacityBytes"`
	// IdleIntervalMs is how long a worker with an empty slot sleeps
	// before re-polling.
	IdleIntervalMs int `json:"idleIntervalMs"`
	// Environment selects the gateway: production|sandbox.
	Environment string `json:"environment"`
	// Credentials are passed straight through to the delivery engine.
	Credentials Credentials `json:"credentials"`
	// DefaultTopic is the apns-topic used by messages without one.
	DefaultTopic string `json:"defaultTopic"`
	// SendRetries bounds delivery attempts per device token.
	SendRetries int `json:"sendRetries"`
	// JournalDir, when set, enables the on-disk delivery-failure journal.
	JournalDir string `json:"journalDir"`
}

// Credentials identify the provider-token signing key.
type Credentials struct {
	KeyFile string `json:"keyFile"`
	KeyID   string `json:"keyId"`
	TeamID  string `json:"teamId"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		WorkerCount:        3,
		QueueCapacityBytes: 1 << 20,
		IdleIntervalMs:     200,
		Environment:        "sandbox",
		SendRetries:        3,
	}
}

// SetWorkerCount overrides the pool size; non-positive values are ignored.
func (c *Config) SetWorkerCount(n int) {
	if n > 0 {
		c.WorkerCount = n
	}
}

// Load reads configuration from a JSON file layered over the defaults. If
// path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = Default().WorkerCount
	}
	return cfg, nil
}
