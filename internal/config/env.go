package config

import (
	"os"
	"strconv"
)

// FromEnv overlays APNSD_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("APNSD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SetWorkerCount(n)
		}
	}
	if v := os.Getenv("APNSD_QUEUE_CAPACITY_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueCapacityBytes = n
		}
	}
	if v := os.Getenv("APNSD_IDLE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IdleIntervalMs = n
		}
	}
	if v := os.Getenv("APNSD_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("APNSD_KEY_FILE"); v != "" {
		cfg.Credentials.KeyFile = v
	}
	if v := os.Getenv("APNSD_KEY_ID"); v != "" {
		cfg.Credentials.KeyID = v
	}
	if v := os.Getenv("APNSD_TEAM_ID"); v != "" {
		cfg.Credentials.TeamID = v
	}
	if v := os.Getenv("APNSD_TOPIC"); v != "" {
		cfg.DefaultTopic = v
	}
	if v := os.Getenv("APNSD_SEND_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendRetries = n
		}
	}
	if v := os.Getenv("APNSD_JOURNAL_DIR"); v != "" {
		cfg.JournalDir = v
	}
}
