package scheduler

import (
	"time"

	"github.com/smallbiznis/reviewmeter/internal/config"
)

// Config controls the renewal sweep.
type Config struct {
	Enabled    bool
	Schedule   string
	BatchSize  int
	JobTimeout time.Duration
	LockTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Schedule:   "@every 1h",
		BatchSize:  100,
		JobTimeout: 5 * time.Minute,
		LockTTL:    10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:   cfg.Renewal.Enabled,
		Schedule:  cfg.Renewal.Schedule,
		BatchSize: cfg.Renewal.BatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = defaults.Schedule
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
