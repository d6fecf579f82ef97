package scheduler

import (
	"errors"
	"time"

	"github.com/smallbiznis/parkway/internal/config"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Config controls sweep cadence, batch sizes and reconciliation limits.
type Config struct {
	RunInterval          time.Duration
	BatchSize            int
	JobTimeout           time.Duration
	ReconcileMaxAttempts int
	OrphanThreshold      time.Duration
	LeaseTTL             time.Duration
	EnabledJobs          []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:          10 * time.Second,
		BatchSize:            50,
		JobTimeout:           30 * time.Second,
		ReconcileMaxAttempts: 10,
		OrphanThreshold:      15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.ReconcileMaxAttempts <= 0 {
		c.ReconcileMaxAttempts = defaults.ReconcileMaxAttempts
	}
	if c.OrphanThreshold <= 0 {
		c.OrphanThreshold = defaults.OrphanThreshold
	}
	if c.LeaseTTL <= 0 {
		// The lease must outlive one full sweep plus its jitter.
		c.LeaseTTL = 2 * c.RunInterval
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:          cfg.SweepInterval,
		BatchSize:            cfg.SweepBatchSize,
		ReconcileMaxAttempts: cfg.ReconcileRetries,
	}.withDefaults()
}
