package scheduler

import "time"

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	DispatchBatchSize int
	ResetBatchSize    int
	LockTTL           time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       5 * time.Second,
		DispatchBatchSize: 50,
		ResetBatchSize:    50,
		LockTTL:           time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.DispatchBatchSize <= 0 {
		c.DispatchBatchSize = defaults.DispatchBatchSize
	}
	if c.ResetBatchSize <= 0 {
		c.ResetBatchSize = defaults.ResetBatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig() Config {
	return DefaultConfig()
}
