package notifier

import "time"

// Config controls the low balance sweep loop.
type Config struct {
	SweepInterval    time.Duration
	ThresholdMinutes float64
	BatchSize        int
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:    20 * time.Minute,
		ThresholdMinutes: 5000,
		BatchSize:        200,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}

	if c.ThresholdMinutes <= 0 {
		c.ThresholdMinutes = defaults.ThresholdMinutes
	}

	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
