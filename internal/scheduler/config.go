package scheduler

import (
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/config"
)

const (
	JobTierFullRecalculation = "tier_full_recalculation"
	JobTierEligibleSweep     = "tier_eligible_sweep"
	JobCounterRepair         = "counter_repair"
	JobMetricsPush           = "metrics_push"
)

// Config controls scheduler cadence and batch sizes.
type Config struct {
	RunInterval        time.Duration
	BatchSize          int
	BatchDelay         time.Duration
	BatchConcurrency   int
	FullPassInterval   time.Duration
	EligibleSweepEvery time.Duration
	EligibleSweepLimit int
	CounterRepairEvery time.Duration
	CounterRepairBatch int
	MetricsPushEvery   time.Duration
	JobTimeout         time.Duration
	LockTTL            time.Duration
	RunOnStart         bool
	DisabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:        time.Minute,
		BatchSize:          25,
		BatchDelay:         100 * time.Millisecond,
		BatchConcurrency:   5,
		FullPassInterval:   24 * time.Hour,
		EligibleSweepEvery: 6 * time.Hour,
		EligibleSweepLimit: 500,
		CounterRepairEvery: 24 * time.Hour,
		CounterRepairBatch: 200,
		MetricsPushEvery:   time.Minute,
		JobTimeout:         30 * time.Minute,
		LockTTL:            45 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	return Config{
		RunInterval:        sc.RunInterval,
		BatchSize:          sc.BatchSize,
		BatchDelay:         sc.BatchDelay,
		BatchConcurrency:   sc.BatchConcurrency,
		FullPassInterval:   sc.FullPassInterval,
		EligibleSweepEvery: sc.EligibleSweepEvery,
		EligibleSweepLimit: sc.EligibleSweepLimit,
		CounterRepairEvery: sc.CounterRepairEvery,
		CounterRepairBatch: sc.CounterRepairBatches,
		MetricsPushEvery:   sc.MetricsPushEvery,
		JobTimeout:         sc.JobTimeout,
		LockTTL:            sc.LockTTL,
		RunOnStart:         sc.RunOnStart,
		DisabledJobs:       sc.DisabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = defaults.BatchDelay
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = defaults.BatchConcurrency
	}
	if c.FullPassInterval <= 0 {
		c.FullPassInterval = defaults.FullPassInterval
	}
	if c.EligibleSweepEvery <= 0 {
		c.EligibleSweepEvery = defaults.EligibleSweepEvery
	}
	if c.EligibleSweepLimit <= 0 {
		c.EligibleSweepLimit = defaults.EligibleSweepLimit
	}
	if c.CounterRepairEvery <= 0 {
		c.CounterRepairEvery = defaults.CounterRepairEvery
	}
	if c.CounterRepairBatch <= 0 {
		c.CounterRepairBatch = defaults.CounterRepairBatch
	}
	if c.MetricsPushEvery <= 0 {
		c.MetricsPushEvery = defaults.MetricsPushEvery
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
