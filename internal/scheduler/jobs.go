package scheduler

import (
	"context"
	"fmt"

	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"go.uber.org/zap"
)

func (s *Scheduler) TierFullRecalculationJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobTierFullRecalculation, s.cfg.BatchSize)
	defer finish()

	res, err := s.tierSvc.RecalculateAll(ctx, tierdomain.BatchOptions{
		Size:        s.cfg.BatchSize,
		Delay:       s.cfg.BatchDelay,
		Concurrency: s.cfg.BatchConcurrency,
	})
	return s.finishTierBatch(run, JobTierFullRecalculation, res, err)
}

func (s *Scheduler) TierEligibleSweepJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobTierEligibleSweep, s.cfg.EligibleSweepLimit)
	defer finish()

	res, err := s.tierSvc.RecalculateEligible(ctx, s.cfg.EligibleSweepLimit)
	return s.finishTierBatch(run, JobTierEligibleSweep, res, err)
}

func (s *Scheduler) finishTierBatch(run *jobRun, name string, res *tierdomain.BatchResult, err error) error {
	if res != nil {
		run.add(res.Processed)
		obsmetrics.Scheduler().AddBatchProcessed(name, "kol", res.Processed)
		s.setResult(name, res)
		for _, kerr := range res.Errors {
			run.kolFailed(kerr.KolID, kerr.Error)
		}
	}
	if err != nil {
		return err
	}
	if res != nil && res.Failed > 0 {
		return fmt.Errorf("%w: %d of %d kols failed", obsmetrics.ErrPartialBatch, res.Failed, res.Processed)
	}
	return nil
}

type CounterRepairResult struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	// Skipped links changed under the pass; the next run rechecks them.
	Skipped int `json:"skipped"`
}

// CounterRepairJob rewrites link counters that drifted from the ledger.
func (s *Scheduler) CounterRepairJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobCounterRepair, s.cfg.CounterRepairBatch)
	defer finish()
	schedMetrics := obsmetrics.Scheduler()

	result := CounterRepairResult{}
	defer func() { s.setResult(JobCounterRepair, result) }()

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		snapshots, err := s.linkRepo.LedgerCounters(ctx, s.db, afterID, s.cfg.CounterRepairBatch)
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			return nil
		}

		for _, snap := range snapshots {
			drift := snap.Drift()
			if len(drift) == 0 {
				continue
			}
			run.drift(snap.LinkID, drift)
			for _, counter := range drift {
				schedMetrics.IncCounterDrift(counter)
			}
			rewritten, err := s.linkRepo.RewriteCounters(ctx, s.db, snap, s.clock.Now())
			if err != nil {
				run.errorf("scheduler.counter.rewrite_failed", err, zap.Int64("link_id", snap.LinkID))
				continue
			}
			if !rewritten {
				result.Skipped++
				run.log.Debug("scheduler.counter.rewrite_skipped", zap.Int64("link_id", snap.LinkID))
				continue
			}
			result.Repaired++
		}

		result.Scanned += len(snapshots)
		run.add(len(snapshots))
		schedMetrics.AddBatchProcessed(JobCounterRepair, "link", len(snapshots))
		afterID = snapshots[len(snapshots)-1].LinkID
		if len(snapshots) < s.cfg.CounterRepairBatch {
			return nil
		}
	}
}

func (s *Scheduler) MetricsPushJob(ctx context.Context) error {
	if s.pusher == nil {
		return nil
	}
	return s.pusher.Push(ctx)
}
