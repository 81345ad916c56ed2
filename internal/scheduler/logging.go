package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/kolaffiliate/internal/observability/context"
	obslogger "github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tallies one execution of a job. Nested job functions share the
// run started by runJob so only one start/finish pair is logged.
type jobRun struct {
	job       string
	id        string
	batchSize int
	started   time.Time
	processed int
	failed    int
	log       *zap.Logger
}

type jobRunKey struct{}

// startRun attaches a run to ctx unless one is already there. finish logs
// the summary and is a no-op for a borrowed run.
func (s *Scheduler) startRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && run != nil {
		return ctx, run, func() {}
	}

	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		started:   s.clock.Now(),
	}
	ctx = obscontext.WithActor(context.WithValue(ctx, jobRunKey{}, run), "system", "scheduler")
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", run.id),
	)
	run.log.Info("scheduler.job.start", zap.Int("batch_size", batchSize))

	return ctx, run, func() { run.finish(s.clock.Now()) }
}

func (r *jobRun) add(n int) {
	if n > 0 {
		r.processed += n
	}
}

// markFailed makes sure a run that returned an error never reports zero
// failures.
func (r *jobRun) markFailed() {
	if r.failed == 0 {
		r.failed = 1
	}
}

func (r *jobRun) finish(now time.Time) {
	fields := []zap.Field{
		zap.Int64("duration_ms", now.Sub(r.started).Milliseconds()),
		zap.Int("processed_count", r.processed),
		zap.Int("error_count", r.failed),
	}
	if r.failed > 0 {
		r.log.Warn("scheduler.job.finish", fields...)
		return
	}
	r.log.Info("scheduler.job.finish", fields...)
}

// kolFailed records one KOL the tier pass could not settle.
func (r *jobRun) kolFailed(kolID int64, reason string) {
	r.failed++
	r.log.Debug("scheduler.kol.failed", zap.Int64("kol_id", kolID), zap.String("error", reason))
}

func (r *jobRun) errorf(msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	r.failed++
	r.log.Error(msg, append([]zap.Field{
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}, fields...)...)
}

func (r *jobRun) drift(linkID int64, counters []string) {
	r.log.Warn("scheduler.counter.drift",
		zap.Int64("link_id", linkID),
		zap.Strings("counters", counters),
	)
}
