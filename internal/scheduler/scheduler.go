package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	"github.com/smallbiznis/kolaffiliate/internal/ratelimit"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKeyFormat = "scheduler:lock:%s"

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_scheduler_job")
	ErrJobRunning    = errors.New("scheduler_job_running")
	ErrJobLocked     = errors.New("scheduler_job_locked")
)

// MetricsPusher ships accounting gauges to an external backend.
type MetricsPusher interface {
	Push(ctx context.Context) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config `optional:"true"`
	TierSvc  tierdomain.Service
	LinkRepo linkdomain.Repository
	Redis    *redis.Client `optional:"true"`
	Pusher   MetricsPusher `optional:"true"`
}

type job struct {
	name      string
	interval  time.Duration
	batchSize int
	run       func(ctx context.Context) error
}

type jobState struct {
	running      bool
	lastRunAt    time.Time
	lastDuration time.Duration
	lastError    string
	lastResult   any
	nextRunAt    time.Time
}

type JobStatus struct {
	Name         string     `json:"name"`
	Interval     string     `json:"interval"`
	Enabled      bool       `json:"enabled"`
	Running      bool       `json:"running"`
	LastRunAt    *time.Time `json:"lastRunAt,omitempty"`
	LastDuration string     `json:"lastDuration,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	LastResult   any        `json:"lastResult,omitempty"`
	NextRunAt    time.Time  `json:"nextRunAt"`
}

type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	tierSvc  tierdomain.Service
	linkRepo linkdomain.Repository
	locker   *ratelimit.Locker
	pusher   MetricsPusher

	jobs  []job
	mu    sync.Mutex
	state map[string]*jobState
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.TierSvc == nil || p.LinkRepo == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		tierSvc:  p.TierSvc,
		linkRepo: p.LinkRepo,
		locker:   ratelimit.NewLocker(p.Redis),
		pusher:   p.Pusher,
		state:    make(map[string]*jobState),
	}
	s.jobs = s.buildJobs()

	now := s.clock.Now()
	for _, j := range s.jobs {
		next := now.Add(j.interval)
		if s.cfg.RunOnStart {
			next = now
		}
		s.state[j.name] = &jobState{nextRunAt: next}
	}
	return s, nil
}

func (s *Scheduler) buildJobs() []job {
	jobs := []job{
		{name: JobTierFullRecalculation, interval: s.cfg.FullPassInterval, batchSize: s.cfg.BatchSize, run: s.TierFullRecalculationJob},
		{name: JobTierEligibleSweep, interval: s.cfg.EligibleSweepEvery, batchSize: s.cfg.EligibleSweepLimit, run: s.TierEligibleSweepJob},
		{name: JobCounterRepair, interval: s.cfg.CounterRepairEvery, batchSize: s.cfg.CounterRepairBatch, run: s.CounterRepairJob},
	}
	if s.pusher != nil {
		jobs = append(jobs, job{name: JobMetricsPush, interval: s.cfg.MetricsPushEvery, run: s.MetricsPushJob})
	}
	return jobs
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, finish := s.startRun(ctx, name, batchSize)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil {
		run.markFailed()
	}
	finish()
	if err == nil {
		return nil
	}

	// a deadline is a soft timeout; the next due run picks up where this stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		run.log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job that is due and joins their errors.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	now := s.clock.Now()
	for _, j := range s.jobs {
		if !s.isJobEnabled(j.name) || !s.isDue(j.name, now) {
			continue
		}
		runErr := s.execute(parent, j)
		if errors.Is(runErr, ErrJobRunning) || errors.Is(runErr, ErrJobLocked) {
			continue
		}
		err = errors.Join(err, runErr)
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if runLag := time.Since(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

// Trigger runs a job now, whether or not it is due.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	for _, j := range s.jobs {
		if j.name == name {
			return s.execute(ctx, j)
		}
	}
	return ErrUnknownJob
}

func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := s.state[j.name]
		status := JobStatus{
			Name:       j.name,
			Interval:   j.interval.String(),
			Enabled:    s.isJobEnabled(j.name),
			Running:    st.running,
			LastError:  st.lastError,
			LastResult: st.lastResult,
			NextRunAt:  st.nextRunAt,
		}
		if !st.lastRunAt.IsZero() {
			last := st.lastRunAt
			status.LastRunAt = &last
			status.LastDuration = st.lastDuration.String()
		}
		out = append(out, status)
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, j job) error {
	schedMetrics := obsmetrics.Scheduler()

	s.mu.Lock()
	st := s.state[j.name]
	if st.running {
		s.mu.Unlock()
		schedMetrics.IncBatchDeferred(j.name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		return ErrJobRunning
	}
	st.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		st.running = false
		s.mu.Unlock()
	}()

	release, err := s.acquire(ctx, j.name)
	if err != nil {
		if errors.Is(err, ErrJobLocked) {
			schedMetrics.IncBatchDeferred(j.name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			// another instance owns this run
			s.mu.Lock()
			st.nextRunAt = s.clock.Now().Add(j.interval)
			s.mu.Unlock()
		}
		return err
	}
	defer release()

	start := s.clock.Now()
	runErr := s.runJob(ctx, j.name, j.batchSize, s.cfg.JobTimeout, j.run)

	s.mu.Lock()
	st.lastRunAt = start
	st.lastDuration = s.clock.Now().Sub(start)
	st.nextRunAt = start.Add(j.interval)
	st.lastError = ""
	if runErr != nil {
		st.lastError = runErr.Error()
	}
	s.mu.Unlock()
	return runErr
}

// acquire takes the cross-instance lock for a job when redis is configured.
func (s *Scheduler) acquire(ctx context.Context, name string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf(lockKeyFormat, name)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("scheduler lock unavailable", zap.String("job", name), zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrJobLocked
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("job", name), zap.Error(err))
		}
	}, nil
}

func (s *Scheduler) isDue(name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state[name]
	return st != nil && !now.Before(st.nextRunAt)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	for _, disabled := range s.cfg.DisabledJobs {
		if strings.EqualFold(disabled, jobName) {
			return false
		}
	}
	return true
}

func (s *Scheduler) setResult(name string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.state[name]; st != nil {
		st.lastResult = result
	}
}
