package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}
	runLoopLagBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
)

// SchedulerMetrics covers the tier recalculation and counter repair jobs.
// All methods are safe on a nil receiver.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	tierChanges    *prometheus.CounterVec
	counterDrift   *prometheus.CounterVec
	runLoopLag     prometheus.Histogram
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide instance, creating it with default
// labels if fx has not provided one yet.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := schedulerLabels(cfg)
	counter := func(name, help string, vars ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kolaffiliate_" + name,
			Help:        help,
			ConstLabels: labels,
		}, vars)
	}

	m := &SchedulerMetrics{
		jobRuns:        counter("scheduler_job_runs_total", "Scheduler job runs by name.", "job"),
		jobTimeouts:    counter("scheduler_job_timeouts_total", "Scheduler jobs that hit their deadline.", "job"),
		jobErrors:      counter("scheduler_job_errors_total", "Scheduler job errors by low-cardinality reason.", "job", "reason"),
		batchProcessed: counter("scheduler_batch_processed_total", "Items processed by scheduler batches.", "job", "resource"),
		batchDeferred:  counter("scheduler_batch_deferred_total", "Scheduler runs skipped by low-cardinality reason.", "job", "reason"),
		tierChanges:    counter("tier_changes_total", "KOL tier transitions applied by recalculation.", "from", "to"),
		counterDrift:   counter("link_counter_drift_total", "Affiliate link counters rewritten from the ledger.", "counter"),

		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "kolaffiliate_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     jobDurationBuckets,
			ConstLabels: labels,
		}, []string{"job"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "kolaffiliate_scheduler_runloop_lag_seconds",
			Help:        "Scheduler run loop lag beyond the configured interval.",
			Buckets:     runLoopLagBuckets,
			ConstLabels: labels,
		}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
		m.batchProcessed,
		m.batchDeferred,
		m.tierChanges,
		m.counterDrift,
		m.runLoopLag,
	)
	return m
}

func schedulerLabels(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "kolaffiliate"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

// IncJobError labels the failure with ClassifySchedulerJobReason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

func (m *SchedulerMetrics) IncTierChange(from, to string) {
	if m != nil {
		m.tierChanges.WithLabelValues(from, to).Inc()
	}
}

func (m *SchedulerMetrics) IncCounterDrift(counter string) {
	if m != nil {
		m.counterDrift.WithLabelValues(counter).Inc()
	}
}

// ObserveRunLoopLag records how late a tick started; negative lag counts as zero.
func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(d, 0).Seconds())
	}
}
