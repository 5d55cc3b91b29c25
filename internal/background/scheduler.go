package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learnhub-backend/pkg/logger"
)

type SchedulerConfig struct {
	WorkerCount int
	QueueSize   int
}

type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Job is a unit of background work. Name labels metrics and logs, so it should come
// from a small fixed set; Key, when set, identifies the job for ScheduleUnique instead.
type Job struct {
	Name        string
	Key         string
	Run         func(ctx context.Context) error
	Delay       time.Duration
	Timeout     time.Duration
	RetryPolicy RetryPolicy
}

var (
	ErrSchedulerNotStarted   = errors.New("scheduler not started")
	ErrJobAlreadyScheduled   = errors.New("job already scheduled")
	ErrSchedulerShuttingDown = errors.New("scheduler is shutting down")
	ErrQueueFull             = errors.New("job queue is full")
)

func (j Job) uniqueKey() string {
	if j.Key != "" {
		return j.Key
	}
	return j.Name
}

// Scheduler runs jobs on a fixed worker pool. Shutdown stops intake first and lets
// queued jobs finish until its context expires.
type Scheduler struct {
	config SchedulerConfig

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	closing bool

	queue chan scheduledJob

	workerWG  sync.WaitGroup
	pendingWG sync.WaitGroup

	activeJobs map[string]struct{}
}

type scheduledJob struct {
	job     Job
	attempt int
	unique  bool
}

var (
	metricsOnce        sync.Once
	jobRunsTotal       *prometheus.CounterVec
	jobDurationSeconds *prometheus.HistogramVec
	jobQueueDepth      prometheus.Gauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub",
			Subsystem: "background",
			Name:      "job_runs_total",
			Help:      "Total background job executions",
		}, []string{"job", "status"})

		jobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "learnhub",
			Subsystem: "background",
			Name:      "job_duration_seconds",
			Help:      "Duration of background job executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"})

		jobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "learnhub",
			Subsystem: "background",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker",
		})
	})
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	initMetrics()

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	return &Scheduler{
		config:     cfg,
		queue:      make(chan scheduledJob, cfg.QueueSize),
		activeJobs: make(map[string]struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerWG.Add(1)
		go s.worker()
	}
}

func (s *Scheduler) worker() {
	defer s.workerWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.queue:
			jobQueueDepth.Set(float64(len(s.queue)))
			s.execute(job)
		}
	}
}

func (s *Scheduler) execute(job scheduledJob) {
	err := s.runJob(job)
	if err == nil {
		s.finishJob(job, nil)
		return
	}

	if !s.shouldRetry(job, err) {
		s.finishJob(job, err)
		return
	}

	retry := job
	retry.attempt++

	// The backoff and the wait for queue space happen off the worker.
	go s.requeue(retry, job.job.RetryPolicy.Backoff*time.Duration(job.attempt), err)
}

// requeue puts job back on the queue after delay. If the scheduler stops first the job
// is finished with lastErr.
func (s *Scheduler) requeue(job scheduledJob, delay time.Duration, lastErr error) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			s.finishJob(job, lastErr)
			return
		}
	}
	if !s.enqueue(job) {
		s.finishJob(job, lastErr)
	}
}

func (s *Scheduler) runJob(job scheduledJob) (runErr error) {
	start := time.Now()
	status := "success"

	ctx := s.ctx
	if job.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.job.Timeout)
		defer cancel()
	}

	defer func() {
		jobDurationSeconds.WithLabelValues(job.job.Name).Observe(time.Since(start).Seconds())
		jobRunsTotal.WithLabelValues(job.job.Name, status).Inc()
	}()

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			status = "failure"
			logger.Error(runErr, "Background job panicked", map[string]interface{}{"job": job.job.Name, "attempt": job.attempt})
		}
	}()

	if err := ctx.Err(); err != nil {
		status = "canceled"
		return err
	}

	runErr = job.job.Run(ctx)
	if runErr != nil {
		status = "failure"
		if errors.Is(runErr, context.Canceled) {
			status = "canceled"
		}
		logger.Warn("Background job attempt failed", map[string]interface{}{
			"job":     job.job.Name,
			"attempt": job.attempt,
			"error":   runErr.Error(),
		})
	}

	return runErr
}

func (s *Scheduler) shouldRetry(job scheduledJob, err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return job.attempt <= job.job.RetryPolicy.MaxRetries
}

func (s *Scheduler) enqueue(job scheduledJob) bool {
	select {
	case <-s.ctx.Done():
		return false
	case s.queue <- job:
		jobQueueDepth.Set(float64(len(s.queue)))
		return true
	}
}

func (s *Scheduler) tryEnqueue(job scheduledJob) bool {
	select {
	case s.queue <- job:
		jobQueueDepth.Set(float64(len(s.queue)))
		return true
	default:
		return false
	}
}

// release drops the job's unique key and its pending slot.
func (s *Scheduler) release(job scheduledJob) {
	if job.unique {
		s.mu.Lock()
		delete(s.activeJobs, job.job.uniqueKey())
		s.mu.Unlock()
	}
	s.pendingWG.Done()
}

func (s *Scheduler) finishJob(job scheduledJob, runErr error) {
	defer s.release(job)

	fields := map[string]interface{}{"job": job.job.Name, "attempt": job.attempt}
	switch {
	case runErr == nil:
		logger.Debug("Background job completed", fields)
	case errors.Is(runErr, context.Canceled):
		logger.Warn("Background job canceled", fields)
	default:
		logger.Error(runErr, "Background job gave up", fields)
	}
}

// Schedule queues job, waiting for queue space if necessary.
func (s *Scheduler) Schedule(job Job) error {
	return s.schedule(job, true, false)
}

// ScheduleUnique rejects a job while another job with the same key is queued or running.
func (s *Scheduler) ScheduleUnique(job Job) error {
	return s.schedule(job, true, true)
}

// TryScheduleUnique is ScheduleUnique without waiting: a full queue returns ErrQueueFull.
func (s *Scheduler) TryScheduleUnique(job Job) error {
	return s.schedule(job, false, true)
}

func (s *Scheduler) schedule(job Job, wait, unique bool) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return errors.New("job runner is required")
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrSchedulerNotStarted
	}
	if s.closing {
		s.mu.Unlock()
		return ErrSchedulerShuttingDown
	}
	if unique {
		key := job.uniqueKey()
		if _, exists := s.activeJobs[key]; exists {
			s.mu.Unlock()
			return ErrJobAlreadyScheduled
		}
		s.activeJobs[key] = struct{}{}
	}
	s.pendingWG.Add(1)
	s.mu.Unlock()

	scheduled := scheduledJob{job: job, attempt: 1, unique: unique}
	switch {
	case job.Delay > 0:
		go s.requeue(scheduled, job.Delay, context.Canceled)
	case wait:
		if !s.enqueue(scheduled) {
			s.finishJob(scheduled, ErrSchedulerShuttingDown)
			return ErrSchedulerShuttingDown
		}
	default:
		if !s.tryEnqueue(scheduled) {
			s.release(scheduled)
			return ErrQueueFull
		}
	}

	return nil
}

// Shutdown refuses new jobs, waits for queued ones to finish, then stops the workers.
// Jobs still outstanding when ctx expires are canceled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	cancel := s.cancel
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.pendingWG.Wait()
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-ctx.Done():
		drainErr = ctx.Err()
	}

	cancel()

	stopped := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return drainErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) ActiveJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeJobs)
}
