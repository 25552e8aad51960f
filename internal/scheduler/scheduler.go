package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/monitor"
)

const (
	queueSize = 128
	// sunSlack runs the boundary check just after the event so the sun
	// computation already reports the new mode.
	sunSlack = time.Second
)

// Cycler is the part of a habitat the scheduler drives.
type Cycler interface {
	ID() string
	RunCycle(ctx context.Context) monitor.Report
	CheckDayNight(ctx context.Context) []habitat.CommandResult
	NextSunEvent() (time.Time, error)
}

type Options struct {
	Workers      int
	JobTimeout   time.Duration
	DayNightSpec string
}

type Registry struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	queue    chan JobRun
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	spec     string
	cron     *cron.Cron
	inflight sync.WaitGroup
	stopped  bool
	log      *slog.Logger
}

type Job struct {
	habitat  Cycler
	interval time.Duration
	stop     chan struct{}
	cronID   cron.EntryID
	sun      *time.Timer
	nextSun  time.Time
	cycling  atomic.Bool
	checking atomic.Bool
}

type JobInfo struct {
	HabitatID           string    `json:"habitat_id"`
	PollIntervalSeconds int       `json:"poll_interval_seconds"`
	NextSunEvent        time.Time `json:"next_sun_event,omitempty"`
}

type runKind int

const (
	runCycle runKind = iota
	runDayNight
)

type JobRun struct {
	job  *Job
	kind runKind
}

func NewRegistry(opts Options, log *slog.Logger) (*Registry, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	if opts.DayNightSpec == "" {
		opts.DayNightSpec = "@every 1m"
	}
	if _, err := cron.ParseStandard(opts.DayNightSpec); err != nil {
		return nil, fmt.Errorf("day/night spec %q: %w", opts.DayNightSpec, err)
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg := &Registry{
		jobs:    map[string]*Job{},
		queue:   make(chan JobRun, queueSize),
		workers: opts.Workers,
		ctx:     ctx,
		cancel:  cancel,
		timeout: opts.JobTimeout,
		spec:    opts.DayNightSpec,
		cron:    cron.New(),
		log:     log,
	}
	for i := 0; i < reg.workers; i++ {
		go reg.worker()
	}
	reg.cron.Start()
	return reg, nil
}

// Schedule starts polling h every interval and checking its light mode on
// the cron spec and at each sun event. An existing job for the habitat is
// replaced.
func (r *Registry) Schedule(h Cycler, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errors.New("scheduler stopped")
	}
	if existing, ok := r.jobs[h.ID()]; ok {
		r.stopJobLocked(existing)
	}
	job := &Job{habitat: h, interval: interval, stop: make(chan struct{})}
	id, err := r.cron.AddFunc(r.spec, func() { r.enqueue(job, runDayNight) })
	if err != nil {
		return fmt.Errorf("schedule day/night check: %w", err)
	}
	job.cronID = id
	r.jobs[h.ID()] = job
	r.armSunLocked(job)
	go r.runTicker(job)
	r.log.Info("habitat scheduled", slog.String("habitat", h.ID()), slog.Duration("interval", interval))
	return nil
}

func (r *Registry) Unschedule(habitatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[habitatID]; ok {
		r.stopJobLocked(job)
		delete(r.jobs, habitatID)
	}
}

func (r *Registry) ListJobs() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]JobInfo, 0, len(r.jobs))
	for id, job := range r.jobs {
		jobs = append(jobs, JobInfo{
			HabitatID:           id,
			PollIntervalSeconds: int(job.interval / time.Second),
			NextSunEvent:        job.nextSun,
		})
	}
	return jobs
}

// Stop halts every timer, waits for queued and running jobs, then releases
// the workers. When ctx expires first the running jobs are cancelled.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	for _, job := range r.jobs {
		r.stopJobLocked(job)
	}
	r.jobs = map[string]*Job{}
	r.mu.Unlock()
	<-r.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	defer r.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) stopJobLocked(job *Job) {
	close(job.stop)
	r.cron.Remove(job.cronID)
	if job.sun != nil {
		job.sun.Stop()
	}
}

// armSunLocked sets a one-shot timer for the habitat's next sunrise or
// sunset. Habitats without a sun event today rely on the cron check.
func (r *Registry) armSunLocked(job *Job) {
	if job.sun != nil {
		job.sun.Stop()
		job.sun = nil
	}
	next, err := job.habitat.NextSunEvent()
	if err != nil {
		job.nextSun = time.Time{}
		return
	}
	job.nextSun = next
	job.sun = time.AfterFunc(time.Until(next)+sunSlack, func() { r.enqueue(job, runDayNight) })
}

func (r *Registry) runTicker(job *Job) {
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.enqueue(job, runCycle)
		case <-job.stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// enqueue hands a run to the workers unless the same kind of run is still
// queued or executing for the habitat.
func (r *Registry) enqueue(job *Job, kind runKind) {
	busy := &job.cycling
	if kind == runDayNight {
		busy = &job.checking
	}
	if !busy.CompareAndSwap(false, true) {
		if kind == runCycle {
			r.log.Warn("cycle skipped, previous still running", slog.String("habitat", job.habitat.ID()))
		}
		return
	}
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		busy.Store(false)
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()
	select {
	case r.queue <- JobRun{job: job, kind: kind}:
	default:
		r.inflight.Done()
		busy.Store(false)
		r.log.Warn("job queue full", slog.String("habitat", job.habitat.ID()))
	}
}

func (r *Registry) worker() {
	for {
		select {
		case run := <-r.queue:
			r.execute(run)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Registry) execute(run JobRun) {
	defer r.inflight.Done()
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()
	h := run.job.habitat
	switch run.kind {
	case runCycle:
		defer run.job.cycling.Store(false)
		report := h.RunCycle(ctx)
		r.log.Debug("cycle complete",
			slog.String("habitat", h.ID()),
			slog.String("mode", string(report.Mode)),
			slog.Int("commands", len(report.Commands)),
			slog.Int("alerts", len(report.Alerts)))
	case runDayNight:
		defer run.job.checking.Store(false)
		h.CheckDayNight(ctx)
		r.mu.Lock()
		if current, ok := r.jobs[h.ID()]; ok && current == run.job && !r.stopped {
			r.armSunLocked(run.job)
		}
		r.mu.Unlock()
	}
}
