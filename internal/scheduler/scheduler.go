// Package scheduler runs the periodic feed refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"webuild/internal/async"
	appLog "webuild/internal/log"
)

// Job is one named refresh step.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler triggers every job on each cron tick. A Scheduler built from an
// empty schedule is disabled: Start and Stop are no-ops but RunNow still works.
type Scheduler struct {
	spec  string
	jobs  []Job
	cron  *cron.Cron
	after func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New parses spec (standard five-field cron or a descriptor like "@hourly").
func New(spec string, jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{spec: spec, jobs: jobs}
	if spec == "" {
		return s, nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}
	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return s, nil
}

// After sets a hook that runs once a RunNow finishes with at least one
// successful job. It must be called before Start.
func (s *Scheduler) After(fn func(ctx context.Context)) {
	s.after = fn
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

// Start registers the jobs and starts the cron loop. Jobs run with a context
// derived from ctx and cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron == nil {
		appLog.Info("scheduler disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() { _ = s.RunNow(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("scheduler: %w", err)
	}
	s.cancel = cancel
	s.cron.Start()
	appLog.Info("scheduler started", "spec", s.spec, "jobs", len(s.jobs))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

// RunNow runs every job concurrently and waits for all of them. Failed jobs
// are logged; an error is returned only when every job failed.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return nil
	}

	futures := make([]*async.Future[string], len(s.jobs))
	for i, job := range s.jobs {
		futures[i] = async.Go(func() (string, error) {
			if err := job.Run(ctx); err != nil {
				return job.Name, fmt.Errorf("%s: %w", job.Name, err)
			}
			return job.Name, nil
		})
	}

	results, err := async.WaitAll(futures)
	if err != nil {
		appLog.Error("refresh failed for every job", err, "jobs", len(s.jobs))
		return err
	}
	for i, res := range results {
		if res.Failed() {
			appLog.Error("refresh job failed", res.Err, "job", s.jobs[i].Name)
			continue
		}
		appLog.Debug("refresh job done", "job", res.Value)
	}
	if s.after != nil {
		s.after(ctx)
	}
	return nil
}

// cronLogger routes cron's logr-style calls to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
