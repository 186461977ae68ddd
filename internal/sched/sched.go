// Package sched runs the recurring background sweeps on cron schedules.
package sched

import (
	"context"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job is one named recurring task. The context is the scheduler's run
// context, cancelled on Stop.
type Job struct {
	Name string
	Spec string // cron expression with seconds field
	Run  func(ctx context.Context)
}

// Scheduler wraps the cron runner with a run context and a bounded stop.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []Job
	cron   *rcron.Cron
	cancel context.CancelFunc
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(name, spec string, run func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Spec: spec, Run: run})
}

// Start registers all jobs and launches the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
	s.cron = rcron.New(rcron.WithSeconds())

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() {
			if runCtx.Err() != nil {
				return
			}
			job.Run(runCtx)
		}); err != nil {
			cancel()
			return err
		}
	}

	s.cron.Start()
	log.Printf("[sched] started with %d jobs", len(s.jobs))
	return nil
}

// Stop cancels the run context and waits briefly for in-flight jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	cr := s.cron
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cr != nil {
		stopCtx := cr.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[sched] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[sched] stopped")
}
