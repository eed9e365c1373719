// Package sched runs recurring background jobs on fixed intervals.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is a named task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type scheduledJob struct {
	Job
	running atomic.Bool
}

// Scheduler owns a set of jobs and drives their tickers.
type Scheduler struct {
	jobs []*scheduledJob
	log  *zap.Logger
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		log: zap.L().With(zap.String("component", "sched")),
	}
}

// Add registers a job. It must be called before Run.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, &scheduledJob{Job: job})
}

// Run starts a ticker goroutine per job and blocks until ctx is cancelled.
// A tick that arrives while the previous run of the same job is still in
// flight is skipped, so slow runs never pile up.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job *scheduledJob) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job *scheduledJob) {
	log := s.log.With(zap.String("job", job.Name))
	log.Info("job scheduled", zap.Duration("interval", job.Interval))

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("job stopped")
			return
		case <-ticker.C:
			s.tick(ctx, job, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job *scheduledJob, log *zap.Logger) {
	if !job.running.CompareAndSwap(false, true) {
		log.Warn("previous run still in flight, skipping tick")
		return
	}
	defer job.running.Store(false)

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Error("job run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Info("job run complete", zap.Duration("elapsed", time.Since(start)))
}
