// Package worker runs the background jobs: renewal sweeps per
// (provider, billing model) family and the webhook retry loop.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one periodic unit of background work. Execute is invoked once
// per tick with the runner's context; overlapping executions of the same
// job never happen.
type Job struct {
	Name         string
	PollInterval time.Duration
	Execute      func(ctx context.Context) error
}

// Runner drives a set of jobs on independent tickers until the context
// is canceled.
type Runner struct {
	jobs []Job
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// Add registers a job.
func (r *Runner) Add(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start launches one goroutine per job. Returns immediately.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.run(ctx, job)
	}
	r.log.Info().Int("jobs", len(r.jobs)).Msg("Background runner started")
}

// Wait blocks until every job loop has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.PollInterval)
	defer ticker.Stop()

	log := r.log.With().Str("job", job.Name).Logger()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Job loop stopped")
			return
		case <-ticker.C:
			if err := job.Execute(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Job execution failed")
			}
		}
	}
}
