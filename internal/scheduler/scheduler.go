// Package scheduler drives the periodic cadences. Every job ticks on its
// own goroutine; a per-job guard keeps a slow run from overlapping the
// next tick of the same cadence. Jobs never block each other.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)
	inFlight atomic.Bool
}

// Scheduler owns a set of independent periodic jobs.
type Scheduler struct {
	jobs []*job
	log  zerolog.Logger
}

// New constructs an empty Scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers a cadence. Must be called before Run.
func (s *Scheduler) Add(name string, interval time.Duration, run func(ctx context.Context)) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: run})
}

// Run starts every cadence and blocks until ctx is canceled, then waits for
// in-flight runs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	s.log.Info().Str("job", j.name).Dur("interval", j.interval).Msg("cadence starting")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	var runs sync.WaitGroup
	defer runs.Wait()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("job", j.name).Msg("cadence stopping")
			return
		case <-ticker.C:
			runs.Add(1)
			go func() {
				defer runs.Done()
				s.fire(ctx, j)
			}()
		}
	}
}

// fire runs the job unless its previous run is still in flight, in which
// case the tick is skipped.
func (s *Scheduler) fire(ctx context.Context, j *job) {
	if !j.inFlight.CompareAndSwap(false, true) {
		s.log.Debug().Str("job", j.name).Msg("previous run in flight, skipping tick")
		return
	}
	defer j.inFlight.Store(false)
	j.run(ctx)
}
