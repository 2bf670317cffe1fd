/*
scheduler.go - Wall-clock job scheduler

PURPOSE:
  Fires the archival and period-close jobs at configured wall-clock
  times in a fixed time zone. Jobs must tolerate at-least-once firing;
  both are idempotent or explicitly refuse to rerun (see
  ledger/archive.go and ledger/close.go).

DESIGN:
  - Explicit job registry: name, hour:minute, optional weekday filter
  - Injectable Clock so tests advance time deterministically instead
    of waiting on a wall clock
  - A job error or panic is logged and contained; the scheduler loop
    never dies

USAGE:
  sched := api.NewScheduler(loc, logger)
  sched.Register(api.Job{Name: "daily_archive", Hour: 23, Minute: 59, Run: ...})
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - cmd/server/main.go: Job registration
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock abstracts the wall clock so scheduler tests can simulate time
// advancing past trigger points.
type Clock interface {
	Now() time.Time
	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// =============================================================================
// JOB REGISTRY
// =============================================================================

// Job is one scheduled task. Hour and Minute are interpreted in the
// scheduler's location. A nil Weekday fires daily; otherwise the job
// fires only on that day of week.
type Job struct {
	Name    string
	Hour    int
	Minute  int
	Weekday *time.Weekday
	Run     func(ctx context.Context, now time.Time) error
}

// nextAfter returns the first instant strictly after `after` at which
// the job should fire.
func (j Job) nextAfter(after time.Time, loc *time.Location) time.Time {
	t := after.In(loc)
	candidate := time.Date(t.Year(), t.Month(), t.Day(), j.Hour, j.Minute, 0, 0, loc)
	// A weekday filter always matches within 7 days, so this terminates.
	for !candidate.After(after) || (j.Weekday != nil && candidate.Weekday() != *j.Weekday) {
		next := candidate.AddDate(0, 0, 1)
		candidate = time.Date(next.Year(), next.Month(), next.Day(), j.Hour, j.Minute, 0, 0, loc)
	}
	return candidate
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler fires registered jobs at their wall-clock times.
type Scheduler struct {
	Location *time.Location
	Clock    Clock
	Log      *logrus.Logger

	mu      sync.Mutex
	jobs    []Job
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewScheduler(loc *time.Location, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		Location: loc,
		Clock:    RealClock(),
		Log:      log,
		stop:     make(chan struct{}),
	}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.run()
	s.Log.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	s.Log.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	last := s.Clock.Now()
	for {
		due, at, ok := s.nextDue(last)
		if !ok {
			// No jobs registered; nothing to do.
			return
		}

		wait := at.Sub(s.Clock.Now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-s.Clock.After(wait):
			for _, job := range due {
				s.runJob(job, at)
			}
			last = at
		case <-s.stop:
			return
		}
	}
}

// nextDue finds the earliest next trigger after `after` and every job
// due at that instant.
func (s *Scheduler) nextDue(after time.Time) ([]Job, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		due    []Job
		bestAt time.Time
	)
	for _, job := range s.jobs {
		at := job.nextAfter(after, s.Location)
		switch {
		case due == nil || at.Before(bestAt):
			due, bestAt = []Job{job}, at
		case at.Equal(bestAt):
			due = append(due, job)
		}
	}
	return due, bestAt, due != nil
}

// runJob executes one job, containing errors and panics so the loop
// survives any failure.
func (s *Scheduler) runJob(job Job, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.WithFields(logrus.Fields{"job": job.Name, "panic": r}).Error("job panicked")
		}
	}()

	log := s.Log.WithFields(logrus.Fields{"job": job.Name, "fired_at": now.Format(time.RFC3339)})
	log.Info("job firing")

	if err := job.Run(context.Background(), now); err != nil {
		// Failed runs retry at the next scheduled tick, never immediately.
		log.WithError(err).Error("job failed")
		return
	}
	log.Info("job completed")
}

// RunNow triggers a registered job immediately (manual "close now").
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			job = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()

	if job == nil {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.Run(ctx, s.Clock.Now())
}
