// Package scheduler drives registered jobs from cron triggers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Executor runs one tick of a job under its lease.
type Executor interface {
	Execute(ctx context.Context, cfg work.JobConfig, action func(ctx context.Context) work.Result) work.Result
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	registry *work.Registry
	executor Executor
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	entries map[string]cron.EntryID
	timers  []*time.Timer
	wg      sync.WaitGroup
}

// New creates a new scheduler. Schedules are evaluated in UTC.
func New(registry *work.Registry, executor Executor, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	logger := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		registry: registry,
		executor: executor,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers every job of the registry and starts the cron loop.
// Jobs with a startup delay also run once that long after Start.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.entries = make(map[string]cron.EntryID, s.registry.Count())
	for _, def := range s.registry.All() {
		def := def
		id, err := s.cron.AddFunc(def.Schedule, func() { s.tick(def) })
		if err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", def.Config.Name, def.Schedule, err)
		}
		s.entries[def.Config.Name] = id
		s.log.Info().
			Str("schedule", def.Schedule).
			Str("job", def.Config.Name).
			Dur("lease", def.Config.LeaseTime).
			Msg("Job registered")

		if def.StartupDelay > 0 {
			s.wg.Add(1)
			t := time.AfterFunc(def.StartupDelay, func() {
				defer s.wg.Done()
				s.tick(def)
			})
			s.timers = append(s.timers, t)
		}
	}

	s.cron.Start()
	s.started = true
	s.log.Info().Int("jobs", s.registry.Count()).Msg("Scheduler started")
	return nil
}

// Stop stops the triggers and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, t := range s.timers {
		if t.Stop() {
			// the startup run never fired
			s.wg.Done()
		}
	}
	s.timers = nil
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.cancel()
	s.log.Info().Msg("Scheduler stopped")
}

// RunNow executes a job immediately (outside schedule). It goes through the
// same lease as a scheduled tick, so it may be skipped.
func (s *Scheduler) RunNow(ctx context.Context, name string) (work.Result, error) {
	def := s.registry.Get(name)
	if def == nil {
		return work.Result{}, fmt.Errorf("unknown job: %s", name)
	}
	s.log.Info().Str("job", name).Msg("Running job immediately")
	return s.execute(ctx, def), nil
}

// NextRuns returns the next cron activation of every scheduled job, keyed
// by job name. It is empty until Start.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		if next := s.cron.Entry(id).Next; !next.IsZero() {
			out[name] = next
		}
	}
	return out
}

func (s *Scheduler) tick(def *work.Definition) {
	s.execute(s.ctx, def)
}

func (s *Scheduler) execute(ctx context.Context, def *work.Definition) work.Result {
	// a tick may not outlive its lease
	ctx, cancel := context.WithTimeout(ctx, def.Config.LeaseTime)
	defer cancel()

	return s.executor.Execute(ctx, def.Config, def.Runner.Run)
}
