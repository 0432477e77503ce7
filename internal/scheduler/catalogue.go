package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Job names. Each is also the suffix of the job's lease key.
const (
	JobTickerIngest     = "ticker-ingest"
	JobPremiumCalculate = "premium-calculate"
	JobFxIngest         = "fx-ingest"
	JobPremiumMinute    = "premium-minute"
	JobTickerMinute     = "ticker-minute"
	JobPremiumHour      = "premium-hour"
	JobTickerHour       = "ticker-hour"
	JobPremiumDay       = "premium-day"
	JobTickerDay        = "ticker-day"
	JobPremiumSummary   = "premium-summary"
	JobStoragePrune     = "storage-prune"
	JobStorageMaintain  = "storage-maintain"
)

// Trigger is when a job runs and how long a winner may hold its lease.
type Trigger struct {
	Schedule     string
	Lease        time.Duration
	StartupDelay time.Duration
}

// Catalogue maps job names to triggers.
type Catalogue map[string]Trigger

// DefaultCatalogue returns the production triggers. Aggregation jobs are
// staggered a few seconds past their boundary so the finer tier is complete.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		JobTickerIngest:     {Schedule: "@every 1s", Lease: 3 * time.Second},
		JobPremiumCalculate: {Schedule: "@every 1s", Lease: 3 * time.Second},
		JobFxIngest:         {Schedule: "@every 30m", Lease: time.Minute, StartupDelay: 5 * time.Second},
		JobPremiumMinute:    {Schedule: "0 * * * * *", Lease: 50 * time.Second},
		JobTickerMinute:     {Schedule: "2 * * * * *", Lease: 50 * time.Second},
		JobPremiumHour:      {Schedule: "10 0 * * * *", Lease: 5 * time.Minute},
		JobTickerHour:       {Schedule: "15 0 * * * *", Lease: 5 * time.Minute},
		JobPremiumDay:       {Schedule: "20 0 0 * * *", Lease: 10 * time.Minute},
		JobTickerDay:        {Schedule: "25 0 0 * * *", Lease: 10 * time.Minute},
		JobPremiumSummary:   {Schedule: "5 * * * * *", Lease: 50 * time.Second},
		JobStoragePrune:     {Schedule: "30 0 3 * * *", Lease: 5 * time.Minute},
		JobStorageMaintain:  {Schedule: "0 15 4 * * 0", Lease: 30 * time.Minute},
	}
}

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// periodRef is a fixed instant used to measure schedule periods.
var periodRef = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Period is the gap between two consecutive activations of the trigger.
func (t Trigger) Period() (time.Duration, error) {
	sched, err := parser.Parse(t.Schedule)
	if err != nil {
		return 0, err
	}
	first := sched.Next(periodRef)
	return sched.Next(first).Sub(first), nil
}

// HeartbeatTTL keeps a heartbeat alive across three periods, and never
// shorter than the executor default.
func (t Trigger) HeartbeatTTL() time.Duration {
	period, err := t.Period()
	if err != nil || 3*period < work.DefaultHeartbeatTTL {
		return work.DefaultHeartbeatTTL
	}
	return 3 * period
}

// StaleThresholds returns, per job, the heartbeat age after which the job is
// stale: base, or two periods for jobs that run less often than that.
func (c Catalogue) StaleThresholds(base time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(c))
	for name, t := range c {
		threshold := base
		if period, err := t.Period(); err == nil && 2*period > threshold {
			threshold = 2 * period
		}
		out[name] = threshold
	}
	return out
}

// Override replaces the non-zero fields of one trigger. A nil startupDelay
// keeps the current one.
func (c Catalogue) Override(name, schedule string, lease time.Duration, startupDelay *time.Duration) error {
	t, ok := c[name]
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	if schedule != "" {
		t.Schedule = schedule
	}
	if lease > 0 {
		t.Lease = lease
	}
	if startupDelay != nil {
		t.StartupDelay = *startupDelay
	}
	c[name] = t
	return nil
}

// Validate parses every schedule with the same options the scheduler uses.
func (c Catalogue) Validate() error {
	for _, name := range c.names() {
		t := c[name]
		if _, err := parser.Parse(t.Schedule); err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", name, t.Schedule, err)
		}
		if t.Lease <= 0 {
			return fmt.Errorf("job %s: lease must be positive", name)
		}
	}
	return nil
}

// Register binds every runner to its trigger. A runner without a catalogue
// entry is an error; catalogue entries without a runner are left out.
func (c Catalogue) Register(registry *work.Registry, runners map[string]work.Runner) error {
	names := make([]string, 0, len(runners))
	for name := range runners {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t, ok := c[name]
		if !ok {
			return fmt.Errorf("job %s has no trigger", name)
		}
		cfg := work.NewJobConfig(name, t.Lease)
		cfg.HeartbeatTTL = t.HeartbeatTTL()
		err := registry.Register(&work.Definition{
			Config:       cfg,
			Schedule:     t.Schedule,
			StartupDelay: t.StartupDelay,
			Runner:       runners[name],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c Catalogue) names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
