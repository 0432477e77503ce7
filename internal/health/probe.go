// Package health reports job liveness from heartbeats and failure streaks.
package health

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status of one job.
type Status string

const (
	StatusOK      Status = "ok"
	StatusStale   Status = "stale"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
)

// HeartbeatReader reads what the executor records.
type HeartbeatReader interface {
	LastRun(ctx context.Context, job string) (time.Time, bool, error)
	Failures(ctx context.Context, job string) (int64, error)
}

// JobStatus is the liveness of one job.
type JobStatus struct {
	Name                string     `json:"name"`
	Status              Status     `json:"status"`
	LastRun             *time.Time `json:"last_run,omitempty"`
	NextRun             *time.Time `json:"next_run,omitempty"`
	AgeSeconds          float64    `json:"age_seconds,omitempty"`
	Stale               bool       `json:"stale"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	Error               string     `json:"error,omitempty"`
}

// SystemStats describes the process host.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// Probe evaluates job liveness.
type Probe struct {
	heartbeats HeartbeatReader
	thresholds map[string]time.Duration
	downAfter  int64
	log        zerolog.Logger
	now        func() time.Time
}

// NewProbe creates a probe over the jobs named in thresholds. A job is down
// once it has failed downAfter times in a row.
func NewProbe(heartbeats HeartbeatReader, thresholds map[string]time.Duration, downAfter int64, log zerolog.Logger) *Probe {
	return &Probe{
		heartbeats: heartbeats,
		thresholds: thresholds,
		downAfter:  downAfter,
		log:        log.With().Str("component", "health").Logger(),
		now:        time.Now,
	}
}

// SetClock replaces the time source (tests).
func (p *Probe) SetClock(now func() time.Time) {
	p.now = now
}

// Jobs returns the status of every job, ordered by name.
func (p *Probe) Jobs(ctx context.Context) []JobStatus {
	names := make([]string, 0, len(p.thresholds))
	for name := range p.thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]JobStatus, 0, len(names))
	for _, name := range names {
		out = append(out, p.Job(ctx, name))
	}
	return out
}

// Job returns the status of one job.
func (p *Probe) Job(ctx context.Context, name string) JobStatus {
	js := JobStatus{Name: name, Status: StatusUnknown}

	failures, err := p.heartbeats.Failures(ctx, name)
	if err != nil {
		p.log.Warn().Err(err).Str("job", name).Msg("Failed to read failure streak")
		js.Error = err.Error()
		return js
	}
	js.ConsecutiveFailures = failures

	last, ok, err := p.heartbeats.LastRun(ctx, name)
	if err != nil {
		p.log.Warn().Err(err).Str("job", name).Msg("Failed to read heartbeat")
		js.Error = err.Error()
		return js
	}

	js.Stale = true
	if ok {
		age := p.now().Sub(last)
		js.LastRun = &last
		js.AgeSeconds = age.Seconds()
		js.Stale = age > p.thresholds[name]
	}

	switch {
	case p.downAfter > 0 && failures >= p.downAfter:
		js.Status = StatusDown
	case js.Stale:
		js.Status = StatusStale
	default:
		js.Status = StatusOK
	}
	return js
}

// System samples CPU and memory usage. CPU is measured over a short window
// so the call stays fast.
func (p *Probe) System() SystemStats {
	stats := SystemStats{Goroutines: runtime.NumGoroutine()}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		p.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemory(); err != nil {
		p.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.MemoryPercent = memStat.UsedPercent
	}

	return stats
}

// Overall is the worst status among jobs: down, then stale, then ok.
// Unknown jobs count as stale.
func Overall(jobs []JobStatus) Status {
	overall := StatusOK
	for _, j := range jobs {
		switch j.Status {
		case StatusDown:
			return StatusDown
		case StatusStale, StatusUnknown:
			overall = StatusStale
		}
	}
	return overall
}
