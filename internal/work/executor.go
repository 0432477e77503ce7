package work

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/lock"
	"github.com/geonyeop123/premium-spread-sub000/internal/metrics"
)

// DefaultHeartbeatTTL applies to jobs whose config sets no HeartbeatTTL.
const DefaultHeartbeatTTL = 10 * time.Minute

// MetricJobExecution is the counter emitted for every Execute call.
const MetricJobExecution = "job.execution"

// Locker runs a job action under a named lease.
type Locker interface {
	WithLock(ctx context.Context, key string, waitTime, leaseTime time.Duration, action func(ctx context.Context) (Result, error)) lock.Result[Result]
}

// HeartbeatStore records per-job liveness.
type HeartbeatStore interface {
	WriteHeartbeat(ctx context.Context, job string, at time.Time, ttl time.Duration) error
	RecordFailure(ctx context.Context, job string) error
	ResetFailures(ctx context.Context, job string) error
}

type coordinatorLocker struct {
	c *lock.Coordinator
}

// NewCoordinatorLocker adapts a lock.Coordinator to Locker.
func NewCoordinatorLocker(c *lock.Coordinator) Locker {
	return coordinatorLocker{c: c}
}

func (l coordinatorLocker) WithLock(ctx context.Context, key string, waitTime, leaseTime time.Duration, action func(ctx context.Context) (Result, error)) lock.Result[Result] {
	return lock.WithLock(ctx, l.c, key, waitTime, leaseTime, action)
}

// Executor wraps job actions with the lease, heartbeat and outcome metrics.
type Executor struct {
	locker       Locker
	heartbeats   HeartbeatStore
	metrics      metrics.Collector
	log          zerolog.Logger
	heartbeatTTL time.Duration
	now          func() time.Time
}

// NewExecutor creates an executor. Production call sites never wait for a lease.
func NewExecutor(locker Locker, heartbeats HeartbeatStore, collector metrics.Collector, log zerolog.Logger) *Executor {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Executor{
		locker:       locker,
		heartbeats:   heartbeats,
		metrics:      collector,
		log:          log.With().Str("component", "job_executor").Logger(),
		heartbeatTTL: DefaultHeartbeatTTL,
		now:          time.Now,
	}
}

// SetHeartbeatTTL overrides DefaultHeartbeatTTL.
func (e *Executor) SetHeartbeatTTL(ttl time.Duration) {
	if ttl > 0 {
		e.heartbeatTTL = ttl
	}
}

// SetClock replaces the time source (tests).
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// Execute runs action for one tick of cfg.
//
//   - lease granted: the action's Result is returned; a heartbeat is written iff it is Success
//   - lease denied: Skipped("lock"), nothing written
//   - lease error: Failure, nothing written
//
// Execute is safe to call concurrently from every node on every tick; at most one
// caller per tick observes Success.
func (e *Executor) Execute(ctx context.Context, cfg JobConfig, action func(ctx context.Context) Result) Result {
	log := e.log.With().Str("job", cfg.Name).Logger()

	lr := e.locker.WithLock(ctx, cfg.LockKey, 0, cfg.LeaseTime, func(ctx context.Context) (Result, error) {
		return Guard(ctx, action), nil
	})

	var res Result
	switch lr.Status {
	case lock.StatusAcquired:
		res = lr.Value
	case lock.StatusNotAcquired:
		res = Skip(ReasonLock)
	default:
		res = Fail(lr.Err)
	}

	switch res.Kind {
	case KindSuccess:
		e.recordSuccess(ctx, cfg, log)
		log.Debug().Msg("Job completed")
	case KindSkipped:
		log.Debug().Str("reason", res.Reason).Msg("Job skipped")
	case KindFailure:
		e.recordFailure(ctx, cfg, log)
		log.Error().Err(res.Err).Str("error_type", ErrorType(res.Err)).Msg("Job failed")
	}

	e.metrics.IncCounter(MetricJobExecution, outcomeTags(cfg.Name, res))
	return res
}

func (e *Executor) recordSuccess(ctx context.Context, cfg JobConfig, log zerolog.Logger) {
	if e.heartbeats == nil {
		return
	}
	ttl := e.heartbeatTTL
	if cfg.HeartbeatTTL > 0 {
		ttl = cfg.HeartbeatTTL
	}
	if err := e.heartbeats.WriteHeartbeat(ctx, cfg.Name, e.now(), ttl); err != nil {
		log.Warn().Err(err).Msg("Failed to write heartbeat")
	}
	if err := e.heartbeats.ResetFailures(ctx, cfg.Name); err != nil {
		log.Warn().Err(err).Msg("Failed to reset failure streak")
	}
}

func (e *Executor) recordFailure(ctx context.Context, cfg JobConfig, log zerolog.Logger) {
	if e.heartbeats == nil {
		return
	}
	if err := e.heartbeats.RecordFailure(ctx, cfg.Name); err != nil {
		log.Warn().Err(err).Msg("Failed to record failure streak")
	}
}

func outcomeTags(job string, res Result) map[string]string {
	tags := map[string]string{
		"job":     job,
		"outcome": res.Outcome(),
	}
	switch res.Kind {
	case KindSkipped:
		tags["reason"] = res.Reason
	case KindFailure:
		tags["error_type"] = ErrorType(res.Err)
	}
	return tags
}
