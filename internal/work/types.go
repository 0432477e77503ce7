// Package work provides lock-guarded execution of recurring jobs.
// Every job returns a Result; no error or panic escapes a job or the executor.
package work

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Skip reasons shared by all jobs.
const (
	ReasonLock         = "lock"
	ReasonMissingData  = "missing_data"
	ReasonInvalidPrice = "invalid_price"
	ReasonNoData       = "no_data"
)

// JobConfig identifies one logical recurring job and its lease.
type JobConfig struct {
	// Name is the job identifier used for heartbeats, metrics and logs (e.g., "fx-ingest").
	Name string

	// LockKey is the fleet-wide lease key; one contention round per tick.
	LockKey string

	// LeaseTime bounds how long a winner may hold the lease.
	LeaseTime time.Duration

	// HeartbeatTTL overrides the executor default; slow schedules need a
	// heartbeat that outlives the gap between two runs.
	HeartbeatTTL time.Duration
}

// NewJobConfig builds a config whose lock key is derived from the name.
func NewJobConfig(name string, lease time.Duration) JobConfig {
	return JobConfig{
		Name:      name,
		LockKey:   "lock:job:" + name,
		LeaseTime: lease,
	}
}

// Validate checks that the config can be executed.
func (c JobConfig) Validate() error {
	if c.Name == "" {
		return errors.New("job name is required")
	}
	if c.LockKey == "" {
		return fmt.Errorf("job %s: lock key is required", c.Name)
	}
	if c.LeaseTime <= 0 {
		return fmt.Errorf("job %s: lease time must be positive", c.Name)
	}
	return nil
}

// Kind tags the variant held by a Result.
type Kind int

const (
	KindSuccess Kind = iota
	KindSkipped
	KindFailure
)

// Result is Success | Skipped{Reason} | Failure{Err}.
type Result struct {
	Kind   Kind
	Reason string
	Err    error
}

// Succeeded reports a completed job.
func Succeeded() Result { return Result{Kind: KindSuccess} }

// Skip reports a job that had nothing to do. Skips are not errors and must not alert.
func Skip(reason string) Result { return Result{Kind: KindSkipped, Reason: reason} }

// Fail reports a job failure. The next scheduled tick is the only retry.
func Fail(err error) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Result{Kind: KindFailure, Err: err}
}

// IsSuccess reports whether r is Success.
func (r Result) IsSuccess() bool { return r.Kind == KindSuccess }

// IsSkipped reports whether r is Skipped.
func (r Result) IsSkipped() bool { return r.Kind == KindSkipped }

// IsFailure reports whether r is Failure.
func (r Result) IsFailure() bool { return r.Kind == KindFailure }

// Outcome is the metric tag value for r.
func (r Result) Outcome() string {
	switch r.Kind {
	case KindSuccess:
		return "success"
	case KindSkipped:
		return "skipped"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// String returns a readable form, e.g. "skipped(no_data)".
func (r Result) String() string {
	switch r.Kind {
	case KindSkipped:
		return "skipped(" + r.Reason + ")"
	case KindFailure:
		return "failure(" + r.Err.Error() + ")"
	default:
		return r.Outcome()
	}
}

// Runner is anything that can run one tick of a job.
type Runner interface {
	Run(ctx context.Context) Result
}

// RunFunc adapts a function to Runner.
type RunFunc func(ctx context.Context) Result

// Run implements Runner.
func (f RunFunc) Run(ctx context.Context) Result { return f(ctx) }

// Guard runs fn and converts a panic into a Failure.
func Guard(ctx context.Context, fn func(ctx context.Context) Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx)
}

// ErrorType returns the dynamic type of the first error in the chain that is not a
// plain fmt.Errorf wrapper, used as a metric tag (e.g. "*clients.APIError").
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	for {
		name := fmt.Sprintf("%T", err)
		if name != "*fmt.wrapError" && name != "*fmt.wrapErrors" {
			return name
		}
		next := errors.Unwrap(err)
		if next == nil {
			return name
		}
		err = next
	}
}
