package lock

// Status tags the variant held by a Result.
type Status int

const (
	// StatusAcquired means the lease was granted and the action ran.
	StatusAcquired Status = iota
	// StatusNotAcquired means another owner holds the lease; the action did not run.
	StatusNotAcquired
	// StatusError means acquisition, the action, or release failed.
	StatusError
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusAcquired:
		return "acquired"
	case StatusNotAcquired:
		return "not_acquired"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of WithLock: Success{Value} | NotAcquired | Error{Err}.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Success wraps the value returned by an action that ran under the lease.
func Success[T any](v T) Result[T] {
	return Result[T]{Status: StatusAcquired, Value: v}
}

// NotAcquiredResult reports a lost contention round.
func NotAcquiredResult[T any]() Result[T] {
	return Result[T]{Status: StatusNotAcquired}
}

// Failed wraps an error raised while acquiring, running or releasing.
func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}

// IsSuccess reports whether the action ran and completed.
func (r Result[T]) IsSuccess() bool { return r.Status == StatusAcquired }

// IsNotAcquired reports whether the lease was held elsewhere.
func (r Result[T]) IsNotAcquired() bool { return r.Status == StatusNotAcquired }

// IsError reports whether an error was captured.
func (r Result[T]) IsError() bool { return r.Status == StatusError }
