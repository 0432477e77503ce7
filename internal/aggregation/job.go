// Package aggregation reduces one cache tier over a closed time window into the
// next coarser tier, and recomputes the named-interval summaries.
package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Job reduces the window that closed most recently at Unit granularity.
// Only Read and Write differ between pipelines.
type Job[T any] struct {
	Name string
	Unit domain.TimeUnit

	// Read pulls the finer tier for [from, to). ok=false means the window is empty.
	Read func(ctx context.Context, from, to time.Time) (data T, ok bool, err error)

	// Write persists the reduced value to the coarser tier and durable storage.
	Write func(ctx context.Context, data T, from, to time.Time) error

	Now func() time.Time
}

// Window returns [truncate(now - 1U), truncate(now - 1U) + 1U) in UTC.
func (j *Job[T]) Window() (from, to time.Time) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	from = j.Unit.Truncate(now().Add(-j.Unit.Duration()))
	return from, from.Add(j.Unit.Duration())
}

// Run implements work.Runner.
func (j *Job[T]) Run(ctx context.Context) work.Result {
	if !j.Unit.Valid() {
		return work.Fail(fmt.Errorf("%s: unknown time unit %q", j.Name, j.Unit))
	}
	return work.Guard(ctx, j.run)
}

func (j *Job[T]) run(ctx context.Context) work.Result {
	from, to := j.Window()

	data, ok, err := j.Read(ctx, from, to)
	if err != nil {
		return work.Fail(fmt.Errorf("%s: read %s: %w", j.Name, from.Format(time.RFC3339), err))
	}
	if !ok {
		return work.Skip(work.ReasonNoData)
	}
	if err := j.Write(ctx, data, from, to); err != nil {
		return work.Fail(fmt.Errorf("%s: write %s: %w", j.Name, from.Format(time.RFC3339), err))
	}
	return work.Succeeded()
}
