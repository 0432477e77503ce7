package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// recordingExecutor runs the action directly and records every call.
type recordingExecutor struct {
	mu        sync.Mutex
	calls     []string
	deadlines []time.Duration
}

func (e *recordingExecutor) Execute(ctx context.Context, cfg work.JobConfig, action func(ctx context.Context) work.Result) work.Result {
	e.mu.Lock()
	e.calls = append(e.calls, cfg.Name)
	if dl, ok := ctx.Deadline(); ok {
		e.deadlines = append(e.deadlines, time.Until(dl))
	}
	e.mu.Unlock()
	return action(ctx)
}

func (e *recordingExecutor) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == name {
			n++
		}
	}
	return n
}

func newRegistry(t *testing.T, defs ...*work.Definition) *work.Registry {
	t.Helper()
	r := work.NewRegistry()
	for _, d := range defs {
		require.NoError(t, r.Register(d))
	}
	return r
}

func succeed(ctx context.Context) work.Result { return work.Succeeded() }

func TestScheduler_RunNow(t *testing.T) {
	exec := &recordingExecutor{}
	s := New(newRegistry(t, &work.Definition{
		Config:   work.NewJobConfig(JobFxIngest, time.Minute),
		Schedule: "@every 30m",
		Runner:   work.RunFunc(succeed),
	}), exec, zerolog.Nop())

	t.Run("known job runs through the executor with a lease-bounded context", func(t *testing.T) {
		res, err := s.RunNow(context.Background(), JobFxIngest)
		require.NoError(t, err)
		assert.True(t, res.IsSuccess())
		assert.Equal(t, 1, exec.count(JobFxIngest))
		require.Len(t, exec.deadlines, 1)
		assert.LessOrEqual(t, exec.deadlines[0], time.Minute)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := s.RunNow(context.Background(), "nope")
		assert.Error(t, err)
	})
}

func TestScheduler_StartupRun(t *testing.T) {
	exec := &recordingExecutor{}
	s := New(newRegistry(t, &work.Definition{
		Config:       work.NewJobConfig(JobFxIngest, time.Minute),
		Schedule:     "@every 1h",
		StartupDelay: 10 * time.Millisecond,
		Runner:       work.RunFunc(succeed),
	}), exec, zerolog.Nop())
	assert.Empty(t, s.NextRuns())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return exec.count(JobFxIngest) == 1 }, time.Second, 5*time.Millisecond)
	next := s.NextRuns()
	require.Contains(t, next, JobFxIngest)
	assert.True(t, next[JobFxIngest].After(time.Now()))
}

func TestScheduler_StopCancelsPendingStartupRun(t *testing.T) {
	exec := &recordingExecutor{}
	s := New(newRegistry(t, &work.Definition{
		Config:       work.NewJobConfig(JobFxIngest, time.Minute),
		Schedule:     "@every 1h",
		StartupDelay: time.Hour,
		Runner:       work.RunFunc(succeed),
	}), exec, zerolog.Nop())

	require.NoError(t, s.Start())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an unfired startup run")
	}
	assert.Equal(t, 0, exec.count(JobFxIngest))
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New(work.NewRegistry(), &recordingExecutor{}, zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(newRegistry(t, &work.Definition{
		Config:   work.NewJobConfig("broken", time.Second),
		Schedule: "every now and then",
		Runner:   work.RunFunc(succeed),
	}), &recordingExecutor{}, zerolog.Nop())

	assert.Error(t, s.Start())
}
