package work

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinition(name, schedule string) *Definition {
	return &Definition{
		Config:   NewJobConfig(name, time.Second),
		Schedule: schedule,
		Runner: RunFunc(func(ctx context.Context) Result {
			return Succeeded()
		}),
	}
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(testDefinition("ticker-ingest", "@every 1s")))

	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Has("ticker-ingest"))
	assert.Equal(t, "lock:job:ticker-ingest", r.Get("ticker-ingest").Config.LockKey)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(testDefinition("fx-ingest", "@every 30m")))
	require.NoError(t, r.Register(testDefinition("fx-ingest", "@every 1h")))

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, "@every 1h", r.Get("fx-ingest").Schedule)
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
	}{
		{"nil", nil},
		{"missing name", &Definition{Config: JobConfig{LockKey: "k", LeaseTime: time.Second}, Schedule: "@every 1s", Runner: RunFunc(nil)}},
		{"missing lease", &Definition{Config: JobConfig{Name: "a", LockKey: "k"}, Schedule: "@every 1s", Runner: RunFunc(nil)}},
		{"missing schedule", &Definition{Config: NewJobConfig("a", time.Second), Runner: RunFunc(nil)}},
		{"missing runner", &Definition{Config: NewJobConfig("a", time.Second), Schedule: "@every 1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			assert.Error(t, r.Register(tt.def))
			assert.Equal(t, 0, r.Count())
		})
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()

	assert.Nil(t, r.Get("nonexistent"))
	assert.False(t, r.Has("nonexistent"))
}

func TestRegistry_NamesAndAllSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"ticker-minute", "fx-ingest", "premium-calculate"} {
		require.NoError(t, r.Register(testDefinition(name, "@every 1s")))
	}

	assert.Equal(t, []string{"fx-ingest", "premium-calculate", "ticker-minute"}, r.Names())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "fx-ingest", all[0].Config.Name)
	assert.Equal(t, "ticker-minute", all[2].Config.Name)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Register(testDefinition("job", "@every 1s"))
		}()
		go func() {
			defer wg.Done()
			_ = r.Names()
			_ = r.Has("job")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Count())
}
