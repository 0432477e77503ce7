// Package metrics provides counter collection for job outcomes and cache lookups.
package metrics

import (
	"sort"
	"strings"
	"sync"
)

// Collector receives counter increments tagged with string dimensions.
type Collector interface {
	IncCounter(name string, tags map[string]string)
}

// Nop discards all metrics.
type Nop struct{}

// IncCounter implements Collector.
func (Nop) IncCounter(string, map[string]string) {}

// Multi fans every increment out to each collector.
type Multi []Collector

// IncCounter implements Collector.
func (m Multi) IncCounter(name string, tags map[string]string) {
	for _, c := range m {
		if c != nil {
			c.IncCounter(name, tags)
		}
	}
}

// Recorder keeps counters in memory for the lifetime of the process.
// GET /health/metrics serves its Snapshot.
type Recorder struct {
	mu       sync.RWMutex
	counters map[string]int64
}

// NewRecorder creates an empty in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{counters: make(map[string]int64)}
}

// IncCounter implements Collector.
func (r *Recorder) IncCounter(name string, tags map[string]string) {
	key := SeriesKey(name, tags)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key]++
}

// Count returns the current value of the series identified by name and tags.
func (r *Recorder) Count(name string, tags map[string]string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[SeriesKey(name, tags)]
}

// Snapshot returns a copy of all series.
func (r *Recorder) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

// SeriesKey renders name{k=v,...} with tags sorted by key.
func SeriesKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	b.WriteByte('}')
	return b.String()
}
