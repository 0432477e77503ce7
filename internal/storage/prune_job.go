package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Retention bounds how long durable rows are kept. A zero duration keeps rows forever.
type Retention struct {
	Minute time.Duration
	Hour   time.Duration
	Fx     time.Duration
}

// DefaultRetention keeps minute buckets for 30 days and hour buckets and FX
// rates for a year. Day buckets are never pruned.
func DefaultRetention() Retention {
	return Retention{
		Minute: 30 * 24 * time.Hour,
		Hour:   365 * 24 * time.Hour,
		Fx:     365 * 24 * time.Hour,
	}
}

// PruneJob removes durable rows past their retention. It should be scheduled daily.
type PruneJob struct {
	repo      *Repository
	retention Retention
	log       zerolog.Logger
	now       func() time.Time
}

// NewPruneJob creates a new prune job.
func NewPruneJob(repo *Repository, retention Retention, log zerolog.Logger) *PruneJob {
	return &PruneJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "storage-prune").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the time source (tests).
func (j *PruneJob) SetClock(now func() time.Time) {
	j.now = now
}

// Run implements work.Runner.
func (j *PruneJob) Run(ctx context.Context) work.Result {
	now := j.now()
	var total int64

	passes := []struct {
		keep  time.Duration
		units []domain.TimeUnit
		fx    bool
	}{
		{j.retention.Minute, []domain.TimeUnit{domain.UnitMinute}, false},
		{j.retention.Hour, []domain.TimeUnit{domain.UnitHour}, false},
		{j.retention.Fx, nil, true},
	}
	for _, p := range passes {
		if p.keep <= 0 {
			continue
		}
		results, err := j.repo.DeleteBefore(ctx, now.Add(-p.keep), p.units, p.fx)
		if err != nil {
			return work.Fail(err)
		}
		for table, n := range results {
			if n > 0 {
				j.log.Info().Str("table", table).Int64("deleted", n).Msg("Pruned durable rows")
				total += n
			}
		}
	}

	j.log.Debug().Int64("total_deleted", total).Msg("Storage prune completed")
	return work.Succeeded()
}
