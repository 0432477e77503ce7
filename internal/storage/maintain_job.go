package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/geonyeop123/premium-spread-sub000/internal/database"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Disk thresholds for the maintenance job, in bytes.
const (
	MinFreeDisk  = 500 << 20
	WarnFreeDisk = 5 << 30
)

// MaintainJob checks integrity, truncates the WAL, reclaims space left by the
// prune job and watches free disk space.
type MaintainJob struct {
	db       *database.DB
	log      zerolog.Logger
	diskFree func(path string) (uint64, error)
}

// NewMaintainJob creates a maintenance job for db.
func NewMaintainJob(db *database.DB, log zerolog.Logger) *MaintainJob {
	return &MaintainJob{
		db:       db,
		log:      log.With().Str("job", "storage-maintain").Logger(),
		diskFree: freeBytes,
	}
}

func freeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Run implements work.Runner. Corruption and a nearly full disk fail the job;
// checkpoint and vacuum problems are logged and the job still succeeds.
func (j *MaintainJob) Run(ctx context.Context) work.Result {
	if err := j.db.IntegrityCheck(ctx); err != nil {
		return work.Fail(err)
	}

	if err := j.db.Checkpoint(ctx); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	reclaimed, err := j.db.Vacuum(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("VACUUM failed")
	} else {
		j.log.Info().Int64("reclaimed_bytes", reclaimed).Msg("VACUUM completed")
	}

	return j.checkDisk()
}

func (j *MaintainJob) checkDisk() work.Result {
	dir := filepath.Dir(j.db.Path())
	free, err := j.diskFree(dir)
	if err != nil {
		j.log.Warn().Err(err).Str("dir", dir).Msg("Failed to read free disk space")
		return work.Succeeded()
	}

	switch {
	case free < MinFreeDisk:
		return work.Fail(fmt.Errorf("only %d bytes free under %s", free, dir))
	case free < WarnFreeDisk:
		j.log.Warn().Uint64("free_bytes", free).Str("dir", dir).Msg("Disk space running low")
	default:
		j.log.Debug().Uint64("free_bytes", free).Msg("Disk space check")
	}
	return work.Succeeded()
}
