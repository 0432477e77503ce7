package database

import (
	"context"
	"fmt"
	"strings"
)

// IntegrityCheck runs PRAGMA integrity_check and returns an error listing the
// problems SQLite reports.
func (db *DB) IntegrityCheck(ctx context.Context) error {
	rows, err := db.conn.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("integrity check on %s: %w", db.name, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("integrity check on %s: %w", db.name, err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("integrity check on %s: %w", db.name, err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("database %s is corrupt: %s", db.name, strings.Join(problems, "; "))
	}
	return nil
}

// Checkpoint folds the WAL back into the main file and truncates it.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint on %s: %w", db.name, err)
	}
	return nil
}

// SizeBytes returns page_count * page_size.
func (db *DB) SizeBytes(ctx context.Context) (int64, error) {
	var pages, pageSize int64
	if err := db.conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, fmt.Errorf("page count on %s: %w", db.name, err)
	}
	if err := db.conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page size on %s: %w", db.name, err)
	}
	return pages * pageSize, nil
}

// Vacuum rebuilds the database file and returns the bytes reclaimed.
func (db *DB) Vacuum(ctx context.Context) (int64, error) {
	before, err := db.SizeBytes(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := db.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return 0, fmt.Errorf("vacuum on %s: %w", db.name, err)
	}
	after, err := db.SizeBytes(ctx)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}
