package store

import (
	"context"
	"fmt"
)

// ListActiveSourcePaths returns the source files of pending and processing
// jobs. The upload sweep must never delete these, whatever their age.
func (s *Store) ListActiveSourcePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path FROM jobs WHERE status IN (?, ?)`,
		StatusPending, StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("list active source paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// ExpiredJobs returns terminal jobs whose expiry has passed.
func (s *Store) ExpiredJobs(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE expires_at < ? AND status IN (?, ?) ORDER BY expires_at`,
		s.timestamp(), StatusCompleted, StatusFailed,
	)
}

// DeleteExpired removes terminal jobs whose expiry has passed and returns the
// number of records removed. Active jobs are kept regardless of expiry.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM jobs WHERE expires_at < ? AND status IN (?, ?)`,
		s.timestamp(), StatusCompleted, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
