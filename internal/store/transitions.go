package store

import (
	"context"
	"fmt"
	"strings"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// UpdateStatus moves a job to status. Entering processing stamps started_at;
// entering completed or failed stamps completed_at and records errMsg. The
// update only applies from an allowed predecessor status, so a job can never
// re-enter pending or leave a terminal state.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, status)
	}
	now := s.timestamp()

	var query string
	var args []any
	switch status {
	case StatusProcessing:
		query = `UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`
		args = []any{status, now, id}
	default:
		query = `UPDATE jobs SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`
		args = []any{status, now, nullableString(errMsg), id}
	}
	query += ` AND status IN (?` + strings.Repeat(", ?", len(from)-1) + `)`
	for _, f := range from {
		args = append(args, f)
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

// FailInterrupted marks pending and processing jobs from a previous daemon
// run as failed and returns them so their source files can be removed.
func (s *Store) FailInterrupted(ctx context.Context) ([]*Job, error) {
	jobs, err := s.ListJobs(ctx, StatusPending, StatusProcessing)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	if _, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, error_message = ? WHERE status IN (?, ?)`,
		StatusFailed, s.timestamp(), InterruptedReason, StatusPending, StatusProcessing,
	); err != nil {
		return nil, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	for _, job := range jobs {
		job.Status = StatusFailed
		job.ErrorMessage = InterruptedReason
	}
	return jobs, nil
}
