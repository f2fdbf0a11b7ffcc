package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateJob inserts a pending job and returns it with its generated id.
func (s *Store) CreateJob(ctx context.Context, in NewJob) (*Job, error) {
	if strings.TrimSpace(in.SourcePath) == "" {
		return nil, errors.New("create job: source path is required")
	}
	if strings.TrimSpace(in.ModelSize) == "" {
		return nil, errors.New("create job: model size is required")
	}
	now := s.now().UTC()
	job := &Job{
		ID:           uuid.NewString(),
		Filename:     in.Filename,
		SourcePath:   in.SourcePath,
		OriginalSize: in.OriginalSize,
		ModelSize:    in.ModelSize,
		Status:       StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.expiry),
	}
	if job.Filename == "" {
		job.Filename = in.SourcePath
	}
	if _, err := s.exec(ctx,
		`INSERT INTO jobs (id, filename, source_path, original_size, model_size, status, created_at, expires_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, job.SourcePath, job.OriginalSize, job.ModelSize, job.Status,
		job.CreatedAt.Format(timeLayout), job.ExpiresAt.Format(timeLayout),
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by id. It returns ErrNotFound when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC`
	return s.queryJobs(ctx, query, args...)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateDuration records the probed media duration.
func (s *Store) UpdateDuration(ctx context.Context, id string, seconds float64) error {
	res, err := s.exec(ctx, `UPDATE jobs SET duration_seconds = ? WHERE id = ?`, seconds, id)
	if err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	return requireRow(res, id)
}

// UpdateResult stores the transcript and processing time of a processing job.
func (s *Store) UpdateResult(ctx context.Context, id, text string, processingSeconds float64) error {
	res, err := s.exec(ctx,
		`UPDATE jobs SET transcription_text = ?, processing_time_seconds = ? WHERE id = ? AND status = ?`,
		text, processingSeconds, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

// DeleteJob removes a job record.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// explainMiss distinguishes a missing job from one in the wrong status after
// a guarded update touched no rows.
func (s *Store) explainMiss(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, job.Status)
}
