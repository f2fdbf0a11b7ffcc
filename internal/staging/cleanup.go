package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/logging"
	"scribe/internal/store"
)

// ActiveLister lists source files that must survive a sweep.
type ActiveLister interface {
	ListActiveSourcePaths(ctx context.Context) ([]string, error)
}

// CleanResult reports what a sweep did.
type CleanResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanOld removes regular files in the upload directory older than maxAge,
// skipping files that belong to pending or processing jobs. When the active
// list cannot be loaded nothing is deleted and the error is returned.
func (f *FileStore) CleanOld(ctx context.Context, maxAge time.Duration, active ActiveLister) (CleanResult, error) {
	var result CleanResult

	paths, err := active.ListActiveSourcePaths(ctx)
	if err != nil {
		logging.WarnWithContext(f.logger, "active job lookup failed; skipping upload sweep", "upload_sweep_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database"),
			logging.String(logging.FieldImpact, "old uploads are kept until the next sweep"),
		)
		return result, fmt.Errorf("list active source paths: %w", err)
	}
	protected := make(map[string]struct{}, len(paths)*2)
	for _, p := range paths {
		protected[filepath.Clean(p)] = struct{}{}
		protected[filepath.Base(p)] = struct{}{}
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("read upload dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		_, byPath := protected[filepath.Clean(path)]
		_, byName := protected[entry.Name()]
		if byPath || byName {
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logging.WarnWithContext(f.logger, "failed to remove old upload", "upload_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check upload_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		f.logger.Info("removed old upload",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime()).Round(time.Minute)),
			logging.String(logging.FieldEventType, "upload_cleanup"),
		)
	}
	if len(result.Removed) > 0 || len(result.Skipped) > 0 {
		f.logger.Info("upload sweep finished",
			logging.Int("removed", len(result.Removed)),
			logging.Int("skipped_active", len(result.Skipped)),
		)
	}
	return result, nil
}

// ExpiryStore exposes expired job records.
type ExpiryStore interface {
	ExpiredJobs(ctx context.Context) ([]*store.Job, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// PurgeExpired deletes leftover files of expired terminal jobs and then
// their records. It returns the number of records removed.
func (f *FileStore) PurgeExpired(ctx context.Context, jobs ExpiryStore) (int64, error) {
	expired, err := jobs.ExpiredJobs(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range expired {
		if strings.TrimSpace(job.SourcePath) == "" {
			continue
		}
		if err := f.DeleteFile(job.SourcePath); err != nil {
			f.logger.Warn("remove expired job file failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
		}
	}
	n, err := jobs.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		f.logger.Info("expired jobs purged", logging.Int64("count", n))
	}
	return n, nil
}
