package staging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/staging"
	"scribe/internal/store"
	"scribe/internal/testsupport"
)

type fakeJobs struct {
	active    []string
	activeErr error
	expired   []*store.Job
	deleted   int64
}

func (f *fakeJobs) ListActiveSourcePaths(context.Context) ([]string, error) {
	return f.active, f.activeErr
}

func (f *fakeJobs) ExpiredJobs(context.Context) ([]*store.Job, error) { return f.expired, nil }

func (f *fakeJobs) DeleteExpired(context.Context) (int64, error) {
	f.deleted = int64(len(f.expired))
	return f.deleted, nil
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	testsupport.WriteFile(t, path, 16)
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCleanOldSkipsActiveAndRecent(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	active := filepath.Join(dir, "active.mp4")
	recent := filepath.Join(dir, "recent.mp4")
	writeAged(t, old, 48*time.Hour)
	writeAged(t, active, 48*time.Hour)
	writeAged(t, recent, time.Hour)
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	files := staging.NewFileStore(dir, logging.NewNop())
	result, err := files.CleanOld(context.Background(), 24*time.Hour, &fakeJobs{active: []string{active}})
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !slices.Equal(result.Removed, []string{old}) {
		t.Fatalf("removed = %v", result.Removed)
	}
	if !slices.Equal(result.Skipped, []string{active}) {
		t.Fatalf("skipped = %v", result.Skipped)
	}
	if exists(old) || !exists(active) || !exists(recent) {
		t.Fatal("unexpected files on disk after sweep")
	}
}

func TestCleanOldAbortsWhenActiveLookupFails(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	writeAged(t, old, 48*time.Hour)

	files := staging.NewFileStore(dir, logging.NewNop())
	_, err := files.CleanOld(context.Background(), time.Hour, &fakeJobs{activeErr: errors.New("database locked")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !exists(old) {
		t.Fatal("sweep must not delete anything when the active list is unavailable")
	}
}

func TestPurgeExpiredRemovesFilesAndRecords(t *testing.T) {
	dir := t.TempDir()
	leftover := filepath.Join(dir, "leftover.wav")
	testsupport.WriteFile(t, leftover, 8)

	jobs := &fakeJobs{expired: []*store.Job{
		{ID: "a", SourcePath: leftover, Status: store.StatusFailed},
		{ID: "b", SourcePath: filepath.Join(dir, "already-gone.wav"), Status: store.StatusCompleted},
	}}
	files := staging.NewFileStore(dir, logging.NewNop())
	n, err := files.PurgeExpired(context.Background(), jobs)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 || exists(leftover) {
		t.Fatalf("purged %d, leftover exists=%v", n, exists(leftover))
	}
}

func TestIngestCopiesWithUniqueName(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Meeting Notes.MP4")
	testsupport.WriteFile(t, src, 1024)

	uploads := filepath.Join(t.TempDir(), "uploads")
	files := staging.NewFileStore(uploads, logging.NewNop())
	first, err := files.Ingest(src)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	second, err := files.Ingest(src)
	if err != nil {
		t.Fatalf("ingest again: %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("ingested files must not collide")
	}
	if first.Filename != "Meeting Notes.MP4" || first.Size != 1024 {
		t.Fatalf("unexpected ingest result %+v", first)
	}
	if filepath.Dir(first.Path) != uploads || !strings.HasSuffix(first.Path, ".mp4") {
		t.Fatalf("path = %s", first.Path)
	}
	if !files.FileExists(first.Path) || !files.FileExists(src) {
		t.Fatal("both source and copy should exist")
	}

	if err := files.DeleteFile(first.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := files.DeleteFile(first.Path); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestIngestMissingSource(t *testing.T) {
	files := staging.NewFileStore(t.TempDir(), logging.NewNop())
	_, err := files.Ingest(filepath.Join(t.TempDir(), "nope.mp3"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
