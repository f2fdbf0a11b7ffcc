package api

import (
	"testing"
	"time"

	"scribe/internal/jobqueue"
	"scribe/internal/store"
)

func TestFromJobFormatsTimesAndOmitsTextByDefault(t *testing.T) {
	started := time.Date(2026, 3, 4, 10, 0, 0, 0, time.FixedZone("X", 3600))
	job := &store.Job{
		ID:         "abc",
		Filename:   "meeting.m4a",
		Status:     store.StatusCompleted,
		ResultText: "hello",
		CreatedAt:  time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC),
		StartedAt:  &started,
	}

	dto := FromJob(job, false)
	if dto.Text != "" {
		t.Fatalf("expected text omitted, got %q", dto.Text)
	}
	if dto.Status != "completed" {
		t.Fatalf("unexpected status %q", dto.Status)
	}
	if dto.CreatedAt != "2026-03-04T08:30:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.StartedAt != "2026-03-04T09:00:00.000Z" {
		t.Fatalf("expected startedAt normalized to UTC, got %q", dto.StartedAt)
	}
	if dto.CompletedAt != "" {
		t.Fatalf("expected empty completedAt, got %q", dto.CompletedAt)
	}

	if withText := FromJob(job, true); withText.Text != "hello" {
		t.Fatalf("expected text included, got %q", withText.Text)
	}
}

func TestFromJobNil(t *testing.T) {
	if dto := FromJob(nil, true); dto.ID != "" {
		t.Fatalf("expected zero job, got %+v", dto)
	}
}

func TestJobCountsFillsMissingStatuses(t *testing.T) {
	counts := JobCounts(map[store.Status]int{store.StatusPending: 2})
	if len(counts) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(counts))
	}
	if counts["pending"] != 2 || counts["failed"] != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestFromQueueStatus(t *testing.T) {
	status := jobqueue.Status{
		Waiting:             1,
		CurrentlyProcessing: 2,
		MaxConcurrent:       2,
		Next:                []jobqueue.Entry{{JobID: "j1", ModelSize: "base", EnqueuedAt: time.Unix(0, 0)}},
	}
	dto := FromQueueStatus(status)
	if dto.Waiting != 1 || dto.CurrentlyProcessing != 2 || dto.MaxConcurrent != 2 {
		t.Fatalf("unexpected counts %+v", dto)
	}
	if len(dto.Next) != 1 || dto.Next[0].JobID != "j1" || dto.Next[0].EnqueuedAt != "1970-01-01T00:00:00.000Z" {
		t.Fatalf("unexpected preview %+v", dto.Next)
	}
}
