package store

import (
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// InterruptedReason is the error message set on jobs left unfinished by a
// previous daemon run. Queue state is in-memory only, so they cannot resume.
const InterruptedReason = "Daemon restarted before the job finished"

// ErrNotFound is returned when a job id has no record.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned when a status update would violate the
// pending → processing → completed|failed lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// allowedFrom lists the predecessors of each status. A pending job may fail
// directly when it could not be started.
var allowedFrom = map[Status][]Status{
	StatusProcessing: {StatusPending},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusPending, StatusProcessing},
}

// ParseStatus normalizes user input into a Status.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return s, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the status is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one submitted transcription request and its lifecycle record.
type Job struct {
	ID                    string
	Filename              string
	SourcePath            string
	OriginalSize          int64
	ModelSize             string
	Status                Status
	DurationSeconds       float64
	ResultText            string
	ProcessingTimeSeconds float64
	ErrorMessage          string
	CreatedAt             time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
	ExpiresAt             time.Time
}

// NewJob carries the fields supplied at submission.
type NewJob struct {
	Filename     string
	SourcePath   string
	OriginalSize int64
	ModelSize    string
}
