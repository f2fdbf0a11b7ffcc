package api

import (
	"time"

	"scribe/internal/deps"
	"scribe/internal/jobqueue"
	"scribe/internal/store"
)

// FromJob converts a job record to its API representation. The transcript is
// only included when withText is set.
func FromJob(job *store.Job, withText bool) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:                    job.ID,
		Filename:              job.Filename,
		OriginalSize:          job.OriginalSize,
		ModelSize:             job.ModelSize,
		Status:                string(job.Status),
		DurationSeconds:       job.DurationSeconds,
		ProcessingTimeSeconds: job.ProcessingTimeSeconds,
		ErrorMessage:          job.ErrorMessage,
		CreatedAt:             formatTime(job.CreatedAt),
		ExpiresAt:             formatTime(job.ExpiresAt),
	}
	if withText {
		dto.Text = job.ResultText
	}
	if job.StartedAt != nil {
		dto.StartedAt = formatTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = formatTime(*job.CompletedAt)
	}
	return dto
}

// FromJobs converts a slice of job records, omitting transcripts.
func FromJobs(jobs []*store.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job, false))
	}
	return out
}

// FromQueueStatus converts the queue summary.
func FromQueueStatus(status jobqueue.Status) QueueStatus {
	next := make([]QueueEntry, 0, len(status.Next))
	for _, entry := range status.Next {
		next = append(next, QueueEntry{
			JobID:      entry.JobID,
			ModelSize:  entry.ModelSize,
			EnqueuedAt: formatTime(entry.EnqueuedAt),
		})
	}
	return QueueStatus{
		Waiting:             status.Waiting,
		CurrentlyProcessing: status.CurrentlyProcessing,
		MaxConcurrent:       status.MaxConcurrent,
		Next:                next,
	}
}

// FromDependencies converts dependency check results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// JobCounts flattens store stats into string keys, including zero counts for
// every status.
func JobCounts(stats map[store.Status]int) map[string]int {
	counts := map[string]int{
		string(store.StatusPending):    0,
		string(store.StatusProcessing): 0,
		string(store.StatusCompleted):  0,
		string(store.StatusFailed):     0,
	}
	for status, n := range stats {
		counts[string(status)] = n
	}
	return counts
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
