package ipc

import "scribe/internal/api"

// SubmitRequest queues a local file for transcription.
type SubmitRequest struct {
	Path  string `json:"path"`
	Model string `json:"model"`
}

// SubmitResponse reports the created job.
type SubmitResponse = api.SubmitResponse

// StatusRequest asks for daemon status.
type StatusRequest struct{}

// StatusResponse carries daemon status.
type StatusResponse = api.DaemonStatus

// QueueRequest asks for the admission queue summary.
type QueueRequest struct{}

// QueueResponse carries the queue summary.
type QueueResponse = api.QueueStatus

// ListRequest filters the job list by status.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse carries jobs, newest first.
type ListResponse = api.JobListResponse

// ShowRequest looks up one job.
type ShowRequest struct {
	ID string `json:"id"`
}

// ShowResponse carries one job including its transcript.
type ShowResponse = api.JobResponse

// TranscriptRequest asks for a completed job's text.
type TranscriptRequest struct {
	ID string `json:"id"`
}

// TranscriptResponse carries the transcript and a suggested filename.
type TranscriptResponse struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// DeleteRequest removes a job and its files.
type DeleteRequest struct {
	ID string `json:"id"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
