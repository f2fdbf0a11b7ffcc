package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a transcription job in a transport-friendly format.
type Job struct {
	ID                    string  `json:"id"`
	Filename              string  `json:"filename"`
	OriginalSize          int64   `json:"originalSize"`
	ModelSize             string  `json:"modelSize"`
	Status                string  `json:"status"`
	DurationSeconds       float64 `json:"durationSeconds,omitempty"`
	ProcessingTimeSeconds float64 `json:"processingTimeSeconds,omitempty"`
	ErrorMessage          string  `json:"errorMessage,omitempty"`
	Text                  string  `json:"text,omitempty"`
	QueuePosition         int     `json:"queuePosition,omitempty"`
	CreatedAt             string  `json:"createdAt,omitempty"`
	StartedAt             string  `json:"startedAt,omitempty"`
	CompletedAt           string  `json:"completedAt,omitempty"`
	ExpiresAt             string  `json:"expiresAt,omitempty"`
}

// QueueEntry is a waiting job in the queue preview.
type QueueEntry struct {
	JobID      string `json:"jobId"`
	ModelSize  string `json:"modelSize"`
	EnqueuedAt string `json:"enqueuedAt"`
}

// QueueStatus summarizes admission state.
type QueueStatus struct {
	Waiting             int          `json:"waiting"`
	CurrentlyProcessing int          `json:"currentlyProcessing"`
	MaxConcurrent       int          `json:"maxConcurrent"`
	Next                []QueueEntry `json:"next"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	UploadDir    string             `json:"uploadDir"`
	JobCounts    map[string]int     `json:"jobCounts"`
	Queue        QueueStatus        `json:"queue"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// SubmitResponse reports the created job and its queue position.
type SubmitResponse struct {
	Job      Job `json:"job"`
	Position int `json:"position"`
}
