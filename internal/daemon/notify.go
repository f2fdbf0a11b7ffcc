package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/jobqueue"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/store"
)

// notifyingRunner publishes a notification once a job reaches a terminal
// state.
type notifyingRunner struct {
	inner    jobqueue.Runner
	store    *store.Store
	notifier notifications.Service
	logger   *slog.Logger
}

func (r notifyingRunner) Run(ctx context.Context, jobID, sourcePath, modelSize string) error {
	runErr := r.inner.Run(ctx, jobID, sourcePath, modelSize)

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	job, err := r.store.GetJob(notifyCtx, jobID)
	if err != nil {
		return runErr
	}
	var event notifications.Event
	payload := notifications.Payload{
		"filename": job.Filename,
		"model":    job.ModelSize,
	}
	switch job.Status {
	case store.StatusCompleted:
		event = notifications.EventJobCompleted
		if job.DurationSeconds > 0 {
			payload["duration"] = formatClock(job.DurationSeconds)
		}
	case store.StatusFailed:
		event = notifications.EventJobFailed
		payload["error"] = job.ErrorMessage
	default:
		return runErr
	}
	if err := r.notifier.Publish(notifyCtx, event, payload); err != nil {
		logging.WarnWithContext(r.logger, "job notification failed", "notification_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job outcome was not announced"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
	return runErr
}

func formatClock(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
