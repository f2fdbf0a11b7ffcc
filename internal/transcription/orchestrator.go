package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/media/audio"
	"scribe/internal/progress"
	"scribe/internal/services"
	"scribe/internal/store"
)

// Prober reads media duration.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Extractor turns any media file into audio.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, bool, error)
}

// Chunker splits audio into fixed-length pieces.
type Chunker interface {
	Split(ctx context.Context, path string, segmentSeconds int, totalSeconds float64) (string, []audio.Chunk, error)
}

// Engine runs one transcription process.
type Engine interface {
	Run(ctx context.Context, req engine.Request) (engine.Result, error)
}

// JobStore persists job state.
type JobStore interface {
	UpdateStatus(ctx context.Context, id string, status store.Status, errMsg string) error
	UpdateDuration(ctx context.Context, id string, seconds float64) error
	UpdateResult(ctx context.Context, id, text string, processingSeconds float64) error
}

// Files removes job files.
type Files interface {
	DeleteFile(path string) error
}

// Publisher is the outward progress stream.
type Publisher interface {
	Publish(jobID string, percent int, status string, opts ...progress.Option)
	Close(jobID string)
}

// Settings are the strategy knobs taken from configuration.
type Settings struct {
	ChunkThresholdSeconds float64
	ChunkSeconds          int
	MaxRetries            int
	RetryBackoff          time.Duration
	ChunkCooldown         time.Duration
	CloseGrace            time.Duration
	Timeout               TimeoutPolicy
}

// SettingsFromConfig extracts orchestrator settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	t := cfg.Transcription
	return Settings{
		ChunkThresholdSeconds: float64(t.ChunkThresholdSeconds),
		ChunkSeconds:          t.ChunkSeconds,
		MaxRetries:            t.MaxRetries,
		RetryBackoff:          time.Duration(t.RetryBackoffSeconds) * time.Second,
		ChunkCooldown:         time.Duration(t.ChunkCooldownSeconds) * time.Second,
		CloseGrace:            time.Duration(t.CloseGraceSeconds) * time.Second,
		Timeout: TimeoutPolicy{
			Base:           time.Duration(t.TimeoutBaseSeconds) * time.Second,
			Max:            time.Duration(t.TimeoutMaxSeconds) * time.Second,
			RealtimeFactor: t.TimeoutRealtimeFactor,
			Per100MB:       time.Duration(t.TimeoutPer100MBSeconds) * time.Second,
		},
	}
}

// Dependencies bundles the collaborators of an Orchestrator.
type Dependencies struct {
	Prober    Prober
	Extractor Extractor
	Chunker   Chunker
	Engine    Engine
	Store     JobStore
	Files     Files
	Publisher Publisher
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "transcription")
		}
	}
}

// WithSleep replaces the context-aware sleep used for backoff and cooldown.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithAfterFunc replaces the timer used for delayed stream close.
func WithAfterFunc(after func(d time.Duration, f func())) Option {
	return func(o *Orchestrator) {
		if after != nil {
			o.after = after
		}
	}
}

// Orchestrator runs transcription jobs.
type Orchestrator struct {
	deps     Dependencies
	settings Settings
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	after    func(d time.Duration, f func())
	now      func() time.Time
}

// New constructs an Orchestrator.
func New(deps Dependencies, settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:     deps,
		settings: settings,
		logger:   logging.NewComponentLogger(nil, "transcription"),
		sleep:    sleepContext,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// outcome is what a strategy produces for finalization.
type outcome struct {
	text              string
	processingSeconds float64
}

// Run processes one job to a terminal state. The returned error mirrors the
// job failure; the job record already reflects it.
func (o *Orchestrator) Run(ctx context.Context, jobID, filePath, modelSize string) error {
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()

	logger.Info("transcription started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("model", modelSize),
		logging.String("source_file", filePath),
	)
	if err := o.deps.Store.UpdateStatus(ctx, jobID, store.StatusProcessing, ""); err != nil {
		return o.fail(ctx, jobID, filePath, services.Wrap(services.ErrQueueInternal, "queued", "mark processing", "", err))
	}
	o.deps.Publisher.Publish(jobID, 5, "starting processing")

	probeCtx := services.WithStage(ctx, "probing")
	duration, err := o.deps.Prober.Duration(probeCtx, filePath)
	if err != nil {
		return o.fail(ctx, jobID, filePath, err)
	}
	if err := o.deps.Store.UpdateDuration(ctx, jobID, duration); err != nil {
		logger.Warn("record duration failed", logging.Error(err))
	}

	var result outcome
	if duration > o.settings.ChunkThresholdSeconds {
		logger.Info("long media; using chunked strategy",
			logging.Float64("duration_seconds", duration),
			logging.Float64("threshold_seconds", o.settings.ChunkThresholdSeconds),
		)
		result, err = o.runChunked(services.WithStage(ctx, "chunking"), jobID, filePath, modelSize, duration)
	} else {
		logger.Info("using direct strategy", logging.Float64("duration_seconds", duration))
		result, err = o.runDirect(services.WithStage(ctx, "direct"), jobID, filePath, modelSize, duration)
	}
	if err != nil {
		return o.fail(ctx, jobID, filePath, err)
	}
	if result.processingSeconds <= 0 {
		result.processingSeconds = o.now().Sub(started).Seconds()
	}
	return o.finish(ctx, jobID, filePath, result)
}

func (o *Orchestrator) finish(ctx context.Context, jobID, filePath string, result outcome) error {
	logger := logging.WithContext(services.WithStage(ctx, "finalizing"), o.logger)
	o.deps.Publisher.Publish(jobID, 95, "saving result")

	if err := o.deps.Store.UpdateResult(ctx, jobID, result.text, result.processingSeconds); err != nil {
		return o.fail(ctx, jobID, filePath, services.Wrap(services.ErrQueueInternal, "finalizing", "persist result", "", err))
	}
	if err := o.deps.Store.UpdateStatus(ctx, jobID, store.StatusCompleted, ""); err != nil {
		return o.fail(ctx, jobID, filePath, services.Wrap(services.ErrQueueInternal, "finalizing", "mark completed", "", err))
	}
	o.deps.Publisher.Publish(jobID, 100, "transcription complete")
	logger.Info("transcription completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("text_length", len(result.text)),
		logging.Float64("processing_seconds", result.processingSeconds),
	)

	o.removeSource(logger, filePath)
	o.after(o.settings.CloseGrace, func() { o.deps.Publisher.Close(jobID) })
	return nil
}

// fail records err on the job, notifies the listener and releases the
// source file. Persistence problems are logged; err is returned as is.
func (o *Orchestrator) fail(ctx context.Context, jobID, filePath string, err error) error {
	logger := logging.WithContext(ctx, o.logger)
	message := failureMessage(err)

	logging.ErrorWithContext(logger, "transcription failed", "job_failed",
		logging.Error(err),
		logging.String("category", services.Category(err)),
		logging.String(logging.FieldErrorHint, message),
	)
	o.deps.Publisher.Publish(jobID, 0, "error: "+message)

	// Store the failure from a context that survives shutdown cancellation so
	// the record does not stay stuck in processing.
	persistCtx := context.WithoutCancel(ctx)
	if uerr := o.deps.Store.UpdateStatus(persistCtx, jobID, store.StatusFailed, message); uerr != nil {
		logging.WarnWithContext(logger, "record failure failed", "job_fail_persist",
			logging.Error(uerr),
			logging.String(logging.FieldImpact, "job may remain in its previous status"),
		)
	}
	o.removeSource(logger, filePath)
	o.deps.Publisher.Close(jobID)
	return err
}

func (o *Orchestrator) removeSource(logger *slog.Logger, filePath string) {
	if filePath == "" {
		return
	}
	if err := o.deps.Files.DeleteFile(filePath); err != nil {
		logging.WarnWithContext(logger, "delete source file failed", "source_cleanup_failed",
			logging.Error(err),
			logging.String("source_file", filePath),
			logging.String(logging.FieldImpact, "file will be removed by the upload sweep"),
		)
	}
}

// chunkError names the chunk that failed.
type chunkError struct {
	label string
	err   error
}

func (e *chunkError) Error() string { return fmt.Sprintf("chunk %s failed: %v", e.label, e.err) }

func (e *chunkError) Unwrap() error { return e.err }

func failureMessage(err error) string {
	msg := services.FailureMessage(err)
	var ce *chunkError
	if errors.As(err, &ce) {
		return fmt.Sprintf("chunk %s failed: %s", ce.label, msg)
	}
	return msg
}
