package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/engine"
	"scribe/internal/fileutil"
	"scribe/internal/jobqueue"
	"scribe/internal/logging"
	"scribe/internal/media/audio"
	"scribe/internal/media/ffprobe"
	"scribe/internal/notifications"
	"scribe/internal/progress"
	"scribe/internal/services"
	"scribe/internal/staging"
	"scribe/internal/store"
	"scribe/internal/transcription"
)

var (
	// ErrJobActive is returned when deleting a job that is being transcribed.
	ErrJobActive = errors.New("job is processing")
	// ErrTranscriptUnavailable is returned when a transcript is requested
	// before the job completed.
	ErrTranscriptUnavailable = errors.New("transcript not available")
)

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	runner   jobqueue.Runner
	notifier notifications.Service
}

// WithRunner replaces the transcription orchestrator that processes queued
// jobs.
func WithRunner(runner jobqueue.Runner) Option {
	return func(o *options) { o.runner = runner }
}

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) { o.notifier = notifier }
}

// Daemon coordinates the job queue, transcription pipeline, upload sweep and
// HTTP API, and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	files     *staging.FileStore
	publisher *progress.Publisher
	queue     *jobqueue.Queue
	sweeper   *staging.Sweeper
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	publisher := progress.NewPublisher(cfg.Progress.BufferSize, logger)
	files := staging.NewFileStore(cfg.Paths.UploadDir, logger)
	runner := o.runner
	if runner == nil {
		runner = transcription.New(transcription.Dependencies{
			Prober:    ffprobe.New(cfg.FFprobeBinary()),
			Extractor: audio.NewExtractor(cfg.FFmpegBinary()),
			Chunker:   audio.NewChunker(cfg.FFmpegBinary(), ""),
			Engine:    engine.New(cfg, engine.WithLogger(logger)),
			Store:     st,
			Files:     files,
			Publisher: publisher,
		}, transcription.SettingsFromConfig(cfg), transcription.WithLogger(logger))
	}
	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	runner = notifyingRunner{
		inner:    runner,
		store:    st,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		files:     files,
		publisher: publisher,
		queue:     jobqueue.New(runner, publisher, cfg.Queue.MaxConcurrent, logger),
		sweeper:   staging.NewSweeper(files, st, cfg.CleanupInterval(), cfg.CleanupMaxAge(), logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, fails jobs orphaned by a previous run,
// starts the queue and the upload sweeper, and opens the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	d.failInterrupted(ctx)

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.queue.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start job queue: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.queue.Stop()
		d.abortStart()
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweeper.SweepOnce(d.ctx)
		d.sweeper.Run(d.ctx)
	}()

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("max_concurrent", d.queue.Status().MaxConcurrent),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) failInterrupted(ctx context.Context) {
	jobs, err := d.store.FailInterrupted(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to mark interrupted jobs", "interrupted_jobs_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "jobs from the previous run stay pending"),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		return
	}
	for _, job := range jobs {
		if err := d.files.DeleteFile(job.SourcePath); err != nil {
			d.logger.Warn("remove interrupted job file failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
		}
	}
	if len(jobs) > 0 {
		d.logger.Info("interrupted jobs marked failed", logging.Int("count", len(jobs)))
	}
}

// Stop cancels in-flight jobs, stops background work and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.queue.Stop()
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddress returns the bound HTTP address, or "" when the API is disabled
// or not started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Submit validates the model, copies the file into the upload directory,
// records the job and queues it.
func (d *Daemon) Submit(ctx context.Context, path, model string) (api.SubmitResponse, error) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		model = d.cfg.Transcription.DefaultModel
	}
	if !d.cfg.ValidModel(model) {
		return api.SubmitResponse{}, services.Wrap(services.ErrValidation, "submit", "validate model",
			fmt.Sprintf("unsupported model %q", model), nil)
	}
	if !d.running.Load() {
		return api.SubmitResponse{}, jobqueue.ErrStopped
	}

	ingested, err := d.files.Ingest(path)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	job, err := d.store.CreateJob(ctx, store.NewJob{
		Filename:     ingested.Filename,
		SourcePath:   ingested.Path,
		OriginalSize: ingested.Size,
		ModelSize:    model,
	})
	if err != nil {
		_ = d.files.DeleteFile(ingested.Path)
		return api.SubmitResponse{}, err
	}

	position, err := d.queue.Submit(job.ID, job.SourcePath, job.ModelSize)
	if err != nil {
		_ = d.store.DeleteJob(context.WithoutCancel(ctx), job.ID)
		_ = d.files.DeleteFile(ingested.Path)
		return api.SubmitResponse{}, err
	}
	logging.WithContext(ctx, d.logger).Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("filename", job.Filename),
		logging.String("model", model),
		logging.Int("position", position),
	)
	dto := api.FromJob(job, false)
	dto.QueuePosition = d.queue.Position(job.ID)
	return api.SubmitResponse{Job: dto, Position: position}, nil
}

// Job returns one job with its transcript and current queue position.
func (d *Daemon) Job(ctx context.Context, id string) (api.Job, error) {
	job, err := d.store.GetJob(ctx, strings.TrimSpace(id))
	if err != nil {
		return api.Job{}, err
	}
	dto := api.FromJob(job, true)
	if job.Status == store.StatusPending {
		dto.QueuePosition = d.queue.Position(job.ID)
	}
	return dto, nil
}

// ListJobs returns jobs filtered by optional statuses, newest first.
func (d *Daemon) ListJobs(ctx context.Context, statuses []store.Status) ([]api.Job, error) {
	jobs, err := d.store.ListJobs(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	out := api.FromJobs(jobs)
	for i := range out {
		if out[i].Status == string(store.StatusPending) {
			out[i].QueuePosition = d.queue.Position(out[i].ID)
		}
	}
	return out, nil
}

// Transcript returns the finished text of a completed job together with a
// download filename derived from the uploaded name.
func (d *Daemon) Transcript(ctx context.Context, id string) (string, string, error) {
	job, err := d.store.GetJob(ctx, strings.TrimSpace(id))
	if err != nil {
		return "", "", err
	}
	if job.Status != store.StatusCompleted {
		return "", "", fmt.Errorf("%w: job is %s", ErrTranscriptUnavailable, job.Status)
	}
	return job.ResultText, transcriptFilename(job.Filename), nil
}

// DeleteJob removes a job record and its files. Waiting jobs are pulled out
// of the queue first; processing jobs cannot be deleted.
func (d *Daemon) DeleteJob(ctx context.Context, id string) error {
	job, err := d.store.GetJob(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	switch job.Status {
	case store.StatusProcessing:
		return ErrJobActive
	case store.StatusPending:
		if !d.queue.Remove(job.ID) && d.running.Load() {
			// Dequeued between the lookup and the removal.
			return ErrJobActive
		}
	}
	if err := d.files.DeleteFile(job.SourcePath); err != nil {
		d.logger.Warn("remove job file failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
	if err := d.store.DeleteJob(ctx, job.ID); err != nil {
		return err
	}
	d.publisher.Close(job.ID)
	d.logger.Info("job deleted", logging.String(logging.FieldJobID, job.ID))
	return nil
}

// QueueStatus reports admission state.
func (d *Daemon) QueueStatus() api.QueueStatus {
	return api.FromQueueStatus(d.queue.Status())
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		UploadDir:    d.files.Dir(),
		Queue:        d.QueueStatus(),
		Dependencies: api.FromDependencies(deps.CheckSystem(d.cfg)),
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	status.JobCounts = api.JobCounts(stats)
	return status
}

func transcriptFilename(name string) string {
	base := fileutil.SanitizeFileName(name)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "transcript"
	}
	return base + ".txt"
}
