package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"scribe/internal/logging"
	"scribe/internal/services"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("job queue stopped")

// Runner processes one job. It owns the job's terminal state.
type Runner interface {
	Run(ctx context.Context, jobID, sourcePath, modelSize string) error
}

// Notifier receives queue placement changes. Position 0 means the job has
// started.
type Notifier interface {
	PublishQueue(jobID string, position, length int)
}

// Entry is a waiting job.
type Entry struct {
	JobID      string    `json:"job_id"`
	SourcePath string    `json:"-"`
	ModelSize  string    `json:"model_size"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Status summarizes the queue.
type Status struct {
	Waiting             int     `json:"waiting"`
	CurrentlyProcessing int     `json:"currently_processing"`
	MaxConcurrent       int     `json:"max_concurrent"`
	Next                []Entry `json:"next"`
}

const nextPreview = 5

// Queue is the FIFO admission queue.
type Queue struct {
	runner   Runner
	notifier Notifier
	logger   *slog.Logger
	limit    int
	now      func() time.Time

	mu      sync.Mutex
	waiting []Entry
	active  int
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New constructs a queue. maxConcurrent below 1 means 1.
func New(runner Runner, notifier Notifier, maxConcurrent int, logger *slog.Logger) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		runner:   runner,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "queue"),
		limit:    maxConcurrent,
		now:      time.Now,
	}
}

// Start binds the context handed to job runs and begins dispatching anything
// already submitted.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return errors.New("job queue already started")
	}
	if q.stopped {
		q.mu.Unlock()
		return ErrStopped
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	q.mu.Unlock()

	q.pump()
	return nil
}

// Stop cancels in-flight runs and waits for them. Waiting entries are
// discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	dropped := len(q.waiting)
	q.waiting = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	if dropped > 0 {
		q.logger.Info("job queue stopped with waiting jobs", logging.Int("dropped", dropped))
	}
}

// Submit appends a job and returns its 1-based position among waiting jobs.
func (q *Queue) Submit(jobID, sourcePath, modelSize string) (int, error) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return 0, ErrStopped
	}
	q.waiting = append(q.waiting, Entry{
		JobID:      jobID,
		SourcePath: sourcePath,
		ModelSize:  modelSize,
		EnqueuedAt: q.now(),
	})
	position := len(q.waiting)
	length := position + q.active
	q.mu.Unlock()

	q.logger.Info("job queued",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("position", position),
		logging.Int("queue_length", length),
	)
	q.notify(jobID, position, length)
	q.pump()
	return position, nil
}

// Remove drops a waiting job. It reports false when the job is not waiting.
func (q *Queue) Remove(jobID string) bool {
	q.mu.Lock()
	idx := slices.IndexFunc(q.waiting, func(e Entry) bool { return e.JobID == jobID })
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.waiting = slices.Delete(q.waiting, idx, idx+1)
	snapshot, length := q.snapshotLocked()
	q.mu.Unlock()

	q.republish(snapshot, length)
	return true
}

// Position returns the 1-based waiting position of jobID, or 0.
func (q *Queue) Position(jobID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.IndexFunc(q.waiting, func(e Entry) bool { return e.JobID == jobID }) + 1
}

// Length counts waiting plus processing jobs.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting) + q.active
}

// Status returns counters and the next few waiting entries.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := slices.Clone(q.waiting[:min(nextPreview, len(q.waiting))])
	return Status{
		Waiting:             len(q.waiting),
		CurrentlyProcessing: q.active,
		MaxConcurrent:       q.limit,
		Next:                next,
	}
}

// pump dispatches waiting jobs while slots are free. It is idempotent and
// safe to call from any goroutine.
func (q *Queue) pump() {
	for {
		q.mu.Lock()
		if !q.started || q.stopped || len(q.waiting) == 0 || q.active >= q.limit {
			q.mu.Unlock()
			return
		}
		entry := q.waiting[0]
		q.waiting = slices.Delete(q.waiting, 0, 1)
		q.active++
		ctx := q.ctx
		q.wg.Add(1)
		snapshot, length := q.snapshotLocked()
		active := q.active
		q.mu.Unlock()

		q.logger.Info("job dequeued",
			logging.String(logging.FieldJobID, entry.JobID),
			logging.Int("slots_used", active),
			logging.Int("max_concurrent", q.limit),
		)
		q.notify(entry.JobID, 0, length)
		q.republish(snapshot, length)
		go q.run(ctx, entry)
	}
}

func (q *Queue) run(ctx context.Context, entry Entry) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		q.active--
		snapshot, length := q.snapshotLocked()
		q.mu.Unlock()
		q.republish(snapshot, length)
		q.pump()
	}()

	jobCtx := services.WithJobID(ctx, entry.JobID)
	logger := logging.WithContext(jobCtx, q.logger)
	if err := q.invoke(jobCtx, entry); err != nil {
		logger.Error("job run returned error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_run_failed"),
			logging.String(logging.FieldErrorHint, "inspect the job error message"),
		)
		return
	}
	logger.Info("job run finished")
}

func (q *Queue) invoke(ctx context.Context, entry Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrQueueInternal, "queue", "run", fmt.Sprintf("panic: %v", r), nil)
			q.logger.Error("job run panicked",
				logging.String(logging.FieldJobID, entry.JobID),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	return q.runner.Run(ctx, entry.JobID, entry.SourcePath, entry.ModelSize)
}

func (q *Queue) snapshotLocked() ([]string, int) {
	ids := make([]string, len(q.waiting))
	for i, e := range q.waiting {
		ids[i] = e.JobID
	}
	return ids, len(q.waiting) + q.active
}

func (q *Queue) republish(ids []string, length int) {
	for i, id := range ids {
		q.notify(id, i+1, length)
	}
}

func (q *Queue) notify(jobID string, position, length int) {
	if q.notifier != nil {
		q.notifier.PublishQueue(jobID, position, length)
	}
}
