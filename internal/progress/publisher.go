package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/logging"
)

// Event is one progress update. Optional fields are omitted when unset.
type Event struct {
	JobID         string    `json:"-"`
	Progress      int       `json:"progress"`
	Status        string    `json:"status"`
	EstimatedTime *int      `json:"estimatedTime,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	QueuePosition *int      `json:"queuePosition,omitempty"`
	QueueLength   *int      `json:"queueLength,omitempty"`
	IsQueued      *bool     `json:"isQueued,omitempty"`
}

// Option decorates an event before delivery.
type Option func(*Event)

// WithEstimate attaches a remaining-time estimate in seconds.
func WithEstimate(seconds int) Option {
	return func(e *Event) { e.EstimatedTime = &seconds }
}

// WithQueue attaches queue placement. A positive position means still waiting.
func WithQueue(position, length int) Option {
	return func(e *Event) {
		queued := position > 0
		e.QueuePosition = &position
		e.QueueLength = &length
		e.IsQueued = &queued
	}
}

// Subscription receives events for one job until closed.
type Subscription struct {
	JobID  string
	Events <-chan Event

	ch        chan Event
	publisher *Publisher
	once      sync.Once
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.publisher.detach(s)
}

func (s *Subscription) shut() {
	s.once.Do(func() { close(s.ch) })
}

// Publisher is the listener registry.
type Publisher struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	now    func() time.Time
	logger *slog.Logger
}

// NewPublisher returns a publisher whose subscriptions buffer up to buffer
// events.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 32
	}
	return &Publisher{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "progress"),
	}
}

// Subscribe attaches a listener for jobID, closing any previous one.
func (p *Publisher) Subscribe(jobID string) *Subscription {
	ch := make(chan Event, p.buffer)
	sub := &Subscription{JobID: jobID, Events: ch, ch: ch, publisher: p}

	p.mu.Lock()
	prev := p.subs[jobID]
	p.subs[jobID] = sub
	p.mu.Unlock()

	if prev != nil {
		prev.shut()
		p.logger.Debug("progress listener replaced", logging.String(logging.FieldJobID, jobID))
	}
	return sub
}

func (p *Publisher) detach(sub *Subscription) {
	p.mu.Lock()
	if p.subs[sub.JobID] == sub {
		delete(p.subs, sub.JobID)
	}
	p.mu.Unlock()
	sub.shut()
}

// Publish delivers an update to the job's listener, if any. Progress is
// clamped to [0,100].
func (p *Publisher) Publish(jobID string, progress int, status string, opts ...Option) {
	evt := Event{
		JobID:     jobID,
		Progress:  min(100, max(0, progress)),
		Status:    status,
		Timestamp: p.now().UTC(),
	}
	for _, opt := range opts {
		opt(&evt)
	}
	p.deliver(evt)
}

// PublishQueue announces a queue position. Position 0 means processing is
// starting.
func (p *Publisher) PublishQueue(jobID string, position, length int) {
	status := "starting processing"
	if position > 0 {
		status = fmt.Sprintf("waiting in queue - position %d of %d", position, length)
	}
	p.Publish(jobID, 0, status, WithQueue(position, length))
}

func (p *Publisher) deliver(evt Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := p.subs[evt.JobID]
	if sub == nil {
		return
	}
	select {
	case sub.ch <- evt:
	default:
		p.logger.Debug("progress event dropped; listener is behind",
			logging.String(logging.FieldJobID, evt.JobID),
			logging.Int("progress", evt.Progress),
		)
	}
}

// Close ends the job's stream.
func (p *Publisher) Close(jobID string) {
	p.mu.Lock()
	sub := p.subs[jobID]
	delete(p.subs, jobID)
	p.mu.Unlock()
	if sub != nil {
		sub.shut()
	}
}

// Listening reports whether jobID has a live listener.
func (p *Publisher) Listening(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs[jobID] != nil
}
