package transcription_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/engine"
	"scribe/internal/media/audio"
	"scribe/internal/progress"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/transcription"
)

type fakeProber struct {
	duration float64
	err      error
}

func (p fakeProber) Duration(context.Context, string) (float64, error) { return p.duration, p.err }

type fakeExtractor struct {
	calls int
	out   string
}

func (e *fakeExtractor) Extract(_ context.Context, path string) (string, bool, error) {
	e.calls++
	if e.out == "" {
		return path, false, nil
	}
	if err := os.WriteFile(e.out, []byte("audio"), 0o644); err != nil {
		return "", false, err
	}
	return e.out, true, nil
}

type fakeChunker struct {
	root  string
	count int
	dir   string
}

func (c *fakeChunker) Split(_ context.Context, _ string, _ int, _ float64) (string, []audio.Chunk, error) {
	dir, err := os.MkdirTemp(c.root, "audio_chunks_")
	if err != nil {
		return "", nil, err
	}
	c.dir = dir
	chunks := make([]audio.Chunk, c.count)
	for i := range chunks {
		path := filepath.Join(dir, "chunk_00"+string(rune('0'+i))+".mp3")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			return "", nil, err
		}
		chunks[i] = audio.Chunk{Index: i, Path: path, DurationSeconds: 720}
	}
	return dir, chunks, nil
}

type fakeEngine struct {
	mu       sync.Mutex
	requests []engine.Request
	respond  func(req engine.Request, call int) (engine.Result, error)
}

func (e *fakeEngine) Run(_ context.Context, req engine.Request) (engine.Result, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	call := len(e.requests)
	e.mu.Unlock()
	if req.OnProgress != nil {
		req.OnProgress(50, "halfway")
	}
	return e.respond(req, call)
}

type fakeStore struct {
	statuses []store.Status
	// startErr is returned when the job is moved to processing.
	startErr error
	message  string
	text     string
	seconds  float64
	duration float64
}

func (s *fakeStore) UpdateStatus(_ context.Context, _ string, status store.Status, msg string) error {
	if status == store.StatusProcessing && s.startErr != nil {
		return s.startErr
	}
	s.statuses = append(s.statuses, status)
	s.message = msg
	return nil
}

func (s *fakeStore) UpdateDuration(_ context.Context, _ string, seconds float64) error {
	s.duration = seconds
	return nil
}

func (s *fakeStore) UpdateResult(_ context.Context, _ string, text string, seconds float64) error {
	s.text = text
	s.seconds = seconds
	return nil
}

type fakeFiles struct{ deleted []string }

func (f *fakeFiles) DeleteFile(path string) error {
	f.deleted = append(f.deleted, path)
	return os.Remove(path)
}

type event struct {
	percent int
	status  string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event
	closed int
}

func (p *fakePublisher) Publish(_ string, percent int, status string, _ ...progress.Option) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{percent, status})
}

func (p *fakePublisher) Close(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakePublisher) percents() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.events))
	for i, e := range p.events {
		out[i] = e.percent
	}
	return out
}

type harness struct {
	orch      *transcription.Orchestrator
	engine    *fakeEngine
	extractor *fakeExtractor
	chunker   *fakeChunker
	store     *fakeStore
	files     *fakeFiles
	publisher *fakePublisher
	sleeps    []time.Duration
	graces    []time.Duration
	source    string
}

func newHarness(t *testing.T, duration float64, chunks int, respond func(engine.Request, int) (engine.Result, error)) *harness {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "upload.mp4")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	h := &harness{
		engine:    &fakeEngine{respond: respond},
		extractor: &fakeExtractor{out: filepath.Join(dir, "upload.mp3")},
		chunker:   &fakeChunker{root: dir, count: chunks},
		store:     &fakeStore{},
		files:     &fakeFiles{},
		publisher: &fakePublisher{},
		source:    source,
	}
	settings := transcription.Settings{
		ChunkThresholdSeconds: 2400,
		ChunkSeconds:          720,
		MaxRetries:            2,
		RetryBackoff:          10 * time.Second,
		ChunkCooldown:         15 * time.Second,
		CloseGrace:            2 * time.Second,
		Timeout: transcription.TimeoutPolicy{
			Base: 5 * time.Minute, Max: 2 * time.Hour, RealtimeFactor: 1, Per100MB: 2 * time.Minute,
		},
	}
	h.orch = transcription.New(transcription.Dependencies{
		Prober:    fakeProber{duration: duration},
		Extractor: h.extractor,
		Chunker:   h.chunker,
		Engine:    h.engine,
		Store:     h.store,
		Files:     h.files,
		Publisher: h.publisher,
	}, settings,
		transcription.WithSleep(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
		transcription.WithAfterFunc(func(d time.Duration, f func()) {
			h.graces = append(h.graces, d)
			f()
		}),
	)
	return h
}

func textResult(text string) (engine.Result, error) { return engine.Result{Text: text}, nil }

func oom() (engine.Result, error) {
	return engine.Result{}, services.Wrap(services.ErrOOM, "engine", "chunk", "out of memory", nil)
}

func TestDirectStrategy(t *testing.T) {
	h := newHarness(t, 600, 0, func(engine.Request, int) (engine.Result, error) {
		return engine.Result{Text: "hello world", ProcessingTime: 12}, nil
	})
	if err := h.orch.Run(context.Background(), "job", h.source, "small"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !slices.Equal(h.store.statuses, []store.Status{store.StatusProcessing, store.StatusCompleted}) {
		t.Fatalf("statuses = %v", h.store.statuses)
	}
	if h.store.text != "hello world" || h.store.seconds != 12 || h.store.duration != 600 {
		t.Fatalf("store = %+v", h.store)
	}
	req := h.engine.requests[0]
	if req.Simple || req.ModelSize != "small" || req.Timeout != 15*time.Minute {
		t.Fatalf("request = %+v", req)
	}
	if h.extractor.calls != 0 {
		t.Fatal("direct strategy must not extract audio")
	}
	if _, err := os.Stat(h.source); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("source file should be deleted")
	}
	pcts := h.publisher.percents()
	if pcts[0] != 5 || pcts[len(pcts)-1] != 100 || !slices.Contains(pcts, 95) {
		t.Fatalf("progress = %v", pcts)
	}
	if h.publisher.closed != 1 || len(h.graces) != 1 || h.graces[0] != 2*time.Second {
		t.Fatalf("close: closed=%d graces=%v", h.publisher.closed, h.graces)
	}
}

func TestThresholdBoundaryIsDirect(t *testing.T) {
	h := newHarness(t, 2400, 3, func(engine.Request, int) (engine.Result, error) { return textResult("x") })
	if err := h.orch.Run(context.Background(), "job", h.source, "base"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.engine.requests) != 1 || h.engine.requests[0].Simple {
		t.Fatalf("expected one direct run, got %d", len(h.engine.requests))
	}

	h = newHarness(t, 2400.5, 3, func(engine.Request, int) (engine.Result, error) { return textResult("x") })
	if err := h.orch.Run(context.Background(), "job", h.source, "base"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.engine.requests) != 3 {
		t.Fatalf("expected chunked runs, got %d", len(h.engine.requests))
	}
}

func TestChunkedStrategyAggregatesInOrder(t *testing.T) {
	h := newHarness(t, 3000, 3, func(req engine.Request, _ int) (engine.Result, error) {
		switch {
		case strings.HasSuffix(req.InputPath, "chunk_000.mp3"):
			return textResult("one")
		case strings.HasSuffix(req.InputPath, "chunk_001.mp3"):
			return textResult("two")
		default:
			return textResult("three")
		}
	})
	if err := h.orch.Run(context.Background(), "job", h.source, "medium"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.store.text != "one two three" {
		t.Fatalf("text = %q", h.store.text)
	}
	if len(h.engine.requests) != 3 {
		t.Fatalf("expected 3 engine runs, got %d", len(h.engine.requests))
	}
	for _, req := range h.engine.requests {
		if !req.Simple {
			t.Fatalf("chunk run without simple mode: %+v", req)
		}
		// 720s chunk: base 5m + 12m realtime.
		if req.Timeout != 17*time.Minute {
			t.Fatalf("chunk %s timeout = %s, want 17m", req.Label, req.Timeout)
		}
	}
	if !slices.Equal(h.sleeps, []time.Duration{15 * time.Second, 15 * time.Second}) {
		t.Fatalf("sleeps = %v", h.sleeps)
	}
	if _, err := os.Stat(h.chunker.dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("chunk directory should be removed")
	}
	if _, err := os.Stat(h.extractor.out); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("extracted audio should be removed")
	}
	pcts := h.publisher.percents()
	for _, want := range []int{5, 8, 10, 36, 63, 95, 100} {
		if !slices.Contains(pcts, want) {
			t.Fatalf("progress %v missing %d", pcts, want)
		}
	}
}

func TestChunkRetriesMemoryExhaustion(t *testing.T) {
	h := newHarness(t, 3000, 2, func(req engine.Request, call int) (engine.Result, error) {
		if call == 2 {
			return oom()
		}
		return textResult("ok")
	})
	if err := h.orch.Run(context.Background(), "job", h.source, "large"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.engine.requests) != 3 {
		t.Fatalf("engine calls = %d", len(h.engine.requests))
	}
	if !slices.Equal(h.sleeps, []time.Duration{15 * time.Second, 10 * time.Second}) {
		t.Fatalf("sleeps = %v", h.sleeps)
	}
	if h.store.text != "ok ok" {
		t.Fatalf("text = %q", h.store.text)
	}
}

func TestChunkRetryIsBounded(t *testing.T) {
	h := newHarness(t, 3000, 3, func(req engine.Request, _ int) (engine.Result, error) {
		if strings.HasSuffix(req.InputPath, "chunk_001.mp3") {
			return oom()
		}
		return textResult("ok")
	})
	err := h.orch.Run(context.Background(), "job", h.source, "large")
	if !errors.Is(err, services.ErrOOM) {
		t.Fatalf("expected ErrOOM, got %v", err)
	}
	if len(h.engine.requests) != 3 {
		t.Fatalf("engine calls = %d, want 1 + 2 attempts", len(h.engine.requests))
	}
	if !slices.Equal(h.store.statuses, []store.Status{store.StatusProcessing, store.StatusFailed}) {
		t.Fatalf("statuses = %v", h.store.statuses)
	}
	if !strings.HasPrefix(h.store.message, "chunk 2/3 failed: insufficient memory") {
		t.Fatalf("message = %q", h.store.message)
	}
	if _, err := os.Stat(h.chunker.dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("chunk directory should be removed on failure")
	}
	if h.publisher.closed != 1 || len(h.graces) != 0 {
		t.Fatal("failure should close the stream immediately")
	}
}

func TestNonMemoryChunkFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, 3000, 3, func(engine.Request, int) (engine.Result, error) {
		return engine.Result{}, services.Wrap(services.ErrCrash, "engine", "chunk", "model weights missing", nil)
	})
	if err := h.orch.Run(context.Background(), "job", h.source, "base"); !errors.Is(err, services.ErrCrash) {
		t.Fatalf("expected ErrCrash, got %v", err)
	}
	if len(h.engine.requests) != 1 {
		t.Fatalf("engine calls = %d", len(h.engine.requests))
	}
	if h.store.message != "chunk 1/3 failed: transcription failed: model weights missing" {
		t.Fatalf("message = %q", h.store.message)
	}
}

func TestProbeFailureFailsJob(t *testing.T) {
	h := newHarness(t, 0, 0, nil)
	h.orch = transcription.New(transcription.Dependencies{
		Prober:    fakeProber{err: services.Wrap(services.ErrProbe, "probing", "ffprobe", "", errors.New("invalid data"))},
		Extractor: h.extractor,
		Chunker:   h.chunker,
		Engine:    h.engine,
		Store:     h.store,
		Files:     h.files,
		Publisher: h.publisher,
	}, transcription.Settings{ChunkThresholdSeconds: 2400})

	if err := h.orch.Run(context.Background(), "job", h.source, "base"); !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
	if h.store.statuses[len(h.store.statuses)-1] != store.StatusFailed {
		t.Fatalf("statuses = %v", h.store.statuses)
	}
	if len(h.files.deleted) != 1 || h.files.deleted[0] != h.source {
		t.Fatalf("deleted = %v", h.files.deleted)
	}
	if last := h.publisher.percents(); last[len(last)-1] != 0 {
		t.Fatalf("expected a 0%% failure event, got %v", last)
	}
}

func TestStartFailureMarksPendingJobFailed(t *testing.T) {
	h := newHarness(t, 600, 0, func(engine.Request, int) (engine.Result, error) { return textResult("x") })
	h.store.startErr = errors.New("database is locked")

	if err := h.orch.Run(context.Background(), "job", h.source, "base"); !errors.Is(err, services.ErrQueueInternal) {
		t.Fatalf("expected ErrQueueInternal, got %v", err)
	}
	if !slices.Equal(h.store.statuses, []store.Status{store.StatusFailed}) {
		t.Fatalf("statuses = %v", h.store.statuses)
	}
	if len(h.engine.requests) != 0 {
		t.Fatalf("engine ran %d times", len(h.engine.requests))
	}
	if len(h.files.deleted) != 1 {
		t.Fatalf("deleted = %v", h.files.deleted)
	}
}

func TestTimeoutPolicy(t *testing.T) {
	p := transcription.TimeoutPolicy{Base: 5 * time.Minute, Max: 2 * time.Hour, RealtimeFactor: 1, Per100MB: 2 * time.Minute}
	tests := []struct {
		duration float64
		size     int64
		want     time.Duration
	}{
		{60, 0, 6 * time.Minute},
		{60, 1024, 7 * time.Minute},
		{0, 250 * 1024 * 1024, 11 * time.Minute},
		{600, 100 * 1024 * 1024, 15 * time.Minute},
		{3 * 3600, 0, 2 * time.Hour},
	}
	for _, tt := range tests {
		if got := p.For(tt.duration, tt.size); got != tt.want {
			t.Fatalf("For(%v, %d) = %s, want %s", tt.duration, tt.size, got, tt.want)
		}
	}
}
