package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

const stageEngine = "engine"

// Request describes one engine invocation.
type Request struct {
	// Label names the run in logs and temp files, e.g. "direct" or "chunk 2/5".
	Label      string
	InputPath  string
	ModelSize  string
	Timeout    time.Duration
	Simple     bool
	OnProgress func(percent int, message string)
}

// Option configures the runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "engine")
		}
	}
}

// WithTempDir sets where oversized output spills.
func WithTempDir(dir string) Option {
	return func(r *Runner) { r.tempDir = dir }
}

// WithOutputLimits overrides the in-memory threshold and hard ceiling for
// captured output, in bytes.
func WithOutputLimits(threshold, ceiling int64) Option {
	return func(r *Runner) {
		r.threshold = threshold
		r.ceiling = ceiling
	}
}

// WithMemorySampler replaces the heap sampler used by the memory monitor.
func WithMemorySampler(sampler MemorySampler) Option {
	return func(r *Runner) {
		if sampler != nil {
			r.monitor.sample = sampler
		}
	}
}

// Runner launches and supervises worker processes.
type Runner struct {
	command   string
	args      []string
	script    string
	env       []string
	ffmpeg    string
	threshold int64
	ceiling   int64
	tailBytes int
	tempDir   string
	monitor   memoryMonitor
	logger    *slog.Logger
}

// New builds a runner from the engine configuration.
func New(cfg *config.Config, opts ...Option) *Runner {
	const mb = 1 << 20
	r := &Runner{
		command:   cfg.Engine.Command,
		args:      append([]string(nil), cfg.Engine.Args...),
		script:    cfg.Engine.Script,
		env:       append([]string(nil), cfg.Engine.Env...),
		ffmpeg:    cfg.FFmpegBinary(),
		threshold: int64(cfg.Engine.MemoryOutputThresholdMB) * mb,
		ceiling:   int64(cfg.Engine.MaxOutputMB) * mb,
		tailBytes: cfg.Engine.DiagnosticTailKB * 1024,
		logger:    logging.NewComponentLogger(nil, "engine"),
		monitor: memoryMonitor{
			sample:   heapInUse,
			interval: time.Duration(cfg.Engine.MemoryMonitorInterval) * time.Second,
			warn:     uint64(cfg.Engine.MemoryWarnMB) * mb,
			limit:    uint64(cfg.Engine.MemoryLimitMB) * mb,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.monitor.logger = r.logger
	return r
}

func (r *Runner) argv(req Request) []string {
	args := append([]string(nil), r.args...)
	if r.script != "" {
		args = append(args, r.script)
	}
	args = append(args, req.InputPath, req.ModelSize)
	if req.Simple {
		args = append(args, "--simple")
	}
	return args
}

func (r *Runner) environ() []string {
	env := append(os.Environ(), "PYTHONIOENCODING=utf-8", "PYTHONUTF8=1")
	if r.ffmpeg != "" {
		env = append(env, "FFMPEG_PATH="+r.ffmpeg)
	}
	return append(env, r.env...)
}

type killReason int32

const (
	killNone killReason = iota
	killTimeout
	killOverflow
	killMemory
	killCancelled
)

// groupKiller sends SIGKILL to the worker's process group at most once and
// remembers why. Once disarmed it ignores further requests.
type groupKiller struct {
	pid      int
	mu       sync.Mutex
	reason   killReason
	disarmed bool
}

func (k *groupKiller) kill(reason killReason) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.disarmed || k.reason != killNone {
		return
	}
	k.reason = reason
	if err := unix.Kill(-k.pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		_ = unix.Kill(k.pid, unix.SIGKILL)
	}
}

// disarm must run while the worker is still unreaped so its pid cannot be
// reused by the time a late kill is sent.
func (k *groupKiller) disarm() {
	k.mu.Lock()
	k.disarmed = true
	k.mu.Unlock()
}

func (k *groupKiller) why() killReason {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reason
}

// awaitExit blocks until pid has exited but leaves it for cmd.Wait to reap.
func awaitExit(pid int) {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

// Run spawns one worker process and waits for its payload.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(r.command) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, stageEngine, "launch", "engine command not configured", nil)
	}
	label := req.Label
	if label == "" {
		label = "direct"
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String("run", label))

	cmd := exec.Command(r.command, r.argv(req)...)
	cmd.Env = r.environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, "launch", "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, "launch", "stderr pipe", err)
	}

	sink := NewSink(r.threshold, r.ceiling, r.tempDir, "transcription_"+tempLabel(label)+"_*.json")
	defer func() {
		if cerr := sink.Cleanup(); cerr != nil {
			logger.Debug("spill cleanup failed", logging.Error(cerr))
		}
	}()
	tail := NewTail(r.tailBytes)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, "launch", "start "+r.command, err)
	}
	logger.Info("engine started",
		logging.Int("pid", cmd.Process.Pid),
		logging.String("model", req.ModelSize),
		logging.Bool("simple", req.Simple),
		logging.Duration("timeout", req.Timeout),
	)

	killer := &groupKiller{pid: cmd.Process.Pid}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var deadline <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	go func() {
		select {
		case <-runCtx.Done():
			if ctx.Err() != nil {
				killer.kill(killCancelled)
			}
		case <-deadline:
			killer.kill(killTimeout)
		}
	}()
	go r.monitor.run(runCtx, func() { killer.kill(killMemory) })

	var (
		wg          sync.WaitGroup
		memFlagged  atomic.Bool
		accelWarned atomic.Bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := io.Copy(sink, stdout); err != nil {
			if errors.Is(err, errSinkFull) {
				killer.kill(killOverflow)
			}
			_, _ = io.Copy(io.Discard, stdout)
		}
	}()
	go func() {
		defer wg.Done()
		tee := io.TeeReader(stderr, tail)
		sampler := logging.NewProgressSampler(10)
		for d := range ParseDiagnostics(Lines(tee)) {
			switch d.Kind {
			case KindProgress:
				if sampler.ShouldLog(d.Percent, "") {
					logger.Debug("engine progress", logging.Int("percent", d.Percent), logging.String("message", d.Message))
				}
				if req.OnProgress != nil {
					req.OnProgress(d.Percent, d.Message)
				}
			case KindMemoryExhaustion:
				memFlagged.Store(true)
			case KindAcceleratorUnavailable:
				if accelWarned.CompareAndSwap(false, true) {
					logging.WarnWithContext(logger, "accelerator unavailable; engine running on cpu", "engine_accelerator_unavailable",
						logging.String("detail", d.Message),
						logging.String(logging.FieldImpact, "transcription will be slower"),
					)
				}
			}
		}
		_, _ = io.Copy(io.Discard, tee)
	}()

	wg.Wait()
	awaitExit(cmd.Process.Pid)
	killer.disarm()
	cancel()
	waitErr := cmd.Wait()
	elapsed := time.Since(started)
	if err := sink.Finalize(); err != nil {
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, "collect", "finalize output", err)
	}

	code, signaled := exitStatus(cmd.ProcessState, waitErr)
	outcome := outcome{
		label:      label,
		code:       code,
		signaled:   signaled,
		memFlagged: memFlagged.Load() || services.LooksLikeMemoryExhaustion(tail.String()),
		diagnostic: tail.String(),
	}
	logger.Info("engine exited",
		logging.Int64("exit_code", code),
		logging.Bool("signaled", signaled),
		logging.Duration("elapsed", elapsed),
		logging.Int64("output_bytes", sink.Size()),
		logging.Bool("spilled", sink.Spilled()),
	)

	reason := killer.why()
	if reason != killOverflow && !signaled {
		// The worker exited on its own before the signal reached it.
		reason = killNone
	}
	switch reason {
	case killTimeout:
		return Result{}, services.Wrap(services.ErrTimeout, stageEngine, label, fmt.Sprintf("no result within %s", req.Timeout), nil)
	case killOverflow:
		return Result{}, services.Wrap(services.ErrOutputTooLarge, stageEngine, label, fmt.Sprintf("output exceeded %d bytes", r.ceiling), nil)
	case killMemory:
		return Result{}, services.Wrap(services.ErrOOM, stageEngine, label, "memory limit exceeded", nil)
	case killCancelled:
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, label, "cancelled", ctx.Err())
	}

	result, err := outcome.resolve(sink)
	if err != nil {
		return Result{}, err
	}
	result.OutputBytes = sink.Size()
	result.Spilled = sink.Spilled()
	return result, nil
}

type outcome struct {
	label      string
	code       int64
	signaled   bool
	memFlagged bool
	diagnostic string
}

// resolve turns an unforced exit into a result or a classified error.
func (o outcome) resolve(sink *Sink) (Result, error) {
	switch ClassifyExit(o.code, o.signaled) {
	case ExitOK:
		payload, err := readPayload(sink)
		if err != nil {
			if o.memFlagged {
				return Result{}, services.Wrap(services.ErrOOM, stageEngine, o.label, "MemoryError in diagnostics", err)
			}
			return Result{}, services.Wrap(services.ErrParse, stageEngine, o.label, "invalid worker output", err)
		}
		if !payload.Success {
			msg := strings.TrimSpace(payload.Error)
			if msg == "" {
				msg = "worker reported failure"
			}
			if o.memFlagged || services.LooksLikeMemoryExhaustion(msg) {
				return Result{}, services.Wrap(services.ErrOOM, stageEngine, o.label, msg, nil)
			}
			return Result{}, services.Wrap(services.ErrCrash, stageEngine, o.label, msg, nil)
		}
		return Result{Text: payload.Text, TextFile: payload.TextFile, ProcessingTime: payload.ProcessingTime}, nil
	case ExitStackOverrun:
		return Result{}, services.Wrap(services.ErrOOM, stageEngine, o.label, "stack buffer overrun (out of memory)", nil)
	case ExitOutOfMemory:
		return Result{}, services.Wrap(services.ErrOOM, stageEngine, o.label, "out of memory", nil)
	case ExitAccessViolation:
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, o.label, "access violation", services.ErrCorruptInput)
	case ExitKilled:
		if o.memFlagged {
			return Result{}, services.Wrap(services.ErrOOM, stageEngine, o.label, "killed after memory exhaustion", nil)
		}
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, o.label, "terminated", nil)
	default:
		if o.memFlagged {
			return Result{}, services.Wrap(services.ErrOOM, stageEngine, o.label, fmt.Sprintf("exit code %d", o.code), nil)
		}
		return Result{}, services.Wrap(services.ErrCrash, stageEngine, o.label, o.failureDetail(sink), nil)
	}
}

// failureDetail prefers the worker's own error text: the last "Error:" line
// of the diagnostics, then a failure payload on stdout, then the exit code.
func (o outcome) failureDetail(sink *Sink) string {
	if msg := LastError(o.diagnostic); msg != "" {
		return msg
	}
	if payload, err := readPayload(sink); err == nil && strings.TrimSpace(payload.Error) != "" {
		return strings.TrimSpace(payload.Error)
	}
	return fmt.Sprintf("exit code %d", o.code)
}

func readPayload(sink *Sink) (Payload, error) {
	reader, err := sink.Reader()
	if err != nil {
		return Payload{}, err
	}
	return DecodePayload(reader)
}

func exitStatus(state *os.ProcessState, waitErr error) (int64, bool) {
	if state == nil {
		return -1, waitErr != nil
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, true
	}
	return int64(state.ExitCode()), false
}

func tempLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
