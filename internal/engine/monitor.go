package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"scribe/internal/logging"
)

// MemorySampler reports the supervising process's heap usage in bytes.
type MemorySampler func() uint64

func heapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// memoryMonitor samples heap usage on an interval, warns once above warn and
// calls onLimit once above limit.
type memoryMonitor struct {
	sample   MemorySampler
	interval time.Duration
	warn     uint64
	limit    uint64
	logger   *slog.Logger
}

func (m memoryMonitor) run(ctx context.Context, onLimit func()) {
	if m.interval <= 0 || m.sample == nil {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		used := m.sample()
		if m.limit > 0 && used > m.limit {
			logging.ErrorWithContext(m.logger, "memory limit exceeded; killing engine", "engine_memory_limit",
				logging.Int64("heap_mb", int64(used>>20)),
				logging.Int64("limit_mb", int64(m.limit>>20)),
				logging.String(logging.FieldErrorHint, "lower engine.memory_limit_mb pressure by using a smaller model"),
			)
			onLimit()
			return
		}
		if !warned && m.warn > 0 && used > m.warn {
			warned = true
			logging.WarnWithContext(m.logger, "high memory usage during transcription", "engine_memory_high",
				logging.Int64("heap_mb", int64(used>>20)),
				logging.Int64("warn_mb", int64(m.warn>>20)),
				logging.String(logging.FieldImpact, "engine may be killed if usage keeps growing"),
			)
		}
	}
}
