package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/media/audio"
	"scribe/internal/progress"
	"scribe/internal/services"
)

func (o *Orchestrator) runChunked(ctx context.Context, jobID, filePath, modelSize string, duration float64) (outcome, error) {
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()

	o.deps.Publisher.Publish(jobID, 8, "preparing audio")
	audioPath, extracted, err := o.deps.Extractor.Extract(ctx, filePath)
	if err != nil {
		return outcome{}, err
	}
	if extracted {
		defer o.removeTemp(logger, audioPath)
	}

	o.deps.Publisher.Publish(jobID, 10, "splitting audio into chunks")
	dir, chunks, err := o.deps.Chunker.Split(ctx, audioPath, o.settings.ChunkSeconds, duration)
	if err != nil {
		return outcome{}, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("remove chunk directory failed", logging.Error(err), logging.String("dir", dir))
		}
	}()
	logger.Info("audio split", logging.Int("chunks", len(chunks)), logging.Int("chunk_seconds", o.settings.ChunkSeconds))

	texts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		chunkStart := o.now()
		text, err := o.transcribeChunk(ctx, jobID, modelSize, chunk, len(chunks))
		if err != nil {
			return outcome{}, &chunkError{label: chunk.Label(len(chunks)), err: err}
		}
		texts = append(texts, text)
		o.removeTemp(logger, chunk.Path)

		if i < len(chunks)-1 {
			remaining := len(chunks) - i - 1
			estimate := int(o.now().Sub(chunkStart).Seconds()) * remaining
			pct := chunkProgress(i+1, 0, len(chunks))
			o.deps.Publisher.Publish(jobID, pct, fmt.Sprintf("chunk %s done", chunk.Label(len(chunks))), progress.WithEstimate(estimate))
			if err := o.sleep(ctx, o.settings.ChunkCooldown); err != nil {
				return outcome{}, err
			}
		}
	}

	return outcome{
		text:              strings.Join(texts, " "),
		processingSeconds: o.now().Sub(started).Seconds(),
	}, nil
}

// transcribeChunk runs one chunk with bounded retries on memory exhaustion.
func (o *Orchestrator) transcribeChunk(ctx context.Context, jobID, modelSize string, chunk audio.Chunk, total int) (string, error) {
	label := chunk.Label(total)
	ctx = services.WithStage(ctx, "chunk "+label)
	logger := logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldChunk, label))

	var size int64
	if info, err := os.Stat(chunk.Path); err == nil {
		size = info.Size()
	}
	timeout := o.settings.Timeout.For(chunk.DurationSeconds, size)

	attempts := max(1, o.settings.MaxRetries)
	for attempt := 1; ; attempt++ {
		o.deps.Publisher.Publish(jobID, chunkProgress(chunk.Index, 0, total), "transcribing chunk "+label)
		res, err := o.deps.Engine.Run(ctx, engine.Request{
			Label:     "chunk " + label,
			InputPath: chunk.Path,
			ModelSize: modelSize,
			Simple:    true,
			Timeout:   timeout,
			OnProgress: func(percent int, message string) {
				o.deps.Publisher.Publish(jobID, chunkProgress(chunk.Index, percent, total), message)
			},
		})
		if err == nil {
			text, lerr := res.LoadText()
			if lerr != nil {
				return "", services.Wrap(services.ErrParse, "chunking", "read chunk transcript", label, lerr)
			}
			logger.Info("chunk transcribed", logging.Int("attempt", attempt), logging.Int("text_length", len(text)))
			return text, nil
		}
		if !services.IsMemoryExhaustion(err) || attempt >= attempts {
			return "", err
		}

		backoff := o.settings.RetryBackoff * time.Duration(attempt)
		logging.WarnWithContext(logger, "chunk ran out of memory; retrying", "chunk_oom_retry",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("backoff", backoff),
			logging.String(logging.FieldImpact, "chunk will be retried after memory drains"),
		)
		o.deps.Publisher.Publish(jobID, chunkProgress(chunk.Index, 0, total),
			fmt.Sprintf("chunk %s: waiting for memory (%ds)", label, int(backoff.Seconds())))
		if err := o.sleep(ctx, backoff); err != nil {
			return "", err
		}
	}
}

// chunkProgress maps progress within chunk index (0-based) of total onto the
// 10..90 band.
func chunkProgress(index, percent, total int) int {
	if total <= 0 {
		return 10
	}
	percent = min(100, max(0, percent))
	return 10 + (80*(index*100+percent))/(100*total)
}

func (o *Orchestrator) removeTemp(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("remove temporary audio failed", logging.Error(err), logging.String("path", path))
	}
}
