package audio

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"scribe/internal/services"
)

// Chunk is one fixed-duration slice of a job's audio.
type Chunk struct {
	Index           int
	Path            string
	DurationSeconds float64
}

// Chunker splits audio into fixed-duration segments.
type Chunker struct {
	tool
	tempRoot string
}

// NewChunker constructs a Chunker around the ffmpeg binary. Chunk directories
// are created under tempRoot, or the system temp dir when empty.
func NewChunker(ffmpeg, tempRoot string, opts ...Option) *Chunker {
	return &Chunker{tool: newTool(ffmpeg, opts), tempRoot: tempRoot}
}

// Split segments path into pieces of segmentSeconds by stream copy, keeping
// the source codec and extension. Chunks are returned in index order inside a
// new directory the caller must remove. totalSeconds, when known, sizes the
// final chunk.
func (c *Chunker) Split(ctx context.Context, path string, segmentSeconds int, totalSeconds float64) (string, []Chunk, error) {
	if segmentSeconds <= 0 {
		return "", nil, services.Wrap(services.ErrValidation, "chunking", "split", "segment length must be positive", nil)
	}
	dir, err := os.MkdirTemp(c.tempRoot, "audio_chunks_")
	if err != nil {
		return "", nil, services.Wrap(services.ErrTool, "chunking", "split", "create chunk dir", err)
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp3"
	}
	pattern := filepath.Join(dir, "chunk_%03d"+ext)
	output, err := c.run(ctx, c.binary,
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-c", "copy",
		"-reset_timestamps", "1",
		pattern,
	)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, services.Wrap(services.ErrTool, "chunking", "split", tail(output), err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "chunk_*"+ext))
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, services.Wrap(services.ErrTool, "chunking", "list chunks", "", err)
	}
	if len(paths) == 0 {
		_ = os.RemoveAll(dir)
		return "", nil, services.Wrap(services.ErrTool, "chunking", "split", "ffmpeg produced no chunks", nil)
	}
	// %03d widens past chunk_999, so order by the numeric index.
	slices.SortFunc(paths, func(a, b string) int {
		return cmp.Or(cmp.Compare(chunkNumber(a, ext), chunkNumber(b, ext)), cmp.Compare(a, b))
	})

	chunks := make([]Chunk, len(paths))
	seg := float64(segmentSeconds)
	for i, p := range paths {
		chunks[i] = Chunk{Index: i, Path: p, DurationSeconds: seg}
	}
	if totalSeconds > 0 {
		last := totalSeconds - seg*float64(len(chunks)-1)
		chunks[len(chunks)-1].DurationSeconds = math.Max(0, math.Min(seg, last))
	}
	return dir, chunks, nil
}

// Label renders the 1-based "i/n" form used in logs and failure messages.
func (c Chunk) Label(total int) string {
	return fmt.Sprintf("%d/%d", c.Index+1, total)
}

func chunkNumber(path, ext string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "chunk_"), ext)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return math.MaxInt
	}
	return n
}
