package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/services"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".flac": {},
	".ogg":  {},
	".aac":  {},
	".wma":  {},
}

// IsAudio reports whether path has an audio-only file extension.
func IsAudio(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extractor converts video inputs into normalized mono audio.
type Extractor struct {
	tool
}

// NewExtractor constructs an Extractor around the ffmpeg binary.
func NewExtractor(ffmpeg string, opts ...Option) *Extractor {
	return &Extractor{tool: newTool(ffmpeg, opts)}
}

// Extract writes a mono 16 kHz 64 kbit/s MP3 next to path and returns its
// location with extracted=true. Audio inputs are returned unchanged with
// extracted=false; the caller owns deleting extracted files.
func (e *Extractor) Extract(ctx context.Context, path string) (string, bool, error) {
	if IsAudio(path) {
		return path, false, nil
	}
	dest := strings.TrimSuffix(path, filepath.Ext(path)) + ".mp3"
	output, err := e.run(ctx, e.binary,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "64k",
		dest,
	)
	if err != nil {
		_ = os.Remove(dest)
		return "", false, services.Wrap(services.ErrTool, "chunking", "extract audio", tail(output), err)
	}
	return dest, true, nil
}
