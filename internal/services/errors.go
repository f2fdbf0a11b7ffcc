package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProbe          = errors.New("probe error")
	ErrTool           = errors.New("tool error")
	ErrOOM            = errors.New("memory exhausted")
	ErrTimeout        = errors.New("timeout")
	ErrCrash          = errors.New("engine crashed")
	ErrCorruptInput   = errors.New("corrupt input")
	ErrParse          = errors.New("parse error")
	ErrOutputTooLarge = errors.New("output too large")
	ErrQueueInternal  = errors.New("queue internal error")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCrash
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// memorySignatures are substrings (lowercase) that engines and runtimes print
// when they run out of host or accelerator memory. 3221226505 is 0xC0000409,
// the Windows stack buffer overrun status torch raises on allocator failure.
var memorySignatures = []string{
	"out of memory",
	"memoryerror",
	"cannot allocate memory",
	"insufficient memory",
	"std::bad_alloc",
	"enomem",
	"stack overflow",
	"3221226505",
	"0xc0000409",
}

// LooksLikeMemoryExhaustion reports whether text carries a memory exhaustion
// signature.
func LooksLikeMemoryExhaustion(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range memorySignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// IsMemoryExhaustion reports whether err was classified as OOM or carries a
// memory exhaustion signature in its message. Only these failures are retried
// during chunked transcription.
func IsMemoryExhaustion(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOOM) {
		return true
	}
	return LooksLikeMemoryExhaustion(err.Error())
}

// Category names the user-facing failure class of err.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case IsMemoryExhaustion(err):
		return "memory"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCorruptInput), errors.Is(err, ErrProbe):
		return "corrupt_input"
	case errors.Is(err, ErrOutputTooLarge):
		return "output_too_large"
	case errors.Is(err, ErrTool):
		return "tool"
	case errors.Is(err, ErrQueueInternal):
		return "internal"
	default:
		return "engine"
	}
}

// FailureMessage maps err to the normalized message stored on a failed job.
// The raw error stays in the daemon log.
func FailureMessage(err error) string {
	switch Category(err) {
	case "":
		return ""
	case "memory":
		return "insufficient memory to complete transcription; try a smaller model or a shorter file"
	case "timeout":
		return "transcription exceeded its time limit"
	case "corrupt_input":
		return "the media file could not be read; it may be corrupt or in an unsupported format"
	case "output_too_large":
		return "transcription output exceeded the size limit"
	case "tool":
		return "audio preparation failed"
	case "internal":
		return "internal error while processing the job"
	default:
		return "transcription failed: " + lastSegment(err.Error())
	}
}

// lastSegment keeps the innermost cause of a ": "-joined wrap chain.
func lastSegment(msg string) string {
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return strings.TrimSpace(msg[i+2:])
	}
	return strings.TrimSpace(msg)
}
