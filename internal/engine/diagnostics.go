package engine

import (
	"bufio"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"scribe/internal/services"
)

// Kind labels a parsed diagnostic line.
type Kind int

const (
	KindOther Kind = iota
	KindProgress
	KindMemoryExhaustion
	KindAcceleratorUnavailable
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindMemoryExhaustion:
		return "memory_exhaustion"
	case KindAcceleratorUnavailable:
		return "accelerator_unavailable"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// Diagnostic is one classified line of the worker's diagnostic stream.
type Diagnostic struct {
	Kind    Kind
	Percent int
	Message string
	Line    string
}

var (
	progressPattern = regexp.MustCompile(`PROGRESS:(\d+):(.*)`)
	errorPattern    = regexp.MustCompile(`Error: (.+)`)
)

var acceleratorSignatures = []string{
	"cuda is not available",
	"no cuda gpus",
	"driver version is insufficient",
	"falling back to cpu",
}

// maxLineBytes bounds a single diagnostic line. Longer lines end parsing; the
// rest of the stream still reaches the tail.
const maxLineBytes = 1 << 20

// ParseLine classifies a single line. Memory exhaustion wins over an Error:
// prefix so "Error: CUDA out of memory" is treated as a memory failure.
func ParseLine(line string) Diagnostic {
	line = strings.TrimRight(line, "\r")
	if m := progressPattern.FindStringSubmatch(line); m != nil {
		pct, err := strconv.Atoi(m[1])
		if err == nil {
			return Diagnostic{Kind: KindProgress, Percent: pct, Message: strings.TrimSpace(m[2]), Line: line}
		}
	}
	if services.LooksLikeMemoryExhaustion(line) {
		return Diagnostic{Kind: KindMemoryExhaustion, Message: strings.TrimSpace(line), Line: line}
	}
	lower := strings.ToLower(line)
	for _, sig := range acceleratorSignatures {
		if strings.Contains(lower, sig) {
			return Diagnostic{Kind: KindAcceleratorUnavailable, Message: strings.TrimSpace(line), Line: line}
		}
	}
	if m := errorPattern.FindStringSubmatch(line); m != nil {
		return Diagnostic{Kind: KindError, Message: strings.TrimSpace(m[1]), Line: line}
	}
	return Diagnostic{Kind: KindOther, Message: strings.TrimSpace(line), Line: line}
}

// Lines yields the newline-separated lines of r.
func Lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}
}

// ParseDiagnostics lazily classifies lines, skipping blank ones.
func ParseDiagnostics(lines iter.Seq[string]) iter.Seq[Diagnostic] {
	return func(yield func(Diagnostic) bool) {
		for line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !yield(ParseLine(line)) {
				return
			}
		}
	}
}

// LastError returns the message of the last "Error: ..." line in text.
func LastError(text string) string {
	matches := errorPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
