package audio

import (
	"context"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Option configures an Extractor or Chunker.
type Option func(*tool)

// WithRunner overrides the command runner, primarily for tests.
func WithRunner(runner CommandRunner) Option {
	return func(t *tool) {
		if runner != nil {
			t.run = runner
		}
	}
}

type tool struct {
	binary string
	run    CommandRunner
}

func newTool(binary string, opts []Option) tool {
	t := tool{binary: strings.TrimSpace(binary), run: execRunner}
	if t.binary == "" {
		t.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// tail keeps the last line of tool output for error messages.
func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return text
}
