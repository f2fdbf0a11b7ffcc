package engine_test

import (
	"slices"
	"strings"
	"testing"

	"scribe/internal/engine"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		kind    engine.Kind
		percent int
		message string
	}{
		{"PROGRESS:42:Transcribing audio", engine.KindProgress, 42, "Transcribing audio"},
		{"PROGRESS:100:", engine.KindProgress, 100, ""},
		{"MemoryError: unable to allocate", engine.KindMemoryExhaustion, 0, "MemoryError: unable to allocate"},
		{"Error: CUDA out of memory", engine.KindMemoryExhaustion, 0, "Error: CUDA out of memory"},
		{"Warning: CUDA is not available, falling back to CPU", engine.KindAcceleratorUnavailable, 0, "Warning: CUDA is not available, falling back to CPU"},
		{"Error: file not found", engine.KindError, 0, "file not found"},
		{"loading model", engine.KindOther, 0, "loading model"},
		{"PROGRESS:abc:bad", engine.KindOther, 0, "PROGRESS:abc:bad"},
	}
	for _, tt := range tests {
		got := engine.ParseLine(tt.line)
		if got.Kind != tt.kind || got.Percent != tt.percent || got.Message != tt.message {
			t.Fatalf("ParseLine(%q) = %+v", tt.line, got)
		}
	}
}

func TestParseDiagnosticsIsLazy(t *testing.T) {
	input := "PROGRESS:10:a\n\nPROGRESS:20:b\nPROGRESS:30:c\n"
	var seen []int
	for d := range engine.ParseDiagnostics(engine.Lines(strings.NewReader(input))) {
		seen = append(seen, d.Percent)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []int{10, 20}) {
		t.Fatalf("seen = %v", seen)
	}
}

func TestLastError(t *testing.T) {
	text := "Error: first\nsomething\nError: model load failed\n"
	if got := engine.LastError(text); got != "model load failed" {
		t.Fatalf("LastError = %q", got)
	}
	if got := engine.LastError("nothing here"); got != "" {
		t.Fatalf("LastError = %q", got)
	}
}

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		code     int64
		signaled bool
		want     engine.ExitClass
	}{
		{0, false, engine.ExitOK},
		{3221226505, false, engine.ExitStackOverrun},
		{-1073740791, false, engine.ExitStackOverrun},
		{3221225477, false, engine.ExitAccessViolation},
		{-1073741819, false, engine.ExitAccessViolation},
		{0xC0000017, false, engine.ExitOutOfMemory},
		{137, false, engine.ExitKilled},
		{-1, true, engine.ExitKilled},
		{1, false, engine.ExitFailure},
		{2, false, engine.ExitFailure},
	}
	for _, tt := range tests {
		if got := engine.ClassifyExit(tt.code, tt.signaled); got != tt.want {
			t.Fatalf("ClassifyExit(%d, %v) = %s, want %s", tt.code, tt.signaled, got, tt.want)
		}
	}
}
