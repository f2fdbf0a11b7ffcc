package services_test

import (
	"errors"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTool, "chunking", "split", "ffmpeg exited 1", base)
	if !errors.Is(err, services.ErrTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"chunking", "split", "ffmpeg exited 1", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToCrash(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrCrash) {
		t.Fatalf("expected crash marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestIsMemoryExhaustion(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marker", services.Wrap(services.ErrOOM, "engine", "run", "killed", nil), true},
		{"cuda signature", errors.New("RuntimeError: CUDA out of memory. Tried to allocate"), true},
		{"stack overrun code", errors.New("exit status 3221226505"), true},
		{"python memory error", errors.New("MemoryError"), true},
		{"stack overflow", errors.New("Stack overflow detected"), true},
		{"timeout", services.Wrap(services.ErrTimeout, "engine", "run", "deadline", nil), false},
		{"generic crash", errors.New("Error: model file missing"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsMemoryExhaustion(tc.err); got != tc.want {
				t.Fatalf("IsMemoryExhaustion(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestFailureMessageCategories(t *testing.T) {
	cases := []struct {
		err      error
		category string
		contains string
	}{
		{services.Wrap(services.ErrOOM, "engine", "run", "", nil), "memory", "memory"},
		{services.Wrap(services.ErrTimeout, "engine", "run", "", nil), "timeout", "time limit"},
		{services.Wrap(services.ErrCrash, "engine", "run", "access violation", services.ErrCorruptInput), "corrupt_input", "corrupt"},
		{services.Wrap(services.ErrProbe, "probing", "ffprobe", "", nil), "corrupt_input", "corrupt"},
		{services.Wrap(services.ErrOutputTooLarge, "engine", "run", "", nil), "output_too_large", "size limit"},
		{services.Wrap(services.ErrTool, "chunking", "split", "", nil), "tool", "audio preparation"},
		{services.Wrap(services.ErrCrash, "engine", "run", "exit 2", errors.New("model not found")), "engine", "model not found"},
	}
	for _, tc := range cases {
		if got := services.Category(tc.err); got != tc.category {
			t.Fatalf("Category(%v) = %q, want %q", tc.err, got, tc.category)
		}
		if msg := services.FailureMessage(tc.err); !strings.Contains(msg, tc.contains) {
			t.Fatalf("FailureMessage(%v) = %q, want substring %q", tc.err, msg, tc.contains)
		}
	}
	if services.FailureMessage(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}
