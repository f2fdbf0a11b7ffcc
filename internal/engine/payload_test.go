package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/engine"
)

func TestDecodePayload(t *testing.T) {
	p, err := engine.DecodePayload(strings.NewReader(`{"success":true,"text":"hola","processing_time":1.5}` + "\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.Success || p.Text != "hola" || p.ProcessingTime != 1.5 {
		t.Fatalf("unexpected payload %+v", p)
	}

	for _, bad := range []string{"", "not json", `{"success":true} {"success":false}`} {
		if _, err := engine.DecodePayload(strings.NewReader(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestResultLoadTextFromFile(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "out.json")
	if err := os.WriteFile(jsonFile, []byte(`{"text":"café largo"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err := engine.Result{TextFile: jsonFile}.LoadText()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if text != "café largo" {
		t.Fatalf("text = %q, want NFC-normalized", text)
	}
	if _, err := os.Stat(jsonFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected text file removed, stat err=%v", err)
	}

	rawFile := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(rawFile, []byte("plain words\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err = engine.Result{TextFile: rawFile}.LoadText()
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if text != "plain words" {
		t.Fatalf("raw text = %q", text)
	}
}
