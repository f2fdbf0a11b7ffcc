package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Payload is the single JSON object the worker prints on stdout.
type Payload struct {
	Success        bool    `json:"success"`
	Text           string  `json:"text,omitempty"`
	TextFile       string  `json:"text_file,omitempty"`
	TextLength     int     `json:"text_length,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// DecodePayload reads exactly one JSON object from r.
func DecodePayload(r io.Reader) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Payload{}, errors.New("empty output")
		}
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Payload{}, errors.New("trailing data after payload")
	}
	return p, nil
}

// Result is a successful engine run.
type Result struct {
	Text           string
	TextFile       string
	ProcessingTime float64
	OutputBytes    int64
	Spilled        bool
}

// LoadText returns the transcript, reading and removing the side file when
// the worker wrote one. Side files hold {"text": ...}; anything else is taken
// as raw text.
func (r Result) LoadText() (string, error) {
	if r.TextFile == "" {
		return norm.NFC.String(r.Text), nil
	}
	data, err := os.ReadFile(r.TextFile)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	_ = os.Remove(r.TextFile)

	var wrapped struct {
		Text *string `json:"text"`
	}
	if json.Unmarshal(data, &wrapped) == nil && wrapped.Text != nil {
		return norm.NFC.String(*wrapped.Text), nil
	}
	return norm.NFC.String(strings.TrimSpace(string(data))), nil
}
