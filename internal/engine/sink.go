package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// errSinkFull is returned by Sink.Write once the ceiling would be exceeded.
var errSinkFull = errors.New("output ceiling exceeded")

// Sink accumulates process output in memory up to threshold bytes and
// transparently spills to a temporary file beyond that. Writes that would
// take the total past ceiling fail and leave the sink unchanged.
type Sink struct {
	threshold int64
	ceiling   int64
	dir       string
	pattern   string

	buf       bytes.Buffer
	file      *os.File
	size      int64
	finalized bool
}

// NewSink builds a sink. dir and pattern follow os.CreateTemp; an empty dir
// uses the system temp directory.
func NewSink(threshold, ceiling int64, dir, pattern string) *Sink {
	if ceiling < threshold {
		ceiling = threshold
	}
	return &Sink{threshold: threshold, ceiling: ceiling, dir: dir, pattern: pattern}
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	if s.finalized {
		return 0, errors.New("sink: write after finalize")
	}
	if s.size+int64(len(p)) > s.ceiling {
		return 0, errSinkFull
	}
	if s.file == nil && s.size+int64(len(p)) > s.threshold {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	var (
		n   int
		err error
	)
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *Sink) spill() error {
	file, err := os.CreateTemp(s.dir, s.pattern)
	if err != nil {
		return fmt.Errorf("sink: create spill file: %w", err)
	}
	if _, err := file.Write(s.buf.Bytes()); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return fmt.Errorf("sink: spill: %w", err)
	}
	s.buf = bytes.Buffer{}
	s.file = file
	return nil
}

// Finalize ends writing. It is safe to call more than once.
func (s *Sink) Finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	if s.file != nil {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sink: sync: %w", err)
		}
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("sink: rewind: %w", err)
		}
	}
	return nil
}

// Reader returns the captured output from the start. Finalize must have been
// called. The reader stays valid until Cleanup.
func (s *Sink) Reader() (io.Reader, error) {
	if !s.finalized {
		return nil, errors.New("sink: read before finalize")
	}
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("sink: rewind: %w", err)
		}
		return s.file, nil
	}
	return bytes.NewReader(s.buf.Bytes()), nil
}

// ReadAll returns the whole captured output.
func (s *Sink) ReadAll() ([]byte, error) {
	r, err := s.Reader()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Size returns the number of bytes written.
func (s *Sink) Size() int64 { return s.size }

// Spilled reports whether output moved to a file.
func (s *Sink) Spilled() bool { return s.file != nil }

// Cleanup closes and removes any spill file.
func (s *Sink) Cleanup() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	_ = s.file.Close()
	s.file = nil
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sink: remove spill file: %w", err)
	}
	return nil
}
