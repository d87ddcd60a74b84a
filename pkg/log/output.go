package log

import (
	"io"
	"os"
)

// ConsoleOutput writes formatted entries to stderr.
type ConsoleOutput struct {
	w io.Writer
}

// NewConsoleOutput returns an Output writing to stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{w: os.Stderr}
}

// NewWriterOutput returns an Output writing to an arbitrary writer.
// Useful for capturing log output in tests.
func NewWriterOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

// Write writes the formatted entry.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	_, err := o.w.Write(formatted)
	return err
}

// Close is a no-op for console outputs.
func (o *ConsoleOutput) Close() error { return nil }

// FileOutput appends formatted entries to a file.
type FileOutput struct {
	f *os.File
}

// NewFileOutput opens (creating if needed) the file at path for appending.
func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{f: f}, nil
}

// Write appends the formatted entry.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	_, err := o.f.Write(formatted)
	return err
}

// Close closes the underlying file.
func (o *FileOutput) Close() error { return o.f.Close() }
