package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GradientTrace records one Differentiate call: the resulting gradient
// triple and how long the call took. ParamCycles is part of the record
// format, but the server's run loop does not fill it. This is the Go-native
// equivalent of the original RooFit build's RooTrace gradient-call
// log, scoped to what this module computes (no fit-result or
// minimizer-state fields, since those stay out of scope).
type GradientTrace struct {
	// Call is the sequence number of this Differentiate invocation
	Call int `json:"call"`

	// Cost is f(x) at the point this call differentiated around
	Cost float64 `json:"cost"`

	// ParamCycles holds per-parameter adaptive cycle counts when a
	// writer supplies them; DifferentiateOne does not report its cycle
	// count, and the server's run loop leaves this field nil
	ParamCycles []int `json:"paramCycles"`

	Grad  []float64 `json:"grad"`
	G2    []float64 `json:"g2"`
	Gstep []float64 `json:"gstep"`

	WallTime  time.Duration `json:"wallTime"`
	Timestamp time.Time     `json:"timestamp"`
}

// GradientTraceWriter appends GradientTrace records as JSON lines.
type GradientTraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewGradientTraceWriter opens (creating if needed) the gradient trace
// file for jobID at <baseDir>/jobs/<jobID>/gradient_trace.jsonl.
func NewGradientTraceWriter(baseDir, jobID string) (*GradientTraceWriter, error) {
	jobDir := filepath.Join(baseDir, "jobs", jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	path := filepath.Join(jobDir, "gradient_trace.jsonl")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open gradient trace file: %w", err)
	}

	return &GradientTraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends one trace record.
func (w *GradientTraceWriter) Write(entry GradientTrace) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal gradient trace entry: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write gradient trace entry: %w", err)
	}
	return w.writer.WriteByte('\n')
}

// Flush writes any buffered data to disk.
func (w *GradientTraceWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush gradient trace writer: %w", err)
	}
	return w.file.Sync()
}

// Close flushes and closes the underlying file.
func (w *GradientTraceWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	return w.file.Close()
}

// Path returns the filesystem path to the trace file.
func (w *GradientTraceWriter) Path() string { return w.path }
