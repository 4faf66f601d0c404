// Package runlog mirrors every line of a setup run to a plain-text log file.
// Each line is timestamped and has terminal escape sequences stripped, so the
// file records what the subprocess said rather than how it was styled.
package runlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/forgeworks/forge-setup/internal/ansi"
)

// Writer appends timestamped lines to the run log. It is safe for concurrent
// use. A nil *Writer is a valid no-op writer.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// New creates the run log at path, appending if it already exists.
func New(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	return &Writer{file: f, now: time.Now}, nil
}

// Line appends one line, prefixed with the wall-clock time and with ANSI
// escapes removed. Calling Line on a nil Writer is a no-op.
func (w *Writer) Line(s string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.file, "[%s] %s\n", w.now().Format("15:04:05"), ansi.Strip(s))
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Writer is a no-op.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("runlog: close: %w", err)
	}
	return nil
}
