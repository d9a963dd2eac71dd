// Package logging builds the diagnostic loggers used by hooks.
//
// Hooks own stdout for the JSON protocol, so diagnostics go to stderr.
// The detached summarizer has no stderr at all and appends to a file instead.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// To returns a logger writing to w tagged with the component name.
func To(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", 0)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OpenFile returns a logger appending timestamped lines to path.
// The returned closer must be closed by the caller.
func OpenFile(path, component string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return log.New(f, "["+component+"] ", log.LstdFlags|log.LUTC), f, nil
}
