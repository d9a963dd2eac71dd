package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitMode selects what Wait waits for.
type WaitMode int

const (
	// WaitAgents waits for a number of review-*.json agent reports.
	WaitAgents WaitMode = iota
	// WaitSummary waits for a parseable SUMMARY.json.
	WaitSummary
)

const (
	DefaultWaitTimeout = 5 * time.Minute
	DefaultPollEvery   = 2 * time.Second
)

// ErrNotADirectory is returned when the session path is not a directory.
var ErrNotADirectory = errors.New("review: session directory not found")

// WaitOptions configures Wait.
type WaitOptions struct {
	Mode      WaitMode
	Count     int // agents expected, WaitAgents only
	Timeout   time.Duration
	PollEvery time.Duration
	// Progress, if set, receives a status line on every poll.
	Progress func(status string)
}

// WaitResult is the outcome of Wait. Done is false on timeout.
type WaitResult struct {
	Done    bool
	Message string
}

// Wait blocks until the review session in dir reaches the requested state or
// the timeout expires. Directory events wake it early; a periodic poll covers
// filesystems without notifications.
func Wait(ctx context.Context, dir string, opts WaitOptions) (WaitResult, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return WaitResult{}, fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}
	if opts.Mode == WaitAgents && opts.Count <= 0 {
		return WaitResult{}, errors.New("review: agent count must be positive")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWaitTimeout
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = DefaultPollEvery
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(dir); err == nil {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	ticker := time.NewTicker(opts.PollEvery)
	defer ticker.Stop()

	for {
		if msg, ok := checkOnce(dir, opts); ok {
			return WaitResult{Done: true, Message: msg}, nil
		}
		if opts.Progress != nil {
			opts.Progress(progressLine(dir, opts, time.Until(deadline)))
		}

		select {
		case <-ctx.Done():
			return WaitResult{Message: timeoutMessage(dir, opts)}, nil
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}

func agentReports(dir string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, "review-*.json"))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(names)
	return names
}

func checkOnce(dir string, opts WaitOptions) (string, bool) {
	switch opts.Mode {
	case WaitAgents:
		names := agentReports(dir)
		if len(names) >= opts.Count {
			return fmt.Sprintf("All %d agents complete: %s", opts.Count, strings.Join(names, ", ")), true
		}
	case WaitSummary:
		s, _, err := readSummary(dir)
		if err != nil {
			return "", false
		}
		verdict := s.Verdict
		if verdict == "" {
			verdict = "UNKNOWN"
		}
		return fmt.Sprintf("Review complete: %s (P0:%d P1:%d total:%d)", verdict, s.P0, s.P1, s.Total), true
	}
	return "", false
}

func progressLine(dir string, opts WaitOptions, remaining time.Duration) string {
	secs := int(remaining.Seconds())
	if opts.Mode == WaitAgents {
		return fmt.Sprintf("Waiting: %d/%d agents done (%ds remaining)", len(agentReports(dir)), opts.Count, secs)
	}
	return fmt.Sprintf("Waiting for coordinator (%ds remaining)", secs)
}

func timeoutMessage(dir string, opts WaitOptions) string {
	if opts.Mode == WaitAgents {
		return fmt.Sprintf("Timeout: %d/%d agents completed", len(agentReports(dir)), opts.Count)
	}
	return "Timeout: coordinator did not produce SUMMARY.json"
}
