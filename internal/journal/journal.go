// Package journal records the end of an agent session: it merges the event
// into the session store, seeds a summary from recent commit messages, starts
// the background summarizer and appends a line to the JSONL backup log.
package journal

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/rocky2431/ultra-builder-pro/internal/gitutil"
	"github.com/rocky2431/ultra-builder-pro/internal/memory"
	"github.com/rocky2431/ultra-builder-pro/internal/summarize"
)

// ErrNoBranch means the working directory is not on a git branch.
var ErrNoBranch = errors.New("journal: no git branch")

const maxAutoSummary = 200

// Git is the repository state the journal reads.
type Git interface {
	Branch(ctx context.Context) (string, error)
	Status(ctx context.Context) ([]gitutil.Change, error)
	CommitSubjects(ctx context.Context, window time.Duration) ([]string, error)
}

// Store is the part of the session store the journal writes.
type Store interface {
	Upsert(ctx context.Context, branch, cwd string, files []string, window time.Duration) (string, error)
	FillSummaryIfEmpty(ctx context.Context, id, text string) (bool, error)
}

// Event is the session-end input from the host.
type Event struct {
	Cwd            string
	TranscriptPath string
}

// Options configures Record.
type Options struct {
	MergeWindow  time.Duration
	CommitWindow time.Duration
	DBPath       string
	JournalPath  string
	Spawner      summarize.Spawner // optional
	Logger       *log.Logger
	Now          func() time.Time
}

// Result describes what Record did.
type Result struct {
	SessionID   string
	Branch      string
	Files       []string
	AutoSummary string
	Spawned     bool
}

// Record runs the journal steps. Only a missing branch stops it early; the
// other steps are independent and their failures are logged. store may be
// nil when the database could not be opened.
func Record(ctx context.Context, git Git, store Store, ev Event, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[session_journal] ", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	branch, err := git.Branch(ctx)
	if err != nil || branch == "" {
		if err != nil {
			logger.Printf("no branch: %v", err)
		}
		return Result{}, ErrNoBranch
	}
	res := Result{Branch: branch}

	if changes, err := git.Status(ctx); err != nil {
		logger.Printf("git status: %v", err)
	} else {
		for _, ch := range changes {
			res.Files = append(res.Files, ch.Path)
		}
	}

	if subjects, err := git.CommitSubjects(ctx, opts.CommitWindow); err != nil {
		logger.Printf("git log: %v", err)
	} else {
		res.AutoSummary = CommitSummary(subjects)
	}

	if store != nil {
		id, err := store.Upsert(ctx, branch, ev.Cwd, res.Files, opts.MergeWindow)
		if err != nil {
			logger.Printf("DB error: %v", err)
		} else {
			res.SessionID = id
		}
	}

	if res.SessionID != "" && res.AutoSummary != "" {
		if _, err := store.FillSummaryIfEmpty(ctx, res.SessionID, res.AutoSummary); err != nil {
			logger.Printf("commit summary: %v", err)
		}
	}

	if opts.Spawner != nil && ev.TranscriptPath != "" && res.SessionID != "" {
		job := summarize.Job{SessionID: res.SessionID, TranscriptPath: ev.TranscriptPath, DBPath: opts.DBPath}
		if err := opts.Spawner.Spawn(job); err != nil {
			logger.Printf("spawn summarizer: %v", err)
		} else {
			res.Spawned = true
		}
	}

	if opts.JournalPath != "" {
		entry := memory.JournalEntry{
			Timestamp:     now(),
			SessionID:     res.SessionID,
			Branch:        branch,
			Cwd:           ev.Cwd,
			Files:         res.Files,
			AutoSummary:   res.AutoSummary,
			HasTranscript: ev.TranscriptPath != "",
		}
		if err := memory.AppendJournal(opts.JournalPath, entry); err != nil {
			logger.Printf("JSONL error: %v", err)
		}
	}

	return res, nil
}

// CommitSummary joins unique commit subjects with " + ", clipped to 200 chars.
func CommitSummary(subjects []string) string {
	seen := make(map[string]bool, len(subjects))
	var unique []string
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, s)
	}
	return memory.Clip(strings.Join(unique, " + "), maxAutoSummary)
}
