package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rocky2431/ultra-builder-pro/internal/memory"
)

// ErrEmptyTranscript means the transcript had nothing worth summarizing.
var ErrEmptyTranscript = errors.New("summarize: empty transcript")

// Job identifies one summarization run.
type Job struct {
	SessionID      string
	TranscriptPath string
	DBPath         string
}

// Store is the part of the session store the worker writes to.
type Store interface {
	UpdateSummary(ctx context.Context, id, text string) (bool, error)
	Get(ctx context.Context, id string) (*memory.Session, error)
}

// Indexer receives stored summaries for the semantic index.
type Indexer interface {
	IndexSession(s *memory.Session) error
}

// Worker runs the summarization pipeline.
type Worker struct {
	Store  Store
	Index  Indexer // optional
	Chain  *Chain
	Delay  time.Duration
	Budget int
	Head   int
	Logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Run waits for the transcript to settle, summarizes it and stores the
// result. The returned summary is empty when nothing was written.
func (w *Worker) Run(ctx context.Context, job Job) (string, error) {
	logger := w.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[summarize] ", 0)
	}
	run := uuid.NewString()[:8]
	logger.Printf("run=%s session=%s start", run, job.SessionID)

	sleep := w.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if err := sleep(ctx, w.Delay); err != nil {
		return "", err
	}

	text, err := ExtractTranscript(job.TranscriptPath)
	if err != nil {
		return "", err
	}
	if text == "" {
		logger.Printf("run=%s session=%s nothing to summarize", run, job.SessionID)
		return "", ErrEmptyTranscript
	}

	excerpt := Excerpt(text, w.Budget, w.Head)
	summary, channel, err := w.Chain.Summarize(ctx, BuildPrompt(excerpt))
	if err != nil {
		logger.Printf("run=%s session=%s abandoned: %v", run, job.SessionID, err)
		return "", err
	}

	updated, err := w.Store.UpdateSummary(ctx, job.SessionID, summary)
	if err != nil {
		return "", fmt.Errorf("summarize: store summary: %w", err)
	}
	if !updated {
		logger.Printf("run=%s session=%s no longer exists, summary dropped", run, job.SessionID)
		return "", nil
	}
	logger.Printf("run=%s session=%s stored summary channel=%s chars=%d excerpt=%d",
		run, job.SessionID, channel, len(summary), len(excerpt))

	if w.Index != nil {
		w.index(ctx, logger, run, job.SessionID)
	}
	return summary, nil
}

func (w *Worker) index(ctx context.Context, logger *log.Logger, run, id string) {
	sess, err := w.Store.Get(ctx, id)
	if err != nil || sess == nil {
		logger.Printf("run=%s session=%s reload for index failed: %v", run, id, err)
		return
	}
	if err := w.Index.IndexSession(sess); err != nil {
		logger.Printf("run=%s session=%s semantic index: %v", run, id, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
