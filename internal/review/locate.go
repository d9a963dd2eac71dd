package review

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Session is a located review session directory.
type Session struct {
	ID      string
	Dir     string
	Branch  string    // from the index entry or the summary; may be empty
	Time    time.Time // summary timestamp, else directory mtime
	Scoped  bool      // found through the branch index
	Summary *Summary  // nil while the review is incomplete or unusable
	Err     error     // why Summary is nil
}

// Complete reports whether the coordinator produced a valid summary.
func (s *Session) Complete() bool { return s.Summary != nil }

// Unusable reports whether SUMMARY.json exists but could not be read or
// failed validation. Such a session is not evidence of a review at all.
func (s *Session) Unusable() bool {
	return s.Summary == nil && s.Err != nil && !errors.Is(s.Err, ErrNoSummary)
}

// Age returns how long ago the session was last touched.
func (s *Session) Age(now time.Time) time.Duration { return now.Sub(s.Time) }

// Locate finds the most recent review session for branch under reviewsDir.
//
// With an index.json present only entries for branch are considered and a
// branch without entries has no review. Without an index the most recently
// modified session directory is returned whatever branch it belongs to.
// A nil session means there is no review artifact at all.
func Locate(reviewsDir, branch string) (*Session, error) {
	if _, err := os.Stat(reviewsDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	idx, err := LoadIndex(reviewsDir)
	if err == nil {
		var match *IndexEntry
		for i := range idx.Sessions {
			if idx.Sessions[i].Branch == branch {
				match = &idx.Sessions[i]
			}
		}
		if match == nil {
			return nil, nil
		}
		sess, err := loadSession(filepath.Join(reviewsDir, match.ID), match.ID)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Scoped = true
		sess.Branch = branch
		return sess, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return nil, fmt.Errorf("review: load index: %w", err)
		}
		// a malformed index is treated as absent
	}

	return newestSession(reviewsDir)
}

func newestSession(reviewsDir string) (*Session, error) {
	entries, err := os.ReadDir(reviewsDir)
	if err != nil {
		return nil, fmt.Errorf("review: list sessions: %w", err)
	}

	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest, newestTime = entry.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return nil, nil
	}

	sess, err := loadSession(filepath.Join(reviewsDir, newest), newest)
	if err != nil {
		return nil, err
	}
	if sess.Summary != nil {
		sess.Branch = sess.Summary.Branch
	}
	return sess, nil
}

func loadSession(dir, id string) (*Session, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: id, Dir: dir, Time: info.ModTime()}
	summary, err := LoadSummary(dir)
	if err != nil {
		sess.Err = err
		return sess, nil
	}
	sess.Summary = summary
	if t, ok := summary.CreatedAt(); ok {
		sess.Time = t
	}
	return sess, nil
}
