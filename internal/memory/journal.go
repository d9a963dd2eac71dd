package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JournalEntry is one line of the append-only session log.
type JournalEntry struct {
	Timestamp     time.Time `json:"ts"`
	SessionID     string    `json:"sid"`
	Branch        string    `json:"branch"`
	Cwd           string    `json:"cwd"`
	Files         []string  `json:"files"`
	AutoSummary   string    `json:"auto_summary"`
	HasTranscript bool      `json:"has_transcript"`
}

// AppendJournal appends e as a single JSON line to path.
func AppendJournal(path string, e JournalEntry) error {
	if e.Files == nil {
		e.Files = []string{}
	}
	e.Timestamp = e.Timestamp.UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("memory: encode journal entry: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("memory: create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("memory: open journal: %w", err)
	}
	defer f.Close()

	// one write per line keeps concurrent appends from interleaving
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("memory: append journal: %w", err)
	}
	return nil
}
