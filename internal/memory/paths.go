package memory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rocky2431/ultra-builder-pro/internal/config"
)

const (
	dbFile      = "memory.db"
	journalFile = "sessions.jsonl"
	workerLog   = "summarize.log"
)

// ProjectDBPath returns the database location inside a repository.
func ProjectDBPath(repoRoot string) string {
	return filepath.Join(repoRoot, config.UltraDir, "memory", dbFile)
}

// FallbackDBPath returns the user-wide database used outside repositories.
func FallbackDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("memory: resolve home: %w", err)
	}
	return filepath.Join(home, ".claude", "memory", dbFile), nil
}

// ResolveDBPath picks override, then the repository database, then the
// user-wide fallback.
func ResolveDBPath(override, repoRoot string) (string, error) {
	if override != "" {
		return override, nil
	}
	if repoRoot != "" {
		return ProjectDBPath(repoRoot), nil
	}
	return FallbackDBPath()
}

// JournalPath returns the NDJSON event log kept beside dbPath.
func JournalPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), journalFile)
}

// SemanticIndexPath returns the bleve index directory kept beside dbPath.
func SemanticIndexPath(dbPath string) string {
	return dbPath + ".bleve"
}

// WorkerLogPath returns the log file of the background summarizer.
func WorkerLogPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), workerLog)
}
