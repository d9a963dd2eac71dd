package gate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerPrefix starts the name of every marker file.
const MarkerPrefix = ".ultra_gate_"

// Markers records which denial causes were already reported. A marker is a
// file whose only content is the time it was written.
type Markers struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewMarkers stores markers in dir (the system temp dir when empty) and
// treats markers older than ttl as expired.
func NewMarkers(dir string, ttl time.Duration) *Markers {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Markers{dir: dir, ttl: ttl, now: time.Now}
}

// Sweep deletes expired markers and returns how many were removed.
func (m *Markers) Sweep() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("gate: list markers: %w", err)
	}

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), MarkerPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Claim creates the marker for key. It reports true when this call created
// it, false when it already existed. Creation is exclusive, so two racing
// callers never both see true.
func (m *Markers) Claim(key string) (bool, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return false, fmt.Errorf("gate: create marker dir: %w", err)
	}

	f, err := os.OpenFile(m.Path(key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gate: create marker: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(m.now().UTC().Format(time.RFC3339)); err != nil {
		return true, fmt.Errorf("gate: write marker: %w", err)
	}
	return true, nil
}

// Path returns the marker file for key.
func (m *Markers) Path(key string) string {
	return filepath.Join(m.dir, MarkerPrefix+sanitizeKey(key))
}

func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, key)
}
