package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
)

const (
	briefFiles   = 5
	verboseFiles = 15
	onelinerMax  = 60
)

// FormatSession renders a session as a short markdown block.
func FormatSession(s *Session, verbose bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**[%s]** %s -> %s\n", s.ID, displayTime(s.StartedAt), displayTime(s.LastActive))
	fmt.Fprintf(&b, "  Branch: `%s` | Dir: `%s` | Stops: %d\n", orUnknown(s.Branch), orUnknown(s.Cwd), s.StopCount)

	if s.Summary != "" {
		fmt.Fprintf(&b, "  Summary: %s\n", s.Summary)
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "  Tags: %s\n", strings.Join(s.Tags, ","))
	}

	files := s.FilesModified
	switch {
	case len(files) == 0:
	case verbose:
		for _, f := range files[:min(len(files), verboseFiles)] {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
		if len(files) > verboseFiles {
			fmt.Fprintf(&b, "  ... and %d more\n", len(files)-verboseFiles)
		}
	default:
		shown := files[:min(len(files), briefFiles)]
		fmt.Fprintf(&b, "  Files (%d): %s\n", len(files), strings.Join(shown, ", "))
		if len(files) > briefFiles {
			fmt.Fprintf(&b, "  ... and %d more\n", len(files)-briefFiles)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatOneliner renders the single line injected at session start.
func FormatOneliner(s *Session) string {
	date := s.LastActive.UTC().Format("2006-01-02 15:04")
	branch := orUnknown(s.Branch)
	n := len(s.FilesModified)

	if s.Summary == "" {
		return fmt.Sprintf("Last session: %s | %s | %d files modified", date, branch, n)
	}
	summary := strings.Join(strings.Fields(s.Summary), " ")
	return fmt.Sprintf("Last session: %s | %s | %d files | \"%s\"", date, branch, n, Clip(summary, onelinerMax))
}

// FormatStats renders Stats for the CLI. sizeBytes < 0 omits the size line.
func FormatStats(st Stats, dbPath string, sizeBytes int64, lastActive time.Time, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sessions:        %d\n", st.Total)
	fmt.Fprintf(&b, "With summary:    %d\n", st.WithSummary)
	fmt.Fprintf(&b, "Without summary: %d\n", st.WithoutSummary())
	if st.OldestDate != "" {
		fmt.Fprintf(&b, "Oldest:          %s\n", st.OldestDate)
	}
	if st.NewestDate != "" {
		fmt.Fprintf(&b, "Newest:          %s", st.NewestDate)
		if !lastActive.IsZero() {
			fmt.Fprintf(&b, " (%s ago)", units.HumanDuration(now.Sub(lastActive)))
		}
		b.WriteString("\n")
	}
	if len(st.Branches) > 0 {
		fmt.Fprintf(&b, "Branches:        %s\n", strings.Join(st.Branches, ", "))
	}
	fmt.Fprintf(&b, "Database:        %s", dbPath)
	if sizeBytes >= 0 {
		fmt.Fprintf(&b, " (%s)", units.HumanSize(float64(sizeBytes)))
	}
	return b.String()
}

// Clip shortens s to at most max runes, marking the cut with "...".
func Clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func displayTime(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
