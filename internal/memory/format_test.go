package memory

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func sampleSession() *Session {
	return &Session{
		ID:            "20250314-092653",
		StartedAt:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		LastActive:    time.Date(2025, 3, 14, 10, 2, 0, 0, time.UTC),
		Branch:        "feature/x",
		Cwd:           "/repo",
		FilesModified: []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go"},
		Summary:       "- Added the gate\n- Wrote tests for the store and the journal step",
		Tags:          []string{"api", "perf"},
		StopCount:     3,
	}
}

func TestFormatSession(t *testing.T) {
	out := FormatSession(sampleSession(), false)

	for _, want := range []string{
		"**[20250314-092653]** 2025-03-14 09:26:53 -> 2025-03-14 10:02:00",
		"Branch: `feature/x` | Dir: `/repo` | Stops: 3",
		"Tags: api,perf",
		"Files (6): a.go, b.go, c.go, d.go, e.go",
		"... and 1 more",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	verbose := FormatSession(sampleSession(), true)
	if !strings.Contains(verbose, "  - f.go") || strings.Contains(verbose, "more") {
		t.Errorf("verbose output should list every file:\n%s", verbose)
	}
}

func TestFormatOneliner(t *testing.T) {
	s := sampleSession()
	got := FormatOneliner(s)
	want := `Last session: 2025-03-14 10:02 | feature/x | 6 files | "- Added the gate - Wrote tests for the store and the jour..."`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}

	s.Summary = ""
	if got := FormatOneliner(s); got != "Last session: 2025-03-14 10:02 | feature/x | 6 files modified" {
		t.Errorf("unexpected oneliner without summary: %s", got)
	}
}

func TestFormatStats(t *testing.T) {
	st := Stats{Total: 3, WithSummary: 2, OldestDate: "2025-01-01", NewestDate: "2025-03-14", Branches: []string{"main"}}
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	out := FormatStats(st, "/repo/.ultra/memory/memory.db", 2048, now.Add(-2*time.Hour), now)
	for _, want := range []string{"Sessions:        3", "Without summary: 1", "(2 hours ago)", "(2.048kB)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestClipProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		max := rapid.IntRange(4, 80).Draw(rt, "max")

		got := Clip(s, max)
		n := utf8.RuneCountInString(got)
		if n > max {
			rt.Fatalf("clipped to %d runes, max %d", n, max)
		}
		if utf8.RuneCountInString(s) <= max && got != s {
			rt.Fatalf("short input changed: %q -> %q", s, got)
		}
		if utf8.RuneCountInString(s) > max && !strings.HasSuffix(got, "...") {
			rt.Fatalf("long input not marked: %q", got)
		}
	})
}
