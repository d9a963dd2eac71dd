package memory

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Session is one coalesced burst of work on a branch and directory.
type Session struct {
	ID            string
	StartedAt     time.Time
	LastActive    time.Time
	Branch        string
	Cwd           string
	FilesModified []string
	Summary       string
	Tags          []string
	StopCount     int
}

// Stats summarizes the store contents.
type Stats struct {
	Total       int
	WithSummary int
	OldestDate  string // YYYY-MM-DD of the earliest started_at, empty when no rows
	NewestDate  string // YYYY-MM-DD of the latest last_active, empty when no rows
	Branches    []string
}

// WithoutSummary is the number of sessions still waiting for a summary.
func (s Stats) WithoutSummary() int { return s.Total - s.WithSummary }

// timeLayout is fixed width so that lexical order in SQL equals time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// idLayout produces sortable, second-resolution session ids.
const idLayout = "20060102-150405"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by older tools may carry RFC 3339 offsets
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// unionSorted merges file lists into a sorted, duplicate-free set.
func unionSorted(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, f := range list {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func encodeFiles(files []string) string {
	if len(files) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(files)
	return string(data)
}

func decodeFiles(raw string) []string {
	var files []string
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil
	}
	return files
}

// splitTags parses a comma-separated tag list, trimming blanks.
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
