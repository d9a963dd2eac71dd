// Package review reads the artifacts the code-review pipeline leaves under
// .ultra/reviews: one directory per review session holding SUMMARY.json, and
// an optional index.json listing sessions per branch.
package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const (
	SummaryFile = "SUMMARY.json"
	IndexFile   = "index.json"
)

// Verdict is the outcome the review coordinator assigned.
type Verdict string

const (
	VerdictPending        Verdict = "PENDING"
	VerdictApprove        Verdict = "APPROVE"
	VerdictComment        Verdict = "COMMENT"
	VerdictRequestChanges Verdict = "REQUEST_CHANGES"
)

// ParseVerdict accepts a verdict name in any case.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerdictPending, VerdictApprove, VerdictComment, VerdictRequestChanges:
		return v, nil
	}
	return "", fmt.Errorf("review: unknown verdict %q", s)
}

// ErrNoSummary means the session directory has no SUMMARY.json yet.
var ErrNoSummary = errors.New("review: no summary")

// ValidationError lists the schema violations of a review document.
type ValidationError struct {
	Document string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("review: invalid %s: %s", e.Document, strings.Join(e.Errors, "; "))
}

const summarySchema = `{
	"type": "object",
	"required": ["verdict"],
	"properties": {
		"verdict": {"type": "string", "enum": ["PENDING", "APPROVE", "COMMENT", "REQUEST_CHANGES"]},
		"p0": {"type": "integer", "minimum": 0},
		"p1": {"type": "integer", "minimum": 0},
		"total": {"type": "integer", "minimum": 0},
		"branch": {"type": "string"},
		"timestamp": {"type": "string"},
		"summary": {
			"type": "object",
			"properties": {
				"by_severity": {"type": "object", "additionalProperties": {"type": "integer", "minimum": 0}}
			}
		}
	}
}`

const indexSchema = `{
	"type": "object",
	"required": ["sessions"],
	"properties": {
		"sessions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"branch": {"type": "string"},
					"verdict": {"type": "string"},
					"p0": {"type": "integer"},
					"p1": {"type": "integer"}
				}
			}
		}
	}
}`

func validate(document, schema string, data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return &ValidationError{Document: document, Errors: []string{err.Error()}}
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &ValidationError{Document: document, Errors: msgs}
	}
	return nil
}

// Summary is the coordinator's SUMMARY.json.
type Summary struct {
	Verdict   Verdict        `json:"verdict"`
	P0        int            `json:"p0"`
	P1        int            `json:"p1"`
	Total     int            `json:"total"`
	Branch    string         `json:"branch,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Details   SummaryDetails `json:"summary"`
}

// SummaryDetails holds the per-severity breakdown.
type SummaryDetails struct {
	BySeverity map[string]int `json:"by_severity,omitempty"`
}

// Counts returns finding counts keyed by severity class. The detailed
// breakdown wins over the top-level p0/p1 fields when present.
func (s *Summary) Counts() map[string]int {
	if len(s.Details.BySeverity) > 0 {
		return s.Details.BySeverity
	}
	return map[string]int{"P0": s.P0, "P1": s.P1}
}

// naiveLayouts are timestamps written without a zone; they are local time.
var naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

// CreatedAt parses Timestamp; ok is false when it is absent or malformed.
func (s *Summary) CreatedAt() (t time.Time, ok bool) {
	if s.Timestamp == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s.Timestamp); err == nil {
		return t, true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s.Timestamp, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// readSummary decodes SUMMARY.json without schema checks. An absent or
// empty file is ErrNoSummary; anything else that fails is a real error.
func readSummary(dir string) (*Summary, []byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNoSummary
	}
	if err != nil {
		return nil, nil, fmt.Errorf("review: read summary: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil, ErrNoSummary
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, nil, fmt.Errorf("review: decode summary: %w", err)
	}
	return &s, data, nil
}

// LoadSummary reads and validates SUMMARY.json in dir.
func LoadSummary(dir string) (*Summary, error) {
	s, data, err := readSummary(dir)
	if err != nil {
		return nil, err
	}
	if err := validate(SummaryFile, summarySchema, data); err != nil {
		return nil, err
	}
	return s, nil
}

// Index is the optional reviews/index.json.
type Index struct {
	Sessions []IndexEntry `json:"sessions"`
}

// IndexEntry is one review session as listed in the index.
type IndexEntry struct {
	ID      string  `json:"id"`
	Branch  string  `json:"branch,omitempty"`
	Verdict Verdict `json:"verdict,omitempty"`
	P0      int     `json:"p0"`
	P1      int     `json:"p1"`
}

// LoadIndex reads and validates index.json in reviewsDir.
// A missing index returns os.ErrNotExist.
func LoadIndex(reviewsDir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(reviewsDir, IndexFile))
	if err != nil {
		return nil, err
	}
	if err := validate(IndexFile, indexSchema, data); err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("review: decode index: %w", err)
	}
	return &idx, nil
}
