package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Recalculate derives a verdict from severity counts: any P0 or more than
// three P1 findings request changes, remaining P1 findings comment.
func Recalculate(counts map[string]int) Verdict {
	switch p0, p1 := counts["P0"], counts["P1"]; {
	case p0 > 0, p1 > 3:
		return VerdictRequestChanges
	case p1 > 0:
		return VerdictComment
	default:
		return VerdictApprove
	}
}

// UpdateResult describes what UpdateVerdict changed.
type UpdateResult struct {
	Old, New     Verdict
	IndexUpdated bool
}

// Changed reports whether the verdict moved.
func (r UpdateResult) Changed() bool { return r.Old != r.New }

// UpdateVerdict rewrites the verdict of the session in sessionDir, either to
// forced or, when forced is empty, to the verdict Recalculate derives from
// the current counts. The matching index.json entry follows. Fields this
// package does not model are preserved.
func UpdateVerdict(sessionDir string, forced Verdict) (UpdateResult, error) {
	summary, _, err := readSummary(sessionDir)
	if err != nil {
		return UpdateResult{}, err
	}

	res := UpdateResult{Old: summary.Verdict, New: forced}
	if res.New == "" {
		res.New = Recalculate(summary.Counts())
	}
	if !res.Changed() {
		return res, nil
	}

	summaryPath := filepath.Join(sessionDir, SummaryFile)
	err = rewriteJSON(summaryPath, func(doc map[string]any) {
		doc["verdict"] = string(res.New)
	})
	if err != nil {
		return res, err
	}

	indexPath := filepath.Join(filepath.Dir(sessionDir), IndexFile)
	if _, err := os.Stat(indexPath); err != nil {
		return res, nil
	}
	id := filepath.Base(sessionDir)
	counts := summary.Counts()
	err = rewriteJSON(indexPath, func(doc map[string]any) {
		sessions, _ := doc["sessions"].([]any)
		for _, raw := range sessions {
			entry, ok := raw.(map[string]any)
			if !ok || entry["id"] != id {
				continue
			}
			entry["verdict"] = string(res.New)
			entry["p0"] = counts["P0"]
			entry["p1"] = counts["P1"]
			res.IndexUpdated = true
			return
		}
	})
	return res, err
}

// rewriteJSON loads path as a JSON object, applies edit and atomically
// replaces the file.
func rewriteJSON(path string, edit func(map[string]any)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("review: read %s: %w", filepath.Base(path), err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("review: decode %s: %w", filepath.Base(path), err)
	}

	edit(doc)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("review: encode %s: %w", filepath.Base(path), err)
	}
	out = append(out, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("review: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("review: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("review: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("review: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
