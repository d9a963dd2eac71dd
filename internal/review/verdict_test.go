package review

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecalculate(t *testing.T) {
	tests := []struct {
		counts map[string]int
		want   Verdict
	}{
		{map[string]int{"P0": 1}, VerdictRequestChanges},
		{map[string]int{"P1": 4}, VerdictRequestChanges},
		{map[string]int{"P1": 3}, VerdictComment},
		{map[string]int{"P1": 1, "P2": 9}, VerdictComment},
		{map[string]int{"P2": 5}, VerdictApprove},
		{nil, VerdictApprove},
	}
	for _, tt := range tests {
		if got := Recalculate(tt.counts); got != tt.want {
			t.Errorf("Recalculate(%v) = %s, want %s", tt.counts, got, tt.want)
		}
	}
}

func TestUpdateVerdictRecalculates(t *testing.T) {
	reviews := t.TempDir()
	dir := makeSession(t, reviews, "r1", map[string]any{
		"verdict": "REQUEST_CHANGES",
		"summary": map[string]any{"by_severity": map[string]int{"P0": 0, "P1": 2}},
		"notes":   "keep me",
	}, time.Now())
	writeJSON(t, filepath.Join(reviews, IndexFile), map[string]any{
		"sessions": []map[string]any{
			{"id": "r0", "branch": "main", "verdict": "APPROVE"},
			{"id": "r1", "branch": "main", "verdict": "REQUEST_CHANGES", "p0": 1, "p1": 2, "created_at": "x"},
		},
	})

	res, err := UpdateVerdict(dir, "")
	if err != nil {
		t.Fatalf("UpdateVerdict failed: %v", err)
	}
	if res.Old != VerdictRequestChanges || res.New != VerdictComment || !res.Changed() || !res.IndexUpdated {
		t.Fatalf("unexpected result %+v", res)
	}

	var summary map[string]any
	data, _ := os.ReadFile(filepath.Join(dir, SummaryFile))
	json.Unmarshal(data, &summary)
	if summary["verdict"] != "COMMENT" || summary["notes"] != "keep me" {
		t.Errorf("summary not rewritten faithfully: %v", summary)
	}

	idx, err := LoadIndex(reviews)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	entry := idx.Sessions[1]
	if entry.Verdict != VerdictComment || entry.P0 != 0 || entry.P1 != 2 {
		t.Errorf("index entry not updated: %+v", entry)
	}
	if idx.Sessions[0].Verdict != VerdictApprove {
		t.Errorf("other entries must not change")
	}
}

func TestUpdateVerdictForcedAndUnchanged(t *testing.T) {
	dir := makeSession(t, t.TempDir(), "r", map[string]any{"verdict": "APPROVE"}, time.Now())

	res, err := UpdateVerdict(dir, VerdictApprove)
	if err != nil || res.Changed() {
		t.Fatalf("expected no change, got %+v %v", res, err)
	}

	res, err = UpdateVerdict(dir, VerdictRequestChanges)
	if err != nil || !res.Changed() || res.IndexUpdated {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	s, _ := LoadSummary(dir)
	if s.Verdict != VerdictRequestChanges {
		t.Errorf("forced verdict not written: %s", s.Verdict)
	}
}

func TestUpdateVerdictMissingSummary(t *testing.T) {
	if _, err := UpdateVerdict(t.TempDir(), ""); err == nil {
		t.Fatal("expected error without SUMMARY.json")
	}
}
