package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWaitSummaryAppears(t *testing.T) {
	dir := t.TempDir()

	go func() {
		time.Sleep(50 * time.Millisecond)
		tmp := filepath.Join(dir, ".summary.tmp")
		os.WriteFile(tmp, []byte(`{"verdict":"APPROVE","p0":0,"p1":1,"total":3}`), 0644)
		os.Rename(tmp, filepath.Join(dir, SummaryFile))
	}()

	res, err := Wait(context.Background(), dir, WaitOptions{
		Mode: WaitSummary, Timeout: 5 * time.Second, PollEvery: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !res.Done || res.Message != "Review complete: APPROVE (P0:0 P1:1 total:3)" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWaitAgentsTimeout(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "review-security.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	var progress []string
	res, err := Wait(context.Background(), dir, WaitOptions{
		Mode: WaitAgents, Count: 2, Timeout: 100 * time.Millisecond, PollEvery: 20 * time.Millisecond,
		Progress: func(s string) { progress = append(progress, s) },
	})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Done || res.Message != "Timeout: 1/2 agents completed" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(progress) == 0 || !strings.HasPrefix(progress[0], "Waiting: 1/2 agents done") {
		t.Errorf("unexpected progress %v", progress)
	}
}

func TestWaitAgentsComplete(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"review-code", "review-tests"} {
		os.WriteFile(filepath.Join(dir, name+".json"), []byte("{}"), 0644)
	}

	res, err := Wait(context.Background(), dir, WaitOptions{Mode: WaitAgents, Count: 2, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !res.Done || res.Message != "All 2 agents complete: review-code, review-tests" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWaitInvalidDir(t *testing.T) {
	_, err := Wait(context.Background(), filepath.Join(t.TempDir(), "missing"), WaitOptions{Mode: WaitSummary})
	if !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("expected ErrNotADirectory, got %v", err)
	}
}
