package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rocky2431/ultra-builder-pro/internal/memory"
	"github.com/rocky2431/ultra-builder-pro/internal/summarize"
)

type recordingSpawner struct{ jobs []summarize.Job }

func (r *recordingSpawner) Spawn(job summarize.Job) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func stopInput(cwd string) string {
	return fmt.Sprintf(`{"session_id":"abc","hook_event_name":"Stop","cwd":%q,"stop_hook_active":false}`, cwd)
}

func TestStopGateNoOpinionOnBadInput(t *testing.T) {
	isolateEnv(t)
	for _, input := range []string{"", "not json", "[1,2]"} {
		out, _, code := runCmd(t, input, "hook", "stop-gate")
		if code != 0 || strings.TrimSpace(out) != "{}" {
			t.Errorf("input %q: got %q (exit %d)", input, out, code)
		}
	}
}

func TestStopGateOutsideGitAllows(t *testing.T) {
	isolateEnv(t)
	out, _, code := runCmd(t, stopInput(t.TempDir()), "hook", "stop-gate")
	if code != 0 || strings.TrimSpace(out) != "{}" {
		t.Errorf("got %q (exit %d)", out, code)
	}
}

func TestStopGateCodeChangeDeniesOnce(t *testing.T) {
	isolateEnv(t)
	repo := gitRepo(t)
	if err := os.WriteFile(filepath.Join(repo, "app.ts"), []byte("export const x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, _ := runCmd(t, stopInput(repo), "hook", "stop-gate")
	var doc struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if doc.Decision != "block" || !strings.Contains(doc.Reason, "app.ts") {
		t.Fatalf("expected a block naming app.ts, got %q", out)
	}

	out, stderr, _ := runCmd(t, stopInput(repo), "hook", "stop-gate")
	if strings.TrimSpace(out) != "{}" {
		t.Errorf("second stop should be allowed, got %q", out)
	}
	if !strings.Contains(stderr, "code-reviewer") {
		t.Errorf("the reminder should still reach stderr, got %q", stderr)
	}
}

func TestStopGateApprovedReview(t *testing.T) {
	isolateEnv(t)
	repo := gitRepo(t)
	os.WriteFile(filepath.Join(repo, "app.ts"), []byte("export const x = 2\n"), 0644)

	dir := filepath.Join(repo, ".ultra", "reviews", "20250314-101010")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "SUMMARY.json"), []byte(`{"verdict":"APPROVE","p0":0,"p1":0}`), 0644)

	out, _, _ := runCmd(t, stopInput(repo), "hook", "stop-gate")
	if strings.TrimSpace(out) != "{}" {
		t.Errorf("approved review should allow, got %q", out)
	}
}

func TestJournalHook(t *testing.T) {
	dbPath := isolateEnv(t)
	repo := gitRepo(t)
	os.WriteFile(filepath.Join(repo, "app.ts"), []byte("export const y = 1\n"), 0644)

	rec := &recordingSpawner{}
	orig := spawner
	spawner = rec
	t.Cleanup(func() { spawner = orig })

	input := fmt.Sprintf(`{"session_id":"abc","hook_event_name":"Stop","cwd":%q,"transcript_path":"/tmp/t.jsonl"}`, repo)
	out, stderr, code := runCmd(t, input, "hook", "journal")
	if code != 0 || strings.TrimSpace(out) != "{}" {
		t.Fatalf("journal output %q (exit %d), stderr %q", out, code, stderr)
	}

	store, err := memory.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	sess, err := store.Latest(context.Background())
	if err != nil || sess == nil {
		t.Fatalf("no session stored: %v", err)
	}
	if sess.Branch != "feature/y" || strings.Join(sess.FilesModified, ",") != "app.ts" {
		t.Errorf("unexpected session %+v", sess)
	}
	if sess.Summary != "add app" {
		t.Errorf("commit subject should seed the summary, got %q", sess.Summary)
	}
	if len(rec.jobs) != 1 || rec.jobs[0].SessionID != sess.ID || rec.jobs[0].TranscriptPath != "/tmp/t.jsonl" {
		t.Errorf("unexpected spawn %+v", rec.jobs)
	}
	if _, err := os.Stat(memory.JournalPath(dbPath)); err != nil {
		t.Error("JSONL backup missing")
	}
}

func TestJournalOutsideGit(t *testing.T) {
	dbPath := isolateEnv(t)
	input := fmt.Sprintf(`{"hook_event_name":"Stop","cwd":%q}`, t.TempDir())
	out, _, _ := runCmd(t, input, "hook", "journal")
	if strings.TrimSpace(out) != "{}" {
		t.Errorf("got %q", out)
	}
	if _, err := os.Stat(memory.JournalPath(dbPath)); !os.IsNotExist(err) {
		t.Error("nothing should be journaled outside git")
	}
}

func TestSessionContextHook(t *testing.T) {
	isolateEnv(t)
	repo := gitRepo(t)

	input := fmt.Sprintf(`{"hook_event_name":"SessionStart","source":"resume","cwd":%q}`, repo)
	out, _, _ := runCmd(t, input, "hook", "session-context")

	var doc struct {
		HookSpecificOutput struct {
			HookEventName     string `json:"hookEventName"`
			AdditionalContext string `json:"additionalContext"`
		} `json:"hookSpecificOutput"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	ctx := doc.HookSpecificOutput.AdditionalContext
	if doc.HookSpecificOutput.HookEventName != "SessionStart" {
		t.Errorf("unexpected event %q", doc.HookSpecificOutput.HookEventName)
	}
	for _, want := range []string{"Session type: resume", "Branch: feature/y", "add app"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}

type contextDoc struct {
	HookSpecificOutput struct {
		HookEventName            string `json:"hookEventName"`
		AdditionalContext        string `json:"additionalContext"`
		PermissionDecision       string `json:"permissionDecision"`
		PermissionDecisionReason string `json:"permissionDecisionReason"`
	} `json:"hookSpecificOutput"`
}

func TestPreCompactHook(t *testing.T) {
	isolateEnv(t)
	repo := gitRepo(t)
	os.WriteFile(filepath.Join(repo, "app.ts"), []byte("export const z = 3\n"), 0644)
	runGit(t, repo, "add", "app.ts")
	tasks := filepath.Join(repo, ".ultra", "tasks")
	os.MkdirAll(tasks, 0755)
	os.WriteFile(filepath.Join(tasks, "01-ship.md"), []byte("# Task 1: ship the parser\n"), 0644)

	input := fmt.Sprintf(`{"hook_event_name":"PreCompact","trigger":"auto","cwd":%q}`, repo)
	out, _, code := runCmd(t, input, "hook", "pre-compact")

	var doc contextDoc
	if err := json.Unmarshal([]byte(out), &doc); err != nil || code != 0 {
		t.Fatalf("output is not JSON: %q (exit %d)", out, code)
	}
	if doc.HookSpecificOutput.HookEventName != "PreCompact" {
		t.Errorf("unexpected event %q", doc.HookSpecificOutput.HookEventName)
	}
	ctx := doc.HookSpecificOutput.AdditionalContext
	for _, want := range []string{"[PreCompact] Compaction at", "Branch: feature/y", "Staged changes:\napp.ts", "Active tasks:\n  - Task 1: ship the parser"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}

func TestPreCompactOutsideGit(t *testing.T) {
	isolateEnv(t)
	input := fmt.Sprintf(`{"hook_event_name":"PreCompact","cwd":%q}`, t.TempDir())
	out, _, _ := runCmd(t, input, "hook", "pre-compact")

	var doc contextDoc
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if ctx := doc.HookSpecificOutput.AdditionalContext; strings.Contains(ctx, "Branch") || !strings.HasPrefix(ctx, "[PreCompact]") {
		t.Errorf("unexpected context %q", ctx)
	}
}

func TestBranchGuard(t *testing.T) {
	isolateEnv(t)
	repo := gitRepo(t)
	edit := func(tool, path string) string {
		return fmt.Sprintf(`{"hook_event_name":"PreToolUse","cwd":%q,"tool_name":%q,"tool_input":{"file_path":%q}}`,
			repo, tool, path)
	}

	if out, _, _ := runCmd(t, edit("Edit", filepath.Join(repo, "app.ts")), "hook", "branch-guard"); strings.TrimSpace(out) != "{}" {
		t.Errorf("feature branch should pass, got %q", out)
	}

	runGit(t, repo, "checkout", "-q", "-b", "production")

	out, _, code := runCmd(t, edit("Write", filepath.Join(repo, "app.ts")), "hook", "branch-guard")
	var doc contextDoc
	if err := json.Unmarshal([]byte(out), &doc); err != nil || code != 0 {
		t.Fatalf("output is not JSON: %q (exit %d)", out, code)
	}
	if doc.HookSpecificOutput.PermissionDecision != "ask" ||
		!strings.Contains(doc.HookSpecificOutput.PermissionDecisionReason, "protected branch 'production'") {
		t.Errorf("expected ask on production, got %q", out)
	}

	for _, input := range []string{
		edit("Edit", filepath.Join(repo, ".claude", "settings.json")),
		edit("Read", filepath.Join(repo, "app.ts")),
		"not json",
	} {
		if out, _, _ := runCmd(t, input, "hook", "branch-guard"); strings.TrimSpace(out) != "{}" {
			t.Errorf("expected no opinion for %s, got %q", input, out)
		}
	}
}
