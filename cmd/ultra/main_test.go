package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	code = execute(cmd)
	return out.String(), errOut.String(), code
}

// isolateEnv keeps user config, markers and the memory store inside the test.
func isolateEnv(t *testing.T) (dbPath string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("ULTRA_MARKER_DIR", filepath.Join(home, "markers"))
	dbPath = filepath.Join(home, "memory", "memory.db")
	t.Setenv("ULTRA_MEMORY_DB", dbPath)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	return dbPath
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()

	runGit(t, dir, "init", "-q")
	if err := os.WriteFile(filepath.Join(dir, "app.ts"), []byte("export {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add app")
	runGit(t, dir, "checkout", "-q", "-b", "feature/y")
	return dir
}

func TestVersionCmd(t *testing.T) {
	out, _, code := runCmd(t, "", "version")
	if code != 0 || !strings.Contains(out, "ultra dev") {
		t.Errorf("version = %q (exit %d)", out, code)
	}
}

func TestHelpListsCommands(t *testing.T) {
	out, _, _ := runCmd(t, "", "--help")
	for _, sub := range []string{"hook", "memory", "review", "summarize"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help should list %q", sub)
		}
	}
	if strings.Contains(out, "summarize-worker") {
		t.Error("the worker command should be hidden")
	}
}
