package gitutil

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fakeRunner(outputs map[string]string) Runner {
	return func(ctx context.Context, dir string, args ...string) (string, error) {
		out, ok := outputs[strings.Join(args, " ")]
		if !ok {
			return "", errors.New("unexpected git call: " + strings.Join(args, " "))
		}
		return out, nil
	}
}

func TestParseStatus(t *testing.T) {
	out := " M src/app.ts\nM  server/main.go\nR  old.py -> new.py\n?? notes.txt\nD  gone.rs\n" +
		`MM "with space.js"` + "\n"

	changes, err := ParseStatus(out)
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if len(changes) != 6 {
		t.Fatalf("expected 6 changes, got %d", len(changes))
	}

	tests := []struct {
		path      string
		staged    bool
		unstaged  bool
		untracked bool
	}{
		{"src/app.ts", false, true, false},
		{"server/main.go", true, false, false},
		{"new.py", true, false, false},
		{"notes.txt", false, false, true},
		{"gone.rs", true, false, false},
		{"with space.js", true, true, false},
	}
	for i, tt := range tests {
		c := changes[i]
		if c.Path != tt.path {
			t.Errorf("change %d: expected path %q, got %q", i, tt.path, c.Path)
		}
		if c.Staged() != tt.staged || c.Unstaged() != tt.unstaged || c.Untracked() != tt.untracked {
			t.Errorf("%s: staged=%v unstaged=%v untracked=%v", c.Path, c.Staged(), c.Unstaged(), c.Untracked())
		}
	}
	if changes[0].Short() != " M src/app.ts" {
		t.Errorf("unexpected short form %q", changes[0].Short())
	}
}

func TestClientQueries(t *testing.T) {
	c := &Client{Dir: "/repo", Run: fakeRunner(map[string]string{
		"rev-parse --show-toplevel":                           "/repo\n",
		"branch --show-current":                               "feature/x\n",
		"log --since=30 minutes ago --no-merges --format=%s": "fix parser\n\nadd tests\n",
		"log --oneline -3":                                    "abc123 one\ndef456 two\n",
	})}
	ctx := context.Background()

	root, err := c.Toplevel(ctx)
	if err != nil || root != "/repo" {
		t.Errorf("Toplevel = %q, %v", root, err)
	}
	branch, err := c.Branch(ctx)
	if err != nil || branch != "feature/x" {
		t.Errorf("Branch = %q, %v", branch, err)
	}
	subjects, err := c.CommitSubjects(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("CommitSubjects failed: %v", err)
	}
	if !reflect.DeepEqual(subjects, []string{"fix parser", "add tests"}) {
		t.Errorf("unexpected subjects %v", subjects)
	}
	log, err := c.RecentLog(ctx, 3)
	if err != nil || len(log) != 2 {
		t.Errorf("RecentLog = %v, %v", log, err)
	}
}

func TestClientAppliesTimeout(t *testing.T) {
	c := &Client{Timeout: 10 * time.Millisecond, Run: func(ctx context.Context, dir string, args ...string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	start := time.Now()
	if _, err := c.Branch(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout was not applied")
	}
}

func TestStagedStat(t *testing.T) {
	c := &Client{Dir: "/repo", Run: fakeRunner(map[string]string{
		"diff --stat --cached": " app.go | 2 +-\n 1 file changed, 1 insertion(+), 1 deletion(-)\n",
	})}
	got, err := c.StagedStat(context.Background())
	if err != nil || !strings.HasPrefix(got, "app.go | 2 +-") || strings.HasSuffix(got, "\n") {
		t.Errorf("StagedStat = %q, %v", got, err)
	}
}
