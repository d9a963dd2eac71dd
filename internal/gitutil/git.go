// Package gitutil runs the handful of git queries the hooks need, each bounded
// by a short timeout so a wedged repository can never hang the host.
package gitutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every git subprocess unless the client overrides it.
const DefaultTimeout = 5 * time.Second

// Runner executes git with args in dir and returns stdout.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// Client queries a single working tree.
type Client struct {
	Dir     string
	Timeout time.Duration
	Run     Runner // if nil, runs the real git binary
}

// New returns a client rooted at dir.
func New(dir string, timeout time.Duration) *Client {
	return &Client{Dir: dir, Timeout: timeout}
}

func execRunner(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	// status must not take index.lock while an agent is committing
	cmd.Env = append(os.Environ(), "GIT_OPTIONAL_LOCKS=0")
	cmd.WaitDelay = time.Second

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s: %w", args[0], ctx.Err())
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return string(out), nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := c.Run
	if run == nil {
		run = execRunner
	}
	return run(ctx, c.Dir, args...)
}

// Toplevel returns the repository root, or an error outside a work tree.
func (c *Client) Toplevel(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(out)
	if root == "" {
		return "", errors.New("git rev-parse returned an empty toplevel")
	}
	return root, nil
}

// Branch returns the current branch name. A detached HEAD yields "".
func (c *Client) Branch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Change is one entry of `git status --porcelain`.
type Change struct {
	Index    byte // X column
	Worktree byte // Y column
	Path     string
}

// Staged reports whether the index holds a change for the path.
func (c Change) Staged() bool {
	return strings.IndexByte("MADRC", c.Index) >= 0
}

// Unstaged reports whether the working tree differs from the index.
func (c Change) Unstaged() bool {
	return c.Worktree == 'M' || c.Worktree == 'D'
}

// Untracked reports whether git does not know the path yet.
func (c Change) Untracked() bool {
	return c.Index == '?' && c.Worktree == '?'
}

// Short renders the entry the way `git status --short` does.
func (c Change) Short() string {
	return string([]byte{c.Index, c.Worktree}) + " " + c.Path
}

// Status returns the porcelain status of the work tree.
func (c *Client) Status(ctx context.Context) ([]Change, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out)
}

// ParseStatus parses `git status --porcelain` v1 output.
// Renames resolve to their new path.
func ParseStatus(out string) ([]Change, error) {
	var changes []Change
	scanner := bufio.NewScanner(strings.NewReader(out))

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}

		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		if strings.HasPrefix(path, `"`) {
			if unquoted, err := strconv.Unquote(path); err == nil {
				path = unquoted
			}
		}

		changes = append(changes, Change{
			Index:    line[0],
			Worktree: line[1],
			Path:     path,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}
	return changes, nil
}

// CommitSubjects returns non-merge commit subjects authored within window,
// newest first.
func (c *Client) CommitSubjects(ctx context.Context, window time.Duration) ([]string, error) {
	since := fmt.Sprintf("--since=%d minutes ago", int(window.Minutes()))
	out, err := c.run(ctx, "log", since, "--no-merges", "--format=%s")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// StagedStat returns `git diff --stat --cached`, trimmed. Empty means nothing
// is staged.
func (c *Client) StagedStat(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "diff", "--stat", "--cached")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RecentLog returns the last n commits in --oneline form.
func (c *Client) RecentLog(ctx context.Context, n int) ([]string, error) {
	out, err := c.run(ctx, "log", "--oneline", fmt.Sprintf("-%d", n))
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

func lines(out string) []string {
	var result []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}
