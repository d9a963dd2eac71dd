package providers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CLI runs the agent's own command line client in print mode.
type CLI struct {
	command string
	model   string
}

// NewCLI creates a channel running `<command> -p --model <model> <prompt>`.
func NewCLI(command, model string) *CLI {
	return &CLI{command: command, model: model}
}

func (c *CLI) Name() string { return "cli" }

func (c *CLI) Complete(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, c.command, "-p", "--model", c.model, prompt)
	cmd.Env = childEnv(os.Environ())
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("providers: %s: %w: %s", c.command, err, firstLine(msg))
		}
		return "", fmt.Errorf("providers: %s: %w", c.command, err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// childEnv drops CLAUDE* variables so the child does not think it is nested
// inside the session that spawned it.
func childEnv(env []string) []string {
	out := make([]string, 0, len(env))
	hasPath := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDE") {
			continue
		}
		if strings.HasPrefix(kv, "PATH=") {
			hasPath = true
		}
		out = append(out, kv)
	}
	if !hasPath {
		out = append(out, "PATH=/usr/bin:/usr/local/bin")
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
