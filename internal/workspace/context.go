package workspace

import (
	"fmt"
	"strings"
	"time"
)

const maxContextFiles = 5

// SessionContext is what the agent is told when a session starts.
type SessionContext struct {
	Now         time.Time
	Source      string
	Branch      string
	Commits     []string // --oneline, newest first
	Changes     []string // --short status lines
	Project     Project
	LastSession string // memory one-liner, may be empty
}

// Render formats the context as the additionalContext text block.
func (c SessionContext) Render() string {
	lines := []string{
		"[Session Context] " + c.Now.Format("2006-01-02 15:04"),
		"Session type: " + c.Source,
		"",
	}

	var git []string
	if c.Branch != "" {
		git = append(git, "Branch: "+c.Branch)
	}
	if len(c.Commits) > 0 {
		git = append(git, "Recent commits:")
		for _, commit := range c.Commits {
			git = append(git, "  "+commit)
		}
	}
	if len(c.Changes) > 0 {
		git = append(git, fmt.Sprintf("Modified files: %d", len(c.Changes)))
		for _, ch := range c.Changes[:min(len(c.Changes), maxContextFiles)] {
			git = append(git, "  "+ch)
		}
		if len(c.Changes) > maxContextFiles {
			git = append(git, fmt.Sprintf("  ... and %d more", len(c.Changes)-maxContextFiles))
		}
	}
	if len(git) > 0 {
		lines = append(lines, git...)
		lines = append(lines, "")
	}

	if p := c.Project.Describe(); p != "" {
		lines = append(lines, p)
	}
	if c.LastSession != "" {
		lines = append(lines, c.LastSession)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
