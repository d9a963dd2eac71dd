package workspace

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TasksDir holds one markdown file per active task, relative to the project root.
var TasksDir = filepath.Join(".ultra", "tasks")

// ActiveTasks returns the title (first line, heading marks stripped) of every
// task file under root, in file name order.
func ActiveTasks(root string) []string {
	matches, err := filepath.Glob(filepath.Join(root, TasksDir, "*.md"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	var titles []string
	for _, path := range matches {
		if title := firstLine(path); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

func firstLine(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return ""
	}
	line := strings.TrimSpace(scanner.Text())
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}

// CompactContext is what the agent keeps across a context compaction.
type CompactContext struct {
	Now        time.Time
	Branch     string
	StagedStat string // git diff --stat --cached
	Tasks      []string
}

// Render formats the context as the additionalContext text block.
func (c CompactContext) Render() string {
	lines := []string{"[PreCompact] Compaction at " + c.Now.UTC().Format(time.RFC3339)}
	if c.Branch != "" {
		lines = append(lines, "Branch: "+c.Branch)
	}
	if c.StagedStat != "" {
		lines = append(lines, "Staged changes:\n"+c.StagedStat)
	}
	if len(c.Tasks) > 0 {
		lines = append(lines, "Active tasks:")
		for _, task := range c.Tasks {
			lines = append(lines, "  - "+task)
		}
	}
	return strings.Join(lines, "\n")
}
