package gate

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/rocky2431/ultra-builder-pro/internal/config"
	"github.com/rocky2431/ultra-builder-pro/internal/gitutil"
)

// IgnoreFile lists extra paths, gitignore style, the gate never asks to review.
const IgnoreFile = "gateignore"

// Classifier decides which changed paths count as reviewable code.
type Classifier struct {
	exts   map[string]bool
	ignore gitignore.IgnoreParser
}

// NewClassifier builds a classifier from an extension list and ignore patterns.
func NewClassifier(extensions, ignorePatterns []string) *Classifier {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	c := &Classifier{exts: exts}
	if len(ignorePatterns) > 0 {
		c.ignore = gitignore.CompileIgnoreLines(ignorePatterns...)
	}
	return c
}

// LoadIgnorePatterns returns extra plus the patterns in .ultra/gateignore.
func LoadIgnorePatterns(repoRoot string, extra []string) []string {
	patterns := append([]string(nil), extra...)
	if repoRoot == "" {
		return patterns
	}

	f, err := os.Open(filepath.Join(repoRoot, config.UltraDir, IgnoreFile))
	if err != nil {
		return patterns
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns
}

// ChangedFiles returns the staged and unstaged paths, sorted and unique.
// Untracked and ignored paths are left out.
func (c *Classifier) ChangedFiles(changes []gitutil.Change) []string {
	seen := make(map[string]bool)
	var files []string
	for _, ch := range changes {
		if !ch.Staged() && !ch.Unstaged() {
			continue
		}
		if c.ignore != nil && c.ignore.MatchesPath(ch.Path) {
			continue
		}
		if !seen[ch.Path] {
			seen[ch.Path] = true
			files = append(files, ch.Path)
		}
	}
	sort.Strings(files)
	return files
}

// CodeFiles filters files down to recognized code extensions.
func (c *Classifier) CodeFiles(files []string) []string {
	var code []string
	for _, f := range files {
		if c.exts[strings.ToLower(filepath.Ext(f))] {
			code = append(code, f)
		}
	}
	return code
}

// ChangeSetKey fingerprints a set of changed files independent of order.
func ChangeSetKey(files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	sum := md5.Sum([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])[:12]
}
