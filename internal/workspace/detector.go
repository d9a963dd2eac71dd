// Package workspace describes the project the agent is working in.
package workspace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ProjectType represents the type of project.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeRust    ProjectType = "rust"
	ProjectTypeUnknown ProjectType = "unknown"
)

var typeLabels = map[ProjectType]string{
	ProjectTypeGo:     "Go",
	ProjectTypeNode:   "Node.js",
	ProjectTypePython: "Python",
	ProjectTypeRust:   "Rust",
}

// Project is the detected type plus whatever name the manifest declares.
type Project struct {
	Type     ProjectType
	Name     string
	Manifest string // file the type was read from; empty for extension guesses
}

// Describe renders the project line of the session context, or "" when the
// type is unknown.
func (p Project) Describe() string {
	label, ok := typeLabels[p.Type]
	if !ok {
		return ""
	}
	switch {
	case p.Name != "":
		return "Project: " + p.Name + " (" + label + ")"
	case p.Manifest != "":
		return "Project: " + label + " (" + p.Manifest + ")"
	default:
		return "Project: " + label
	}
}

var manifests = []struct {
	file string
	typ  ProjectType
	name func(path string) string
}{
	{"package.json", ProjectTypeNode, packageJSONName},
	{"pyproject.toml", ProjectTypePython, nil},
	{"requirements.txt", ProjectTypePython, nil},
	{"Cargo.toml", ProjectTypeRust, nil},
	{"go.mod", ProjectTypeGo, goModuleName},
}

// Detect inspects repoRoot, manifest first with an extension count fallback.
func Detect(repoRoot string) Project {
	for _, m := range manifests {
		path := filepath.Join(repoRoot, m.file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p := Project{Type: m.typ, Manifest: m.file}
		if m.name != nil {
			p.Name = m.name(path)
		}
		return p
	}
	return Project{Type: detectByExtension(repoRoot)}
}

func detectByExtension(repoRoot string) ProjectType {
	entries, err := os.ReadDir(repoRoot)
	if err != nil {
		return ProjectTypeUnknown
	}

	extCounts := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(entry.Name())); ext != "" {
			extCounts[ext]++
		}
	}

	counts := []struct {
		typ ProjectType
		n   int
	}{
		{ProjectTypeGo, extCounts[".go"]},
		{ProjectTypeNode, extCounts[".ts"] + extCounts[".tsx"] + extCounts[".js"] + extCounts[".jsx"]},
		{ProjectTypePython, extCounts[".py"]},
		{ProjectTypeRust, extCounts[".rs"]},
	}

	maxCount := 0
	detected := ProjectTypeUnknown
	for _, c := range counts {
		if c.n > maxCount {
			maxCount, detected = c.n, c.typ
		}
	}

	// a couple of stray scripts do not make a project
	if maxCount >= 3 {
		return detected
	}
	return ProjectTypeUnknown
}

func packageJSONName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return ""
	}
	return pkg.Name
}

func goModuleName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if mod, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "module "); ok {
			return strings.Trim(strings.TrimSpace(mod), `"`)
		}
	}
	return ""
}
