package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// UltraDir is the per-project directory holding config, memory and reviews.
	UltraDir = ".ultra"
	// ConfigFile is the name of both the global and the project config file.
	ConfigFile = "config.yaml"
)

// Config holds every tunable used by the hooks.
type Config struct {
	Memory    MemoryConfig    `yaml:"memory"`
	Gate      GateConfig      `yaml:"gate"`
	Summarize SummarizeConfig `yaml:"summarize"`
}

// MemoryConfig configures the session store.
type MemoryConfig struct {
	DBPath             string `yaml:"db_path" env:"ULTRA_MEMORY_DB"`
	MergeWindowMinutes int    `yaml:"merge_window_minutes" env:"ULTRA_MERGE_WINDOW_MINUTES"`
	RetentionDays      int    `yaml:"retention_days" env:"ULTRA_RETENTION_DAYS"`
}

// GateConfig configures the stop gate.
type GateConfig struct {
	ReviewDir         string        `yaml:"review_dir" env:"ULTRA_REVIEW_DIR"`
	ReviewMaxAge      time.Duration `yaml:"review_max_age" env:"ULTRA_REVIEW_MAX_AGE"`
	ReviewGrace       time.Duration `yaml:"review_grace" env:"ULTRA_REVIEW_GRACE"`
	MarkerDir         string        `yaml:"marker_dir" env:"ULTRA_MARKER_DIR"`
	MarkerTTL         time.Duration `yaml:"marker_ttl" env:"ULTRA_MARKER_TTL"`
	GitTimeout        time.Duration `yaml:"git_timeout" env:"ULTRA_GIT_TIMEOUT"`
	TrunkBranches     []string      `yaml:"trunk_branches" env:"ULTRA_TRUNK_BRANCHES" envSeparator:","`
	CodeExtensions    []string      `yaml:"code_extensions" env:"ULTRA_CODE_EXTENSIONS" envSeparator:","`
	Ignore            []string      `yaml:"ignore"`
	ProtectedBranches []string      `yaml:"protected_branches" env:"ULTRA_PROTECTED_BRANCHES" envSeparator:","` // edits here ask first
}

// SummarizeConfig configures the journal step and the background summarizer.
type SummarizeConfig struct {
	Delay               time.Duration `yaml:"delay" env:"ULTRA_SUMMARIZE_DELAY"`
	Timeout             time.Duration `yaml:"timeout" env:"ULTRA_SUMMARIZE_TIMEOUT"`
	Budget              int           `yaml:"budget"`
	Head                int           `yaml:"head"`
	MaxTokens           int           `yaml:"max_tokens"`
	CLICommand          string        `yaml:"cli_command" env:"ULTRA_SUMMARIZE_CLI"`
	CLIModel            string        `yaml:"cli_model"`
	AnthropicModel      string        `yaml:"anthropic_model" env:"ANTHROPIC_MODEL"`
	OpenAIModel         string        `yaml:"openai_model" env:"OPENAI_MODEL"`
	OpenAIBaseURL       string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	JournalGitTimeout   time.Duration `yaml:"journal_git_timeout"`
	CommitWindowMinutes int           `yaml:"commit_window_minutes"`
}

// ExcerptMarkerRunes is the length of the marker the summarizer puts between
// the head and the tail of a truncated transcript.
const ExcerptMarkerRunes = 42

// DefaultCodeExtensions are the file extensions the gate treats as reviewable code.
var DefaultCodeExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".py", ".go", ".rs", ".java", ".sol", ".rb",
	".vue", ".svelte", ".css", ".scss", ".html", ".json", ".yaml", ".yml", ".toml", ".sh",
}

// Defaults returns a Config with every field populated.
func Defaults() *Config {
	return &Config{
		Memory: MemoryConfig{
			MergeWindowMinutes: 30,
			RetentionDays:      90,
		},
		Gate: GateConfig{
			ReviewDir:         filepath.Join(UltraDir, "reviews"),
			ReviewMaxAge:      2 * time.Hour,
			ReviewGrace:       15 * time.Minute,
			MarkerTTL:         24 * time.Hour,
			GitTimeout:        5 * time.Second,
			TrunkBranches:     []string{"main", "master"},
			CodeExtensions:    append([]string(nil), DefaultCodeExtensions...),
			ProtectedBranches: []string{"main", "master", "production", "prod"},
		},

		Summarize: SummarizeConfig{
			Delay:               10 * time.Second,
			Timeout:             30 * time.Second,
			Budget:              8000,
			Head:                2000,
			MaxTokens:           500,
			CLICommand:          "claude",
			CLIModel:            "haiku",
			AnthropicModel:      "claude-haiku-4-5-20251001",
			OpenAIModel:         "gpt-4o-mini",
			JournalGitTimeout:   3 * time.Second,
			CommitWindowMinutes: 30,
		},
	}
}

// ParseError reports a config file that exists but could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GlobalPath returns the location of the user-wide config file.
func GlobalPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, "ultra", ConfigFile), nil
}

// ProjectPath returns the location of the project config file under repoRoot.
func ProjectPath(repoRoot string) string {
	return filepath.Join(repoRoot, UltraDir, ConfigFile)
}

// Load layers defaults, the global file, the project file (when repoRoot is
// non-empty) and ULTRA_* environment variables, in that order.
// Missing files are not an error.
func Load(repoRoot string) (*Config, error) {
	cfg := Defaults()

	if global, err := GlobalPath(); err == nil {
		if err := mergeFile(cfg, global); err != nil {
			return nil, err
		}
	}
	if repoRoot != "" {
		if err := mergeFile(cfg, ProjectPath(repoRoot)); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// applyDefaults restores zero values a config file may have blanked out.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Memory.MergeWindowMinutes <= 0 {
		cfg.Memory.MergeWindowMinutes = d.Memory.MergeWindowMinutes
	}
	if cfg.Memory.RetentionDays <= 0 {
		cfg.Memory.RetentionDays = d.Memory.RetentionDays
	}
	if cfg.Gate.ReviewDir == "" {
		cfg.Gate.ReviewDir = d.Gate.ReviewDir
	}
	if cfg.Gate.MarkerTTL <= 0 {
		cfg.Gate.MarkerTTL = d.Gate.MarkerTTL
	}
	if cfg.Gate.GitTimeout <= 0 {
		cfg.Gate.GitTimeout = d.Gate.GitTimeout
	}
	if len(cfg.Gate.CodeExtensions) == 0 {
		cfg.Gate.CodeExtensions = d.Gate.CodeExtensions
	}
	if cfg.Summarize.Timeout <= 0 {
		cfg.Summarize.Timeout = d.Summarize.Timeout
	}
	if cfg.Summarize.Budget <= 0 {
		cfg.Summarize.Budget = d.Summarize.Budget
	}
	if cfg.Summarize.Head <= 0 {
		cfg.Summarize.Head = d.Summarize.Head
	}
	if cfg.Summarize.MaxTokens <= 0 {
		cfg.Summarize.MaxTokens = d.Summarize.MaxTokens
	}
	if cfg.Summarize.JournalGitTimeout <= 0 {
		cfg.Summarize.JournalGitTimeout = d.Summarize.JournalGitTimeout
	}
	if cfg.Summarize.CommitWindowMinutes <= 0 {
		cfg.Summarize.CommitWindowMinutes = d.Summarize.CommitWindowMinutes
	}
}

func (c *Config) validate() error {
	if c.Gate.ReviewMaxAge < 0 || c.Gate.ReviewGrace < 0 {
		return errors.New("config: review ages must not be negative")
	}
	if c.Summarize.Delay < 0 {
		return errors.New("config: summarize.delay must not be negative")
	}
	if c.Summarize.Budget <= c.Summarize.Head+ExcerptMarkerRunes {
		return fmt.Errorf("config: summarize.budget (%d) must exceed summarize.head (%d) plus %d",
			c.Summarize.Budget, c.Summarize.Head, ExcerptMarkerRunes)
	}
	return nil
}

// MergeWindow returns the memory merge window as a duration.
func (c *Config) MergeWindow() time.Duration {
	return time.Duration(c.Memory.MergeWindowMinutes) * time.Minute
}
