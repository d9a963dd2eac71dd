package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocky2431/ultra-builder-pro/internal/gate"
	"github.com/rocky2431/ultra-builder-pro/internal/hook"
	"github.com/rocky2431/ultra-builder-pro/internal/journal"
	"github.com/rocky2431/ultra-builder-pro/internal/logging"
	"github.com/rocky2431/ultra-builder-pro/internal/memory"
	"github.com/rocky2431/ultra-builder-pro/internal/summarize"
	"github.com/rocky2431/ultra-builder-pro/internal/workspace"
)

// spawner starts the background summarizer; tests replace it.
var spawner summarize.Spawner = summarize.Detached{}

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Agent hook entry points (JSON on stdin, JSON on stdout)",
	}
	cmd.AddCommand(newStopGateCmd())
	cmd.AddCommand(newJournalCmd())
	cmd.AddCommand(newSessionContextCmd())
	cmd.AddCommand(newPreCompactCmd())
	cmd.AddCommand(newBranchGuardCmd())
	return cmd
}

// readEvent decodes the hook input. A bad document is logged and reported
// as nil so the caller can answer with no opinion.
func readEvent(cmd *cobra.Command, logger *log.Logger) hook.Event {
	ev, err := hook.Decode(cmd.InOrStdin())
	if err != nil {
		if !errors.Is(err, hook.ErrEmptyInput) {
			logger.Printf("failed to parse input: %v", err)
		}
		return nil
	}
	return ev
}

func cwdOf(ev hook.Event) string {
	if ev == nil {
		return ""
	}
	return ev.Common().Cwd
}

func newStopGateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-gate",
		Short: "Decide whether the agent may stop (Stop hook)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.To(cmd.ErrOrStderr(), "stop_gate")
			return hook.Write(cmd.OutOrStdout(), runStopGate(cmd, logger))
		},
	}
}

func runStopGate(cmd *cobra.Command, logger *log.Logger) hook.Response {
	ctx := cmd.Context()
	ev := readEvent(cmd, logger)
	if ev == nil {
		return hook.NoOpinion()
	}
	if stop, ok := ev.(hook.StopEvent); ok && stop.StopHookActive {
		logger.Printf("stop hook already active for session %s", stop.SessionID)
	}

	env := prepareRuntimeEnv(ctx, cwdOf(ev), logger)
	gc := env.Config.Gate

	opts := gate.Options{
		ReviewsDir:    env.projectPath(gc.ReviewDir),
		TrunkBranches: gc.TrunkBranches,
		ReviewMaxAge:  gc.ReviewMaxAge,
		ReviewGrace:   gc.ReviewGrace,
		Classifier:    gate.NewClassifier(gc.CodeExtensions, gate.LoadIgnorePatterns(env.RepoRoot, gc.Ignore)),
		Markers:       gate.NewMarkers(gc.MarkerDir, gc.MarkerTTL),
		Logger:        logger,
	}
	if store, err := env.openExistingStore(ctx); err == nil {
		defer store.Close()
		opts.History = store
	}

	d := gate.New(env.Git, opts).Evaluate(ctx)
	switch d.Action {
	case gate.Deny:
		return hook.Block(d.Reason)
	case gate.Warn:
		fmt.Fprintln(cmd.ErrOrStderr(), d.Reason)
	default:
		if d.Reason != "" {
			logger.Print(d.Reason)
		}
	}
	return hook.NoOpinion()
}

func newJournalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Record the session in memory and start summarization (Stop hook)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.To(cmd.ErrOrStderr(), "session_journal")
			runJournal(cmd, logger)
			return hook.Write(cmd.OutOrStdout(), hook.NoOpinion())
		},
	}
}

func runJournal(cmd *cobra.Command, logger *log.Logger) {
	ctx := cmd.Context()
	ev := readEvent(cmd, logger)

	env := prepareRuntimeEnv(ctx, cwdOf(ev), logger)
	sc := env.Config.Summarize
	env.Git.Timeout = sc.JournalGitTimeout

	var store journal.Store
	if s, err := env.openStore(ctx); err != nil {
		logger.Printf("DB error: %v", err)
	} else {
		defer s.Close()
		store = s
	}

	var transcript string
	if ev != nil {
		transcript = ev.Common().TranscriptPath
	}

	_, err := journal.Record(ctx, env.Git, store, journal.Event{Cwd: env.Cwd, TranscriptPath: transcript}, journal.Options{
		MergeWindow:  env.Config.MergeWindow(),
		CommitWindow: time.Duration(sc.CommitWindowMinutes) * time.Minute,
		DBPath:       env.DBPath,
		JournalPath:  journalPath(env.DBPath),
		Spawner:      spawner,
		Logger:       logger,
	})
	if err != nil && !errors.Is(err, journal.ErrNoBranch) {
		logger.Printf("journal: %v", err)
	}
}

func journalPath(dbPath string) string {
	if dbPath == "" {
		return ""
	}
	return memory.JournalPath(dbPath)
}

func newSessionContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session-context",
		Short: "Inject branch, recent commits and the last session (SessionStart hook)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.To(cmd.ErrOrStderr(), "session_context")
			return hook.Write(cmd.OutOrStdout(), runSessionContext(cmd, logger))
		},
	}
}

func runSessionContext(cmd *cobra.Command, logger *log.Logger) hook.Response {
	ctx := cmd.Context()
	ev := readEvent(cmd, logger)
	if ev == nil {
		return hook.NoOpinion()
	}

	source := "startup"
	if start, ok := ev.(hook.SessionStartEvent); ok && start.Source != "" {
		source = start.Source
	}

	env := prepareRuntimeEnv(ctx, cwdOf(ev), logger)
	sc := workspace.SessionContext{Now: time.Now(), Source: source}

	if env.RepoRoot != "" {
		sc.Branch, _ = env.Git.Branch(ctx)
		if commits, err := env.Git.RecentLog(ctx, 3); err == nil {
			sc.Commits = commits
		}
		if changes, err := env.Git.Status(ctx); err == nil {
			for _, ch := range changes {
				sc.Changes = append(sc.Changes, ch.Short())
			}
		}
		sc.Project = workspace.Detect(env.RepoRoot)
	} else {
		sc.Project = workspace.Detect(env.Cwd)
	}

	sc.LastSession = lastSessionLine(ctx, env)
	return hook.Context(hook.EventSessionStart, sc.Render())
}

func lastSessionLine(ctx context.Context, env *runtimeEnv) string {
	store, err := env.openExistingStore(ctx)
	if err != nil {
		return ""
	}
	defer store.Close()

	sess, err := store.Latest(ctx)
	if err != nil || sess == nil {
		return ""
	}
	return memory.FormatOneliner(sess)
}

func newPreCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pre-compact",
		Short: "Carry branch, staged changes and active tasks across compaction (PreCompact hook)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.To(cmd.ErrOrStderr(), "pre_compact")
			return hook.Write(cmd.OutOrStdout(), runPreCompact(cmd, logger))
		},
	}
}

func runPreCompact(cmd *cobra.Command, logger *log.Logger) hook.Response {
	ctx := cmd.Context()
	ev := readEvent(cmd, logger)

	env := prepareRuntimeEnv(ctx, cwdOf(ev), logger)
	cc := workspace.CompactContext{Now: time.Now()}

	root := env.Cwd
	if env.RepoRoot != "" {
		root = env.RepoRoot
		cc.Branch, _ = env.Git.Branch(ctx)
		if stat, err := env.Git.StagedStat(ctx); err == nil {
			cc.StagedStat = stat
		} else {
			logger.Printf("staged diff unavailable: %v", err)
		}
	}
	cc.Tasks = workspace.ActiveTasks(root)

	return hook.Context(hook.EventPreCompact, cc.Render())
}

// configPathMarkers are directories whose files are never branch-protected.
var configPathMarkers = []string{"/.claude/", "/.git/", "/.vscode/", "/.idea/"}

func newBranchGuardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch-guard",
		Short: "Ask before editing files on a protected branch (PreToolUse hook)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.To(cmd.ErrOrStderr(), "branch_guard")
			return hook.Write(cmd.OutOrStdout(), runBranchGuard(cmd, logger))
		},
	}
}

func runBranchGuard(cmd *cobra.Command, logger *log.Logger) hook.Response {
	ctx := cmd.Context()
	pre, ok := readEvent(cmd, logger).(hook.PreToolUseEvent)
	if !ok || (pre.ToolName != "Edit" && pre.ToolName != "Write") {
		return hook.NoOpinion()
	}

	path := pre.FilePath()
	for _, marker := range configPathMarkers {
		if strings.Contains(path, marker) {
			return hook.NoOpinion()
		}
	}

	env := prepareRuntimeEnv(ctx, pre.Cwd, logger)
	branch, err := env.Git.Branch(ctx)
	if err != nil || !slices.Contains(env.Config.Gate.ProtectedBranches, branch) {
		return hook.NoOpinion()
	}
	return hook.Permission(hook.PermissionAsk, fmt.Sprintf(
		"Editing on protected branch '%s'. Allow this edit or create a feature branch first?", branch))
}
