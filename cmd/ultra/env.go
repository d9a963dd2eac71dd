package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rocky2431/ultra-builder-pro/internal/config"
	"github.com/rocky2431/ultra-builder-pro/internal/gitutil"
	"github.com/rocky2431/ultra-builder-pro/internal/memory"
)

// runtimeEnv is everything one invocation resolves about where it runs.
type runtimeEnv struct {
	Cwd      string
	RepoRoot string // empty outside a git work tree
	Git      *gitutil.Client
	Config   *config.Config
	DBPath   string
}

// prepareRuntimeEnv resolves the work tree, config and store location for
// cwd. It never fails: problems are logged and defaults used instead.
func prepareRuntimeEnv(ctx context.Context, cwd string, logger *log.Logger) *runtimeEnv {
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	env := &runtimeEnv{Cwd: cwd, Git: gitutil.New(cwd, gitutil.DefaultTimeout)}

	if root, err := env.Git.Toplevel(ctx); err == nil {
		env.RepoRoot = root
	}

	cfg, err := config.Load(env.RepoRoot)
	if err != nil {
		logger.Printf("config: %v (using defaults)", err)
		cfg = config.Defaults()
	}
	env.Config = cfg
	env.Git.Timeout = cfg.Gate.GitTimeout

	if dbPath, err := memory.ResolveDBPath(cfg.Memory.DBPath, env.RepoRoot); err != nil {
		logger.Printf("memory path: %v", err)
	} else {
		env.DBPath = dbPath
	}
	return env
}

// projectPath anchors a configured relative path at the repository root,
// or at the working directory outside git.
func (e *runtimeEnv) projectPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if e.RepoRoot != "" {
		return filepath.Join(e.RepoRoot, p)
	}
	return filepath.Join(e.Cwd, p)
}

func (e *runtimeEnv) openStore(ctx context.Context) (*memory.Store, error) {
	if e.DBPath == "" {
		return nil, errors.New("no memory database path")
	}
	return memory.Open(ctx, e.DBPath)
}

// openExistingStore opens the store only if the database file is already
// there, so read-only paths never create one.
func (e *runtimeEnv) openExistingStore(ctx context.Context) (*memory.Store, error) {
	if e.DBPath == "" {
		return nil, errors.New("no memory database path")
	}
	if _, err := os.Stat(e.DBPath); err != nil {
		return nil, fmt.Errorf("no memory database at %s", e.DBPath)
	}
	return memory.Open(ctx, e.DBPath)
}
