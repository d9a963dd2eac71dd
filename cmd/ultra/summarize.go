package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocky2431/ultra-builder-pro/internal/logging"
	"github.com/rocky2431/ultra-builder-pro/internal/memory"
	"github.com/rocky2431/ultra-builder-pro/internal/providers"
	"github.com/rocky2431/ultra-builder-pro/internal/summarize"
)

// newChannels builds the summarization channels; tests replace it.
var newChannels = providers.NewChannelsFromEnv

func newSummarizeCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "summarize <session-id> <transcript>",
		Short: "Summarize a session transcript now and store the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.To(cmd.ErrOrStderr(), "summarize")
			env := prepareRuntimeEnv(ctx, "", logger)
			if dbPath != "" {
				env.DBPath = dbPath
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generating AI summary for session %s...\n", args[0])

			job := summarize.Job{SessionID: args[0], TranscriptPath: args[1], DBPath: env.DBPath}
			summary, err := runSummarizeJob(ctx, env, job, 0, logger)
			if err != nil || summary == "" {
				if err != nil {
					logger.Print(err)
				}
				fmt.Fprintln(out, "No summary generated (check transcript path and API access)")
				return nil
			}
			fmt.Fprintf(out, "Summary generated:\n%s\n", summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to memory.db (default: resolved from the git root)")
	return cmd
}

func newSummarizeWorkerCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:    summarize.WorkerCommand + " <session-id> <transcript>",
		Short:  "Background summarizer started by the journal hook",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if dbPath == "" {
				return usageError("--db is required")
			}

			logger, closer, err := logging.OpenFile(memory.WorkerLogPath(dbPath), "summarize")
			if err != nil {
				logger = logging.Discard()
			} else {
				defer closer.Close()
			}

			env := prepareRuntimeEnv(ctx, "", logger)
			env.DBPath = dbPath

			job := summarize.Job{SessionID: args[0], TranscriptPath: args[1], DBPath: dbPath}
			if _, err := runSummarizeJob(ctx, env, job, env.Config.Summarize.Delay, logger); err != nil {
				logger.Printf("session=%s: %v", job.SessionID, err)
			}
			// the parent never reads our status
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to memory.db")
	return cmd
}

func runSummarizeJob(ctx context.Context, env *runtimeEnv, job summarize.Job, delay time.Duration, logger *log.Logger) (string, error) {
	sc := env.Config.Summarize

	store, err := memory.Open(ctx, job.DBPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	w := &summarize.Worker{
		Store:  store,
		Chain:  summarize.NewChain(newChannels(sc), sc.Timeout, logger),
		Delay:  delay,
		Budget: sc.Budget,
		Head:   sc.Head,
		Logger: logger,
		Index:  lazyIndex{dbPath: job.DBPath},
	}

	return w.Run(ctx, job)
}

// lazyIndex holds the semantic index lock only while writing.
type lazyIndex struct{ dbPath string }

func (l lazyIndex) IndexSession(s *memory.Session) error {
	idx, err := memory.OpenSemanticIndex(l.dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	return idx.IndexSession(s)
}
