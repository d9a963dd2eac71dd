package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocky2431/ultra-builder-pro/internal/logging"
	"github.com/rocky2431/ultra-builder-pro/internal/memory"
)

func newMemoryCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Query and maintain the cross-session memory store",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to memory.db (default: resolved from the git root)")

	// withStore opens the store for the duration of fn.
	withStore := func(fn func(cmd *cobra.Command, store *memory.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env := prepareRuntimeEnv(ctx, "", logging.To(cmd.ErrOrStderr(), "memory"))
			if dbPath != "" {
				env.DBPath = dbPath
			}
			store, err := env.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			return fn(cmd, store, args)
		}
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over session summaries, files and branches",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			query := strings.Join(args, " ")
			results, err := store.Search(cmd.Context(), query, searchLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No results for: %s\n", query)
				return nil
			}
			fmt.Fprintf(out, "Found %d session(s) matching '%s':\n\n", len(results), query)
			printSessions(cmd, results, true)
			return nil
		}),
	}
	search.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")

	recent := &cobra.Command{
		Use:   "recent [N]",
		Short: "Show the most recent sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			limit := 5
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return usageError("invalid count %q", args[0])
				}
				limit = n
			}
			results, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recent %d session(s):\n\n", len(results))
			printSessions(cmd, results, false)
			return nil
		}),
	}

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest session in full",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			sess, err := store.Latest(cmd.Context())
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), memory.FormatSession(sess, true))
			return nil
		}),
	}

	date := &cobra.Command{
		Use:   "date <YYYY-MM-DD>",
		Short: "Show the sessions active on a day",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			results, err := store.ByDate(cmd.Context(), args[0])
			if errors.Is(err, memory.ErrInvalidDate) {
				return usageError("invalid date %q, expected YYYY-MM-DD", args[0])
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No sessions on %s\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sessions on %s:\n\n", args[0])
			printSessions(cmd, results, true)
			return nil
		}),
	}

	saveSummary := &cobra.Command{
		Use:   "save-summary <session-id> <text>",
		Short: "Overwrite the summary of a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			ok, err := store.UpdateSummary(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("session %s not found", args[0])
			}
			if idx := openIndex(cmd, store.Path()); idx != nil {
				defer idx.Close()
				reindex(cmd.Context(), store, idx, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Summary saved for session %s\n", args[0])
			return nil
		}),
	}

	addTags := &cobra.Command{
		Use:   "add-tags <session-id> <tags>",
		Short: "Add comma-separated tags to a session",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			ok, err := store.AddTags(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("session %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tags added to session %s\n", args[0])
			return nil
		}),
	}

	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions older than the retention period",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			if !cmd.Flags().Changed("days") {
				env := prepareRuntimeEnv(cmd.Context(), "", logging.Discard())
				days = env.Config.Memory.RetentionDays
			}
			ids, err := store.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				if idx := openIndex(cmd, store.Path()); idx != nil {
					if err := idx.Delete(ids...); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "semantic index: %v\n", err)
					}
					idx.Close()
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned up %d session(s) older than %d days\n", len(ids), days)
			return nil
		}),
	}
	cleanup.Flags().IntVar(&days, "days", 90, "retention period in days")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			ctx := cmd.Context()
			st, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			size := int64(-1)
			if info, err := os.Stat(store.Path()); err == nil {
				size = info.Size()
			}
			var lastActive time.Time
			if sess, err := store.Latest(ctx); err == nil && sess != nil {
				lastActive = sess.LastActive
			}
			fmt.Fprintln(cmd.OutOrStdout(), memory.FormatStats(st, store.Path(), size, lastActive, time.Now()))
			return nil
		}),
	}

	oneliner := &cobra.Command{
		Use:   "oneliner",
		Short: "Print the one-line description of the latest session",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			sess, err := store.Latest(cmd.Context())
			if err != nil || sess == nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), memory.FormatOneliner(sess))
			return nil
		}),
	}

	var relatedLimit int
	related := &cobra.Command{
		Use:   "related <query>",
		Short: "Find sessions related to a query through the semantic index",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *memory.Store, args []string) error {
			idx := openIndex(cmd, store.Path())
			if idx == nil {
				return errors.New("semantic index unavailable")
			}
			defer idx.Close()

			query := strings.Join(args, " ")
			hits, err := idx.Search(query, relatedLimit)
			if err != nil {
				return err
			}
			var results []*memory.Session
			for _, h := range hits {
				if sess, err := store.Get(cmd.Context(), h.ID); err == nil && sess != nil {
					results = append(results, sess)
				}
			}
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No related sessions for: %s\n", query)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d related session(s):\n\n", len(results))
			printSessions(cmd, results, true)
			return nil
		}),
	}
	related.Flags().IntVar(&relatedLimit, "limit", 5, "maximum number of results")

	cmd.AddCommand(search, recent, latest, date, saveSummary, addTags, cleanup, stats, oneliner, related)
	return cmd
}

func printSessions(cmd *cobra.Command, sessions []*memory.Session, verbose bool) {
	out := cmd.OutOrStdout()
	for _, s := range sessions {
		fmt.Fprintln(out, memory.FormatSession(s, verbose))
		fmt.Fprintln(out)
	}
}

// openIndex opens the semantic index beside dbPath. Failures are reported on
// stderr and yield nil.
func openIndex(cmd *cobra.Command, dbPath string) *memory.SemanticIndex {
	idx, err := memory.OpenSemanticIndex(dbPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "semantic index: %v\n", err)
		return nil
	}
	return idx
}

func reindex(ctx context.Context, store *memory.Store, idx *memory.SemanticIndex, id string) {
	sess, err := store.Get(ctx, id)
	if err != nil || sess == nil {
		return
	}
	_ = idx.IndexSession(sess)
}
