package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/rocky2431/ultra-builder-pro/internal/review"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Code review session utilities",
	}
	cmd.AddCommand(newReviewWaitCmd())
	cmd.AddCommand(newReviewVerdictCmd())
	return cmd
}

func newReviewWaitCmd() *cobra.Command {
	var opts review.WaitOptions

	cmd := &cobra.Command{
		Use:   "wait <session-dir> (agents <N> | summary)",
		Short: "Wait for review agents or the review summary",
		Long: "Blocks until the review session directory holds N agent reports or a parseable SUMMARY.json.\n" +
			"Exit status: 0 complete, 1 timeout, 2 invalid invocation.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[1] {
			case "agents":
				if len(args) != 3 {
					return usageError("agents mode needs a count")
				}
				n, err := strconv.Atoi(args[2])
				if err != nil || n <= 0 {
					return usageError("invalid agent count %q", args[2])
				}
				opts.Mode, opts.Count = review.WaitAgents, n
			case "summary":
				if len(args) != 2 {
					return usageError("summary mode takes no count")
				}
				opts.Mode = review.WaitSummary
			default:
				return usageError("unknown mode %q (want agents or summary)", args[1])
			}
			return runReviewWait(cmd, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", review.DefaultWaitTimeout, "give up after this long")
	cmd.Flags().DurationVar(&opts.PollEvery, "poll", review.DefaultPollEvery, "poll interval")
	return cmd
}

func runReviewWait(cmd *cobra.Command, dir string, opts review.WaitOptions) error {
	errOut := cmd.ErrOrStderr()
	interactive := errOut == os.Stderr && term.IsTerminal(os.Stderr.Fd())
	if interactive {
		opts.Progress = func(status string) {
			fmt.Fprintf(errOut, "\r\033[K%s", status)
		}
	}

	res, err := review.Wait(cmd.Context(), dir, opts)
	if interactive {
		fmt.Fprint(errOut, "\r\033[K")
	}
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if !res.Done {
		return &exitError{code: 1, err: errors.New("timed out")}
	}
	return nil
}

func newReviewVerdictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verdict <session-dir> [verdict]",
		Short: "Recalculate or force the verdict of a review session",
		Long: "Without a verdict the verdict is derived from the findings: any P0 or more than 3 P1 requests changes,\n" +
			"any P1 comments, otherwise approves. SUMMARY.json and the index.json entry are updated.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var forced review.Verdict
			if len(args) == 2 {
				v, err := review.ParseVerdict(args[1])
				if err != nil {
					return usageError("%v", err)
				}
				forced = v
			}

			res, err := review.UpdateVerdict(args[0], forced)
			if errors.Is(err, review.ErrNoSummary) {
				return fmt.Errorf("%s has no %s", args[0], review.SummaryFile)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Changed() {
				fmt.Fprintf(out, "Verdict unchanged: %s\n", res.Old)
				return nil
			}
			fmt.Fprintf(out, "%s: %s -> %s\n", review.SummaryFile, res.Old, res.New)
			if res.IndexUpdated {
				fmt.Fprintf(out, "%s: updated session %s\n", review.IndexFile, filepath.Base(args[0]))
			}
			return nil
		},
	}
}
