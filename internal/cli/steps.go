package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"step-bridge/internal/repl"
	"step-bridge/internal/steps"
)

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your profile and active challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.actions()
			if err != nil {
				return err
			}
			return act.Profile(cmd.Context())
		},
	}
}

func newStepsCmd(a *app) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Show step history",
		Example: `  step-bridge steps
  step-bridge steps --start 2025-07-01 --end 2025-07-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.actions()
			if err != nil {
				return err
			}
			return act.Steps(cmd.Context(), start, end)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last date, YYYY-MM-DD")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "add <date|today|yesterday> <count>",
		Short: "Record steps for a day",
		Example: `  step-bridge add today 12000
  step-bridge add 2025-07-29 9,500 --overwrite`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(strings.ReplaceAll(args[1], ",", ""))
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			act, err := a.actions()
			if err != nil {
				return err
			}
			return act.Add(cmd.Context(), args[0], count, overwrite)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing count for that day")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		overwrite bool
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "batch <file|glob>...",
		Short: "Record steps from YAML files of date: count pairs",
		Long: `Read one or more YAML files mapping dates to step counts and record each
entry in date order. Patterns support ** globs.

  2025-07-01: 10234
  2025-07-02: 8120`,
		Example: `  step-bridge batch july.yaml
  step-bridge batch 'exports/**/*.yaml' --overwrite`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readBatch(args)
			if err != nil {
				return err
			}
			if dryRun {
				out := repl.NewOutput(a.stdout)
				out.Steps(entries)
				return nil
			}
			act, err := a.actions()
			if err != nil {
				return err
			}
			_, err = act.Batch(cmd.Context(), entries, overwrite)
			return err
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing counts")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print the entries without sending them")
	return cmd
}

// readBatch expands patterns and merges the files in order. A later file
// wins for a date listed twice.
func readBatch(patterns []string) ([]steps.Entry, error) {
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		files = append(files, matches...)
	}

	byDate := map[string]int{}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		entries, err := steps.ParseBatch(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, e := range entries {
			byDate[e.Date] = e.Count
		}
	}

	merged := make([]steps.Entry, 0, len(byDate))
	for d, c := range byDate {
		merged = append(merged, steps.Entry{Date: d, Count: c})
	}
	steps.Sort(merged)
	return merged, nil
}

func newSummaryCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize recent days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.actions()
			if err != nil {
				return err
			}
			_, err = act.Summary(cmd.Context(), days)
			return err
		},
	}
	cmd.Flags().IntVar(&days, "days", steps.DefaultDays, "number of days ending today")
	return cmd
}

func newGoalCmd(a *app) *cobra.Command {
	var (
		goal int
		date string
	)
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Check a day against a step goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.actions()
			if err != nil {
				return err
			}
			_, err = act.Goal(cmd.Context(), goal, date)
			return err
		},
	}
	cmd.Flags().IntVar(&goal, "goal", steps.DefaultGoal, "daily goal")
	cmd.Flags().StringVar(&date, "date", "today", "day to check")
	return cmd
}

// capabilities needs no token.
func newCapabilitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the tools the service advertises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act := repl.NewActions(a.apiClient(), repl.NewOutput(a.stdout))
			return act.Capabilities(cmd.Context())
		},
	}
}

func newToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show the service's tools/list result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.actions()
			if err != nil {
				return err
			}
			return act.Tools(cmd.Context())
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check the token against the service",
		Long: `Make one authenticated call to confirm the token works.

With --all, run the full API suite: capabilities, profile, add (including
the overwrite refusal) and step history. The suite writes today's count.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.actions()
			if err != nil {
				return err
			}
			if all {
				_, err = act.RunSuite(cmd.Context())
				return err
			}
			return act.Verify(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run the full suite (writes today's steps)")
	return cmd
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive Step Challenge shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd.Context())
		},
	}
}

func (a *app) runShell(ctx context.Context) error {
	act, err := a.actions()
	if err != nil {
		return err
	}
	in := repl.NewPipedInput(a.stdin)
	if a.interactive() {
		if in, err = repl.NewInput("step> "); err != nil {
			return err
		}
	}
	banner := "Connected to " + a.cfg.BaseURL
	return repl.New(act, in, banner).Run(ctx)
}
