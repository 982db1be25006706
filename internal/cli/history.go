package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database   string
	Limit      int
	Field      string
	Code       string
	Tests      bool
	Dependency string
}

// HistoryResult is what history prints: passes, or test runs with --tests.
type HistoryResult struct {
	Passes   []ir.Result     `json:"passes,omitempty"`
	TestRuns []store.TestRun `json:"testRuns,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent passes from the evaluation log",
		Long: `Show the most recent passes recorded by eval and run, oldest first, or
with --tests the most recent dependency test runs, newest first.

Examples:
  formdeps history --db ./formdeps.db
  formdeps history --db ./formdeps.db --field country --limit 5
  formdeps history --db ./formdeps.db --code CyclicPropagationTruncated
  formdeps history --db ./formdeps.db --tests --dependency show-state`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of entries to show (0 for all)")
	cmd.Flags().StringVar(&opts.Field, "field", "", "only passes triggered on this field")
	cmd.Flags().StringVar(&opts.Code, "code", "", "only passes that reported this diagnostic code")
	cmd.Flags().BoolVar(&opts.Tests, "tests", false, "show dependency test runs instead of passes")
	cmd.Flags().StringVar(&opts.Dependency, "dependency", "", "with --tests, only runs of this dependency")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.config().DBPath
	}
	if dbPath == "" {
		return commandError(formatter, &LoadError{Code: ErrCodeInvalidFlag, Message: "--db is required (or set db_path in the config)"})
	}
	if opts.Limit < 0 {
		return commandError(formatter, &LoadError{Code: ErrCodeInvalidFlag, Message: "--limit must not be negative"})
	}
	// Opening would create an empty log; a missing file is a typo.
	if _, err := os.Stat(dbPath); err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", dbPath), Err: err})
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: "failed to open database", Err: err})
	}
	defer st.Close()

	var result HistoryResult
	if opts.Tests {
		result.TestRuns, err = st.ReadTestRuns(ctx, opts.Dependency, opts.Limit)
	} else {
		result.Passes, err = st.ReadPasses(ctx, store.PassQuery{
			FieldID: opts.Field,
			Code:    ir.DiagnosticCode(opts.Code),
			Limit:   opts.Limit,
		})
	}
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: "failed to read history", Err: err})
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if opts.Tests {
		if len(result.TestRuns) == 0 {
			fmt.Fprintln(w, "No test runs recorded.")
		}
		for _, run := range result.TestRuns {
			fmt.Fprintf(w, "%s  %-20s %s (%d change(s))\n", run.TestedAt.Format(time.RFC3339), run.DependencyID, run.Result, len(run.Diff))
		}
		return nil
	}

	if len(result.Passes) == 0 {
		fmt.Fprintln(w, "No passes recorded.")
	}
	for _, res := range result.Passes {
		printPass(formatter, res)
	}
	return nil
}
