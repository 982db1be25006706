package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/harness"
	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Dependency string
	Sets       []string
	Database   string
}

// TestResult holds the reports of one test command.
type TestResult struct {
	Reports []harness.Report `json:"reports"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Errored int              `json:"errored"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <form>",
		Short: "Test dependencies in isolation",
		Long: `Run dependencies against the form's initial state with --set overrides,
without propagation, and report pass (conditions held), fail (conditions
did not hold) or error (a condition or action reported a diagnostic).

Disabled dependencies are tested like enabled ones.

Exit codes:
  0 - No dependency errored
  1 - At least one dependency errored
  2 - Command error (missing form, unknown dependency, etc.)

Examples:
  formdeps test form.yaml
  formdeps test form.yaml --dependency show-state --set country=US
  formdeps test form.yaml --db ./formdeps.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dependency, "dependency", "", "test only this dependency id")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "field value as id=value (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record test runs in this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	values, err := parseSets(opts.Sets)
	if err != nil {
		return commandError(formatter, err)
	}
	doc, _, err := loadForm(path, true)
	if err != nil {
		return commandError(formatter, err)
	}

	snap := doc.Form.Snapshot()
	if err := applyToSnapshot(snap, values); err != nil {
		return commandError(formatter, err)
	}

	tester := harness.NewTester()
	var reports []harness.Report
	if opts.Dependency != "" {
		dep := findDependency(doc.Form.Dependencies, opts.Dependency)
		if dep == nil {
			return commandError(formatter, &LoadError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("--dependency: unknown dependency %q", opts.Dependency)})
		}
		reports = []harness.Report{tester.Test(dep, snap)}
	} else {
		reports = tester.TestAll(doc.Form.Dependencies, snap)
	}

	if opts.Database != "" {
		if err := recordTestRuns(ctx, opts.Database, reports); err != nil {
			return commandError(formatter, err)
		}
	}

	result := TestResult{Reports: reports}
	for _, r := range reports {
		switch r.Result {
		case ir.TestPass:
			result.Passed++
		case ir.TestFail:
			result.Failed++
		default:
			result.Errored++
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printReports(formatter, result)
	}

	if result.Errored > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d dependency(ies) errored", result.Errored))
	}
	return nil
}

func findDependency(deps []ir.FieldDependency, id string) *ir.FieldDependency {
	for i := range deps {
		if deps[i].ID == id {
			return &deps[i]
		}
	}
	return nil
}

func recordTestRuns(ctx context.Context, dbPath string, reports []harness.Report) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return &LoadError{Code: ErrCodeStore, Message: "failed to open database", Err: err}
	}
	defer st.Close()

	for _, r := range reports {
		if _, err := st.WriteTestRun(ctx, store.TestRun{
			DependencyID:  r.DependencyID,
			Result:        r.Result,
			ConditionsMet: r.ConditionsMet,
			TestedAt:      r.TestedAt,
			Diff:          r.Diff,
			Diagnostics:   r.Diagnostics,
		}); err != nil {
			return &LoadError{Code: ErrCodeStore, Message: "failed to record test run", Err: err}
		}
	}
	return nil
}

func printReports(f *OutputFormatter, result TestResult) {
	w := f.Writer
	for _, r := range result.Reports {
		mark := "✓"
		switch r.Result {
		case ir.TestFail:
			mark = "✗"
		case ir.TestError:
			mark = "!"
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, r.DependencyID, r.Result)
		for _, m := range r.Diff {
			fmt.Fprintf(w, "    %s.%s <- %s\n", m.TargetFieldID, m.Kind, mutationDetail(m))
		}
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "    ! %s\n", d)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results: %d passed, %d failed, %d errored\n", result.Passed, result.Failed, result.Errored)
}
