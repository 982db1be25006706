package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter string
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every YAML scenario in a directory against the real engine.

Each scenario names its form, sets values, raises triggers and asserts on
the mutations, events, diagnostics and final state the engine produced.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad filter, etc.)

Examples:
  formdeps scenario ./scenarios
  formdeps scenario ./scenarios --filter "priority_*"
  formdeps scenario ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", dir), Err: err})
	}

	suite, err := harness.RunSuite(dir, opts.Filter)
	if err != nil {
		return commandError(formatter, err)
	}
	opts.logger().Debug("scenarios finished", "dir", dir, "total", suite.Total, "failed", suite.Failed)

	if formatter.JSON() {
		if suite.Failed > 0 {
			if err := formatter.Failure(suite, ErrCodeGeneric, fmt.Sprintf("%d scenario(s) failed", suite.Failed)); err != nil {
				return err
			}
		} else if err := formatter.Success(suite); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if suite.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return nil
		}
		for _, f := range suite.Failures {
			fmt.Fprintf(w, "✗ %s\n", f.Scenario)
			for _, e := range f.Errors {
				fmt.Fprintf(w, "    %s\n", e)
			}
		}
		fmt.Fprintf(w, "\nResults: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	}

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}
	return nil
}
