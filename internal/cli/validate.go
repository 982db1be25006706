package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Fields   int                        `json:"fields"`
	Deps     int                        `json:"dependencies"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.Warning         `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <form>",
		Short: "Validate a form and lint its dependencies",
		Long: `Compile a form and check it for errors the engine would otherwise only
report at runtime: unknown fields, unknown operators and action types,
duplicate ids and actions missing their inputs.

Cycles and other suspicious declarations are reported as warnings and do
not fail validation.

Exit codes:
  0 - Form is valid (warnings may be present)
  1 - Form has validation errors
  2 - Form could not be read or compiled`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	doc, errs, err := loadForm(path, false)
	if err != nil {
		return commandError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d field(s) and %d dependency(ies) from %s",
		len(doc.Form.Fields), len(doc.Form.Dependencies), path)

	result := ValidationResult{
		Valid:    len(errs) == 0,
		Fields:   len(doc.Form.Fields),
		Deps:     len(doc.Form.Dependencies),
		Errors:   errs,
		Warnings: compiler.Lint(doc.Form),
	}

	if formatter.JSON() {
		if !result.Valid {
			if err := formatter.Failure(result, errs[0].Code, errs[0].Message); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ Form valid (%d fields, %d dependencies)\n", result.Fields, result.Deps)
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range errs {
			if e.Line > 0 {
				fmt.Fprintf(w, "line %d\n", e.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
		}
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "%s %s: %s\n", warn.Level, warn.Code, warn.Message)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}
	return nil
}
