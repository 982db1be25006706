package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/engine"
	"github.com/roach88/formdeps/internal/ir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Field    string
	Kind     string
	Name     string
	Sets     []string
	Database string
}

// EvalResult is every pass one trigger caused, and the resulting state.
type EvalResult struct {
	Passes    []ir.Result `json:"passes"`
	Delivered []ir.Event  `json:"delivered"`
	Final     ir.Snapshot `json:"final"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <form>",
		Short: "Evaluate one trigger against a form",
		Long: `Apply --set values to the form's initial state, raise one trigger and
print the pass it produced together with any passes raised by immediate
events. Delayed events are reported but not waited for.

Examples:
  formdeps eval form.yaml --field country --set country=US
  formdeps eval form.yaml --field qty --kind blur --set qty=3 --db ./formdeps.db
  formdeps eval form.yaml --field notify --kind custom --name recalc`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Field, "field", "", "field that raised the trigger (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "trigger kind: change, blur, focus, submit or custom (default from config)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "event name for custom triggers")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "field value as id=value (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record passes in this SQLite database")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	trigger, err := parseTrigger(opts.RootOptions, opts.Field, opts.Kind, opts.Name)
	if err != nil {
		return commandError(formatter, err)
	}
	values, err := parseSets(opts.Sets)
	if err != nil {
		return commandError(formatter, err)
	}
	doc, _, err := loadForm(path, true)
	if err != nil {
		return commandError(formatter, err)
	}

	var (
		mu        sync.Mutex
		delivered = []ir.Event{}
	)
	sink := engine.WithEventSink(func(ev ir.Event) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, ev)
	})

	sess, err := newSession(ctx, opts.RootOptions, doc.Form, opts.Database, nil, sink)
	if err != nil {
		return commandError(formatter, err)
	}
	defer sess.Close()

	if err := applyToRegistry(sess.reg, values); err != nil {
		return commandError(formatter, err)
	}
	if _, ok := sess.reg.State(trigger.FieldID); !ok {
		return commandError(formatter, &LoadError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("--field: unknown field %q", trigger.FieldID)})
	}

	first, err := sess.engine.Process(ctx, trigger)
	if err != nil {
		return WrapExitError(ExitCommandError, "pass failed", err)
	}
	rest, err := sess.engine.Drain(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "follow-up pass failed", err)
	}

	mu.Lock()
	result := EvalResult{
		Passes:    append([]ir.Result{first}, rest...),
		Delivered: delivered,
		Final:     sess.reg.Snapshot(),
	}
	mu.Unlock()

	if formatter.JSON() {
		return formatter.Success(result)
	}
	for _, res := range result.Passes {
		printPass(formatter, res)
	}
	return nil
}

// parseTrigger builds a trigger from flags, defaulting the kind from the
// config.
func parseTrigger(opts *RootOptions, field, kind, name string) (ir.Trigger, error) {
	t := ir.Trigger{FieldID: field, Kind: ir.TriggerKind(kind), Name: name}
	if t.Kind == "" {
		t.Kind = opts.config().DefaultTrigger
	}
	if !ir.ValidTriggers[t.Kind] {
		return t, &LoadError{Code: ErrCodeInvalidFlag, Message: fmt.Sprintf("--kind %q is not a trigger kind", kind)}
	}
	if t.Kind == ir.TriggerCustom && t.Name == "" {
		return t, &LoadError{Code: ErrCodeInvalidFlag, Message: "--name is required for custom triggers"}
	}
	return t, nil
}

func printPass(f *OutputFormatter, res ir.Result) {
	w := f.Writer
	t := res.Trigger
	fmt.Fprintf(w, "pass %s (seq %d): %s on %s", res.PassID, res.Seq, t.Kind, t.FieldID)
	if t.Name != "" {
		fmt.Fprintf(w, " [%s]", t.Name)
	}
	fmt.Fprintf(w, ", %d level(s)\n", res.Levels)
	for _, m := range res.Mutations {
		fmt.Fprintf(w, "  %s.%s <- %s (%s)\n", m.TargetFieldID, m.Kind, mutationDetail(m), m.DependencyID)
	}
	for _, ev := range res.Events {
		fmt.Fprintf(w, "  event %s -> %s", ev.Name, ev.TargetFieldID)
		if ev.Delay > 0 {
			fmt.Fprintf(w, " after %dms", ev.Delay)
		}
		fmt.Fprintln(w)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "  ! %s\n", d)
	}
}

func mutationDetail(m ir.Mutation) string {
	switch m.Kind {
	case ir.MutationValue:
		return fmt.Sprintf("%v", m.Value)
	case ir.MutationOptions:
		return fmt.Sprintf("%d options", len(m.Options))
	case ir.MutationStyle:
		return fmt.Sprintf("%v", m.Style)
	case ir.MutationClass:
		return fmt.Sprintf("%s=%t", m.ClassName, m.Flag)
	default:
		return fmt.Sprintf("%t", m.Flag)
	}
}
