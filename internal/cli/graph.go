package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/graph"
	"github.com/roach88/formdeps/internal/ir"
)

// GraphEdge is one outgoing dependency of a field.
type GraphEdge struct {
	Dependency string         `json:"dependency"`
	Target     string         `json:"target"`
	Trigger    ir.TriggerKind `json:"trigger"`
	Disabled   bool           `json:"disabled,omitempty"`
}

// GraphNode is a field with the fields it reads from and drives.
type GraphNode struct {
	Field        string      `json:"field"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Dependents   []string    `json:"dependents,omitempty"`
	Edges        []GraphEdge `json:"edges,omitempty"`
}

// GraphResult is the adjacency structure of a form.
type GraphResult struct {
	Nodes  []GraphNode   `json:"nodes"`
	Cycles []graph.Cycle `json:"cycles"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <form>",
		Short: "Print the dependency graph of a form",
		Long: `Print each field with the dependencies it drives, in declaration order,
followed by every cycle among enabled dependencies.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}
}

func runGraph(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	doc, _, err := loadForm(path, true)
	if err != nil {
		return commandError(formatter, err)
	}

	result := buildGraphResult(doc.Form)

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, n := range result.Nodes {
		fmt.Fprintln(w, n.Field)
		for _, e := range n.Edges {
			suffix := ""
			if e.Disabled {
				suffix = " (disabled)"
			}
			fmt.Fprintf(w, "  -> %s [%s on %s]%s\n", e.Target, e.Dependency, e.Trigger, suffix)
		}
	}
	if len(result.Cycles) == 0 {
		fmt.Fprintln(w, "\nNo cycles.")
		return nil
	}
	fmt.Fprintf(w, "\n%d cycle(s):\n", len(result.Cycles))
	for _, c := range result.Cycles {
		fmt.Fprintf(w, "  %s (via %s)\n", strings.Join(c.Fields, " -> "), strings.Join(c.Dependencies, ", "))
	}
	return nil
}

func buildGraphResult(form *ir.Form) GraphResult {
	g := graph.Build(form.Dependencies)

	result := GraphResult{Nodes: []GraphNode{}, Cycles: g.Cycles()}
	if result.Cycles == nil {
		result.Cycles = []graph.Cycle{}
	}
	for _, f := range g.Annotate(form.Fields) {
		node := GraphNode{Field: f.ID, Dependencies: f.Dependencies, Dependents: f.Dependents}
		for _, e := range g.Outgoing(f.ID) {
			node.Edges = append(node.Edges, GraphEdge{
				Dependency: e.Dependency.ID,
				Target:     e.Dependency.TargetFieldID,
				Trigger:    e.Dependency.Trigger,
				Disabled:   e.Disabled,
			})
		}
		result.Nodes = append(result.Nodes, node)
	}
	return result
}
