package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// NewGraphCommand builds the graph subcommand.
func NewGraphCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:     "graph <config-file>",
		Short:   "Print the pipeline dependency graph",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := providers.ParseFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if dot {
				fmt.Print(renderDOT(pipeline))
			} else {
				fmt.Print(renderASCII(pipeline))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "Emit Graphviz DOT instead of the tree view")
	return cmd
}

func renderDOT(p *dag.Pipeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n  rankdir=LR;\n", p.Name)
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		fmt.Fprintf(&b, "  %q [label=%q];\n", id, fmt.Sprintf("%s\\n%.0fs", job.Name, job.Duration()))
	}
	for _, from := range p.JobIDs() {
		for _, to := range p.Successors(from) {
			fmt.Fprintf(&b, "  %q -> %q;\n", from, to)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func renderASCII(p *dag.Pipeline) string {
	var b strings.Builder
	criticalPath, _ := p.LongestPath()
	onPath := make(map[string]bool, len(criticalPath))
	for _, id := range criticalPath {
		onPath[id] = true
	}

	for _, id := range p.TopologicalOrder() {
		job, _ := p.Job(id)
		marker := " "
		if onPath[id] {
			marker = "*"
		}
		deps := ""
		if preds := p.Predecessors(id); len(preds) > 0 {
			deps = " <- " + strings.Join(preds, ", ")
		}
		fmt.Fprintf(&b, "%s %-24s %8.0fs%s\n", marker, id, job.Duration(), deps)
	}
	b.WriteString("\n* = critical path\n")
	return b.String()
}
