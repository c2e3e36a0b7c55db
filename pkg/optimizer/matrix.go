package optimizer

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
)

// applyMatrix collapses a full cross-product matrix into an include list:
// one primary cell at full fidelity (the first value of every axis) plus
// one smoke cell per remaining value, varying a single axis at a time.
func applyMatrix(doc *ast.MappingNode, provider dag.Provider, f analyzer.Finding) (bool, error) {
	if provider != dag.ProviderGitHubActions {
		return false, fmt.Errorf("no matrix rewrite for %s", provider)
	}
	jobID := firstAffected(f)
	job := githubJob(doc, jobID)
	if job == nil {
		return false, fmt.Errorf("job %q not found", jobID)
	}
	strategy := childMapping(job, "strategy")
	if strategy == nil {
		return false, nil
	}
	matrixKV := mappingValue(strategy, "matrix")
	if matrixKV == nil {
		return false, nil
	}
	matrix := asMapping(matrixKV.Value)
	if matrix == nil {
		return false, nil
	}
	// Already pruned: a lone include list is the rewrite's own output.
	if mappingValue(matrix, "include") != nil && len(matrix.Values) == 1 {
		return false, nil
	}

	// Read the axes in declaration order.
	var names []string
	values := make(map[string][]string)
	for _, kv := range matrix.Values {
		name := keyText(kv.Key)
		if name == "include" || name == "exclude" {
			continue
		}
		seq := asSequence(kv.Value)
		if seq == nil {
			continue
		}
		var axisValues []string
		for _, item := range seq.Values {
			axisValues = append(axisValues, scalarText(item))
		}
		if len(axisValues) > 0 {
			names = append(names, name)
			values[name] = axisValues
		}
	}
	if len(names) < 2 {
		return false, nil
	}

	renderCell := func(cell map[string]string) string {
		var b strings.Builder
		for i, name := range names {
			if i == 0 {
				fmt.Fprintf(&b, "  - %s: %s\n", name, cell[name])
			} else {
				fmt.Fprintf(&b, "    %s: %s\n", name, cell[name])
			}
		}
		return b.String()
	}

	// Primary cell: every axis at its first value.
	primary := make(map[string]string, len(names))
	for _, name := range names {
		primary[name] = values[name][0]
	}

	var include strings.Builder
	include.WriteString("include:\n")
	include.WriteString(renderCell(primary))

	// Smoke cells: vary one axis at a time off the primary.
	for _, name := range names {
		for _, v := range values[name][1:] {
			cell := make(map[string]string, len(primary))
			for k, val := range primary {
				cell[k] = val
			}
			cell[name] = v
			include.WriteString(renderCell(cell))
		}
	}

	return true, replaceValue(matrixKV, include.String())
}
