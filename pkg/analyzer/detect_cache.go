package analyzer

import (
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// detectMissingCache flags jobs that run a dependency installer without
// a cache declaration matching the tool. Savings scale with matrix size
// because every cell repeats the install.
func detectMissingCache(p *dag.Pipeline, _ *Options) []Finding {
	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		for _, step := range job.Steps {
			tool := providers.InstallTool(step)
			if tool == "" {
				continue
			}
			if hasMatchingCache(job, tool) {
				break
			}
			n++
			savings := step.EstimatedSeconds
			if savings == 0 {
				savings = 90
			}
			savings *= float64(max(1, job.MatrixSize()))
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-CACHE-%03d", n),
				Severity:     SeverityHigh,
				Category:     CategoryMissingCache,
				Title:        fmt.Sprintf("Job %q reinstalls dependencies on every run", id),
				Description:  fmt.Sprintf("Step %q downloads and installs dependencies without a %s cache, repeating the work on every run.", stepLabel(step), tool),
				AffectedJobs: []string{id},
				Recommendation: fmt.Sprintf("Add a %s cache keyed by the lockfile hash to job %q.", tool, id),
				FixCommand:           fmt.Sprintf("pipelinex optimize --fix cache --job %s", id),
				EstimatedSavingsSecs: savings,
				Confidence:           90,
				AutoFixable:          true,
			})
			break
		}
	}
	return findings
}

func hasMatchingCache(job *dag.Job, tool dag.CacheTool) bool {
	for _, cache := range job.Caches {
		if cache.Tool == tool {
			return true
		}
		// A generic cache over the tool's directories also counts.
		if cache.Tool == dag.CacheGeneric && len(cache.Paths) > 0 {
			return true
		}
	}
	return false
}

func stepLabel(step dag.Step) string {
	if step.Name != "" {
		return step.Name
	}
	if step.Uses != "" {
		return step.Uses
	}
	line := step.Run
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return line
}
