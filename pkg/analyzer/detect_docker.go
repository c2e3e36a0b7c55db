package analyzer

import (
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/providers"
	"github.com/pipelinex/pipelinex/pkg/sliceutil"
)

// detectNoDockerCache flags docker build invocations with no layer cache
// source: no --cache-from flag and no provider-level layer cache declared.
func detectNoDockerCache(p *dag.Pipeline, _ *Options) []Finding {
	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		if hasDockerLayerCache(job) {
			continue
		}
		for _, step := range job.Steps {
			if providers.ClassifyStep(step) != providers.ClassDockerBuild {
				continue
			}
			if sliceutil.ContainsAny(step.Run, "--cache-from", "cache-from") ||
				strings.Contains(step.Uses, "build-push-action") && strings.Contains(step.Run, "cache") {
				continue
			}
			n++
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-DOCKER-%03d", n),
				Severity:     SeverityHigh,
				Category:     CategoryNoDockerCache,
				Title:        fmt.Sprintf("Job %q rebuilds docker layers from scratch", id),
				Description:  "The docker build has no --cache-from source, so every layer rebuilds on every run even when nothing changed.",
				AffectedJobs: []string{id},
				Recommendation: "Add --cache-from and --cache-to pointing at the provider's layer cache backend.",
				FixCommand:           fmt.Sprintf("pipelinex optimize --fix docker --job %s", id),
				EstimatedSavingsSecs: step.EstimatedSeconds * 0.6,
				Confidence:           85,
				AutoFixable:          true,
			})
			break
		}
	}
	return findings
}

func hasDockerLayerCache(job *dag.Job) bool {
	for _, cache := range job.Caches {
		if cache.Tool == dag.CacheDockerLayer {
			return true
		}
	}
	return false
}

// largeRepoThresholdMB gates the full-clone detector; without a size
// hint the pass stays silent.
const largeRepoThresholdMB = 500

// detectFullClone flags checkouts of a large repository without a
// shallow-depth hint.
func detectFullClone(p *dag.Pipeline, opts *Options) []Finding {
	if opts.RepoSizeMB <= largeRepoThresholdMB {
		return nil
	}
	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		for _, step := range job.Steps {
			if providers.ClassifyStep(step) != providers.ClassCheckout {
				continue
			}
			if sliceutil.ContainsAny(step.Run, "--depth", "fetch-depth", "shallow") {
				continue
			}
			n++
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-CLONE-%03d", n),
				Severity:     SeverityMedium,
				Category:     CategoryFullClone,
				Title:        fmt.Sprintf("Job %q clones %.0f MB of history it never reads", id, opts.RepoSizeMB),
				Description:  "The checkout has no shallow-depth hint; a depth-1 clone fetches only the tree being built.",
				AffectedJobs: []string{id},
				Recommendation: "Set a fetch depth of 1 unless the job needs history (changelogs, blame).",
				EstimatedSavingsSecs: opts.RepoSizeMB / 10,
				Confidence:           80,
			})
			break
		}
	}
	return findings
}
