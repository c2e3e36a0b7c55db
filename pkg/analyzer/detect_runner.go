package analyzer

import (
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/mathutil"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// runnerClass orders runner sizes for comparison.
type runnerClass int

const (
	runnerSmall runnerClass = iota
	runnerMedium
	runnerLarge
	runnerXLarge
)

func (c runnerClass) String() string {
	switch c {
	case runnerSmall:
		return "small"
	case runnerMedium:
		return "medium"
	case runnerLarge:
		return "large"
	}
	return "xlarge"
}

// declaredRunnerClass maps a runs-on label to a size class.
func declaredRunnerClass(label string) runnerClass {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "xlarge") || strings.Contains(lower, "2xlarge"):
		return runnerXLarge
	case strings.Contains(lower, "large"):
		return runnerLarge
	case strings.Contains(lower, "small") || strings.Contains(lower, "micro"):
		return runnerSmall
	}
	return runnerMedium
}

// detectRunnerSizing infers per-job resource pressure from step
// signatures and matrix size, then compares against the declared runner
// class. Confidence grows with the number of contributing signals.
func detectRunnerSizing(p *dag.Pipeline, _ *Options) []Finding {
	var findings []Finding
	upscales, downsizes := 0, 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		if job.RunsOn == "" {
			continue
		}
		inferred, signals := inferRunnerClass(job)
		declared := declaredRunnerClass(job.RunsOn)
		confidence := mathutil.ClampInt(40+signals*15, 40, 95)

		switch {
		case inferred > declared:
			upscales++
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-RUNNER-%03d", upscales),
				Severity:     SeverityMedium,
				Category:     CategoryRunnerSizing,
				Title:        fmt.Sprintf("UPSCALE: job %q is starved on a %s runner", id, declared),
				Description:  fmt.Sprintf("Step signatures suggest %s-class resource pressure (%d signals) but the job declares %q.", inferred, signals, job.RunsOn),
				AffectedJobs: []string{id},
				Recommendation: fmt.Sprintf("Move the job to a %s runner; wall-clock usually drops more than the rate rises.", inferred),
				Confidence:   confidence,
			})
		case inferred < declared && declared-inferred > 1:
			downsizes++
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-RUNNER-1%02d", downsizes),
				Severity:     SeverityLow,
				Category:     CategoryRunnerSizing,
				Title:        fmt.Sprintf("DOWNSIZE: job %q idles a %s runner", id, declared),
				Description:  fmt.Sprintf("Nothing in the job's steps needs a %s runner (%d signals point at %s).", declared, signals, inferred),
				AffectedJobs: []string{id},
				Recommendation: fmt.Sprintf("A %s runner would do the same work for less.", inferred),
				Confidence:   confidence,
			})
		}
	}
	return findings
}

// inferRunnerClass scores CPU, memory, and I/O pressure from step
// signatures; the matrix multiplies sustained load on shared runners.
func inferRunnerClass(job *dag.Job) (runnerClass, int) {
	cpu, mem, io := 0, 0, 0
	for _, step := range job.Steps {
		switch providers.ClassifyStep(step) {
		case providers.ClassBuild:
			cpu++
		case providers.ClassDockerBuild:
			mem++
			cpu++
		case providers.ClassTest:
			if isHeavyTest(step) {
				mem++
			} else {
				cpu++
			}
		case providers.ClassInstall:
			io++
		}
	}
	signals := cpu + mem + io
	score := cpu + 2*mem
	switch {
	case score >= 5:
		return runnerXLarge, signals
	case score >= 3:
		return runnerLarge, signals
	case score >= 1:
		return runnerMedium, signals
	}
	return runnerSmall, signals
}

func isHeavyTest(step dag.Step) bool {
	text := strings.ToLower(step.Run + " " + step.Name)
	return strings.Contains(text, "e2e") || strings.Contains(text, "integration") ||
		strings.Contains(text, "browser") || strings.Contains(text, "selenium")
}

// detectNoConcurrency flags pipelines without a cancel-in-progress group
// on triggers that pile up parallel runs.
func detectNoConcurrency(p *dag.Pipeline, _ *Options) []Finding {
	if p.HasConcurrencyGroup {
		return nil
	}
	busy := false
	for _, trigger := range p.Triggers {
		if trigger == "push" || trigger == "pull_request" || strings.HasPrefix(trigger, "branch:") {
			busy = true
		}
	}
	if !busy {
		return nil
	}
	return []Finding{{
		ID:          "PLX-CONCUR-001",
		Severity:    SeverityMedium,
		Category:    CategoryNoConcurrency,
		Title:       "Superseded runs keep executing to completion",
		Description: "The pipeline has no cancel-in-progress concurrency group; every push to an active branch stacks a full run behind the previous one.",
		Recommendation: "Add a concurrency group keyed by ref with cancel-in-progress enabled.",
		Confidence:  85,
	}}
}

// detectNoPathFiltering flags pipelines that run on documentation-only
// changes. Needs the repo-contents hint from the directory walk.
func detectNoPathFiltering(p *dag.Pipeline, opts *Options) []Finding {
	if p.HasPathFilters || !opts.RepoHasDocs || len(p.Triggers) == 0 {
		return nil
	}
	return []Finding{{
		ID:          "PLX-PATHS-001",
		Severity:    SeverityLow,
		Category:    CategoryNoPathFiltering,
		Title:       "Documentation edits trigger the full pipeline",
		Description: "The repository carries docs/ or markdown trees but the pipeline's triggers fire on every path.",
		Recommendation: "Add paths-ignore for docs/ and *.md so prose changes skip the build.",
		Confidence:  75,
	}}
}
