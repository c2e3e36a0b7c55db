// Package analyzer runs read-only detector passes over a pipeline DAG
// and assembles the analysis report. Detectors are independent: each
// receives the DAG and returns findings without assuming any ordering
// relative to the others.
package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/pipelinex/pipelinex/pkg/config"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/history"
	"github.com/pipelinex/pipelinex/pkg/logger"
)

var log = logger.New("analyzer:run")

// optimizedFloorFraction prevents overstated wins: the optimized
// projection never drops below this fraction of the critical path.
const optimizedFloorFraction = 0.15

// PluginRunner abstracts the out-of-process plugin detectors. Plugins
// may only append findings; failures surface as diagnostics, never as
// analysis errors.
type PluginRunner interface {
	Run(ctx context.Context, p *dag.Pipeline) (findings []Finding, diagnostics []string)
}

// Options carries the optional collaborator inputs for one analysis.
type Options struct {
	History *history.Snapshot

	// RepoSizeMB is a hint for the full-clone detector; 0 means unknown.
	RepoSizeMB float64

	// RepoHasDocs reports that the surrounding repository contains docs/
	// or markdown trees, enabling the path-filtering detector.
	RepoHasDocs bool

	Plugins PluginRunner

	Config *config.Config
}

// detector is one read-only pass. boostOnCriticalPath marks detectors
// whose findings escalate to Critical when the affected job lies on the
// critical path; the promotion itself happens centrally in finalization.
type detector struct {
	name                string
	boostOnCriticalPath bool
	run                 func(*dag.Pipeline, *Options) []Finding
}

// detectors is the fixed dispatch order of the built-in passes.
var detectors = []detector{
	{name: "missing-cache", boostOnCriticalPath: true, run: detectMissingCache},
	{name: "false-dependency", run: detectFalseDependencies},
	{name: "unsharded-tests", run: detectUnshardedTests},
	{name: "no-docker-cache", run: detectNoDockerCache},
	{name: "redundant-setup", run: detectRedundantSetup},
	{name: "flaky-tests", run: detectFlakyTests},
	{name: "runner-sizing", run: detectRunnerSizing},
	{name: "no-artifact-reuse", run: detectNoArtifactReuse},
	{name: "full-clone", run: detectFullClone},
	{name: "no-concurrency-control", run: detectNoConcurrency},
	{name: "matrix-bloat", run: detectMatrixBloat},
	{name: "no-path-filtering", run: detectNoPathFiltering},
}

// Analyze runs every detector over the pipeline and finalizes the report.
// The DAG is shared read-only; history overrides duration estimates
// before any detector runs.
func Analyze(ctx context.Context, p *dag.Pipeline, opts *Options) (*Report, error) {
	if opts == nil {
		opts = &Options{}
	}
	applyHistory(p, opts.History)

	report := &Report{
		Provider:       p.Provider,
		PipelineName:   p.Name,
		SourceFile:     p.SourcePath,
		JobCount:       p.JobCount(),
		StepCount:      p.StepCount(),
		MaxParallelism: p.MaxParallelism(),
	}

	criticalPath, criticalDuration := p.LongestPath()
	report.CriticalPath = criticalPath
	report.CriticalPathDurationSecs = criticalDuration
	report.TotalEstimatedDurationSecs = criticalDuration

	onCriticalPath := make(map[string]bool, len(criticalPath))
	for _, id := range criticalPath {
		onCriticalPath[id] = true
	}

	for _, d := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		findings, panicked := runDetector(d, p, opts)
		if panicked != "" {
			report.Diagnostics = append(report.Diagnostics, panicked)
			continue
		}
		for _, f := range findings {
			if d.boostOnCriticalPath && f.Severity != SeverityCritical && touchesPath(f, onCriticalPath) {
				f.Severity = SeverityCritical
			}
			report.Findings = append(report.Findings, f)
		}
	}

	// External plugin detectors run after the built-ins and may only
	// append findings.
	if opts.Plugins != nil {
		pluginFindings, diagnostics := opts.Plugins.Run(ctx, p)
		report.Findings = append(report.Findings, pluginFindings...)
		report.Diagnostics = append(report.Diagnostics, diagnostics...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	finalize(p, report, onCriticalPath)
	return report, nil
}

// runDetector isolates a panicking detector so the remaining passes
// still run; the failure surfaces as a report diagnostic.
func runDetector(d detector, p *dag.Pipeline, opts *Options) (findings []Finding, diagnostic string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("detector %s panicked: %v", d.name, r)
			findings = nil
			diagnostic = fmt.Sprintf("detector %s failed: %v", d.name, r)
		}
	}()
	return d.run(p, opts), ""
}

// applyHistory overrides job duration estimates with observed means.
func applyHistory(p *dag.Pipeline, snap *history.Snapshot) {
	if snap == nil {
		return
	}
	for _, id := range p.JobIDs() {
		stats, ok := snap.Stats(id)
		if !ok {
			continue
		}
		if mean := stats.MeanDuration(); mean > 0 {
			job, _ := p.Job(id)
			job.EstimatedSeconds = mean
			// Step estimates would double-count; the observed mean is
			// authoritative for the whole job.
			for i := range job.Steps {
				job.Steps[i].EstimatedSeconds = 0
			}
		}
	}
}

func touchesPath(f Finding, onCriticalPath map[string]bool) bool {
	for _, id := range f.AffectedJobs {
		if onCriticalPath[id] {
			return true
		}
	}
	return false
}

// finalize clamps savings, sorts findings, computes the optimized
// projection and the health score.
func finalize(p *dag.Pipeline, report *Report, onCriticalPath map[string]bool) {
	for i := range report.Findings {
		clampSavings(p, &report.Findings[i])
	}

	// Stable sort: severity desc, savings desc, insertion order.
	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.Severity.Priority() != b.Severity.Priority() {
			return a.Severity.Priority() > b.Severity.Priority()
		}
		return a.EstimatedSavingsSecs > b.EstimatedSavingsSecs
	})

	// Savings on parallel branches that do not intersect the critical
	// path contribute nothing to the optimized projection.
	var claimed float64
	for _, f := range report.Findings {
		if f.AutoFixable && touchesPath(f, onCriticalPath) {
			claimed += f.EstimatedSavingsSecs
		}
	}
	optimized := report.CriticalPathDurationSecs - claimed
	floor := report.CriticalPathDurationSecs * optimizedFloorFraction
	if optimized < floor {
		optimized = floor
	}
	report.OptimizedDurationSecs = optimized

	report.HealthScore = scoreHealth(report.Findings)
}

// clampSavings bounds a finding's claim to the duration of its largest
// affected job.
func clampSavings(p *dag.Pipeline, f *Finding) {
	if f.EstimatedSavingsSecs < 0 {
		f.EstimatedSavingsSecs = 0
		return
	}
	if len(f.AffectedJobs) == 0 {
		return
	}
	var maxDuration float64
	for _, id := range f.AffectedJobs {
		if job, ok := p.Job(id); ok && job.Duration() > maxDuration {
			maxDuration = job.Duration()
		}
	}
	if maxDuration > 0 && f.EstimatedSavingsSecs > maxDuration {
		f.EstimatedSavingsSecs = maxDuration
	}
}
