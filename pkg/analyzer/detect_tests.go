package analyzer

import (
	"fmt"
	"math"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/mathutil"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// unshardedThresholdSecs is the duration above which a serial test job
// is worth sharding.
const unshardedThresholdSecs = 8 * 60

// shardTargetSecs is the per-shard duration the shard count aims for.
const shardTargetSecs = 3 * 60

// detectUnshardedTests flags long test jobs with no shard axis. The
// optimal shard count targets three-minute shards, bounded to [2, 8].
func detectUnshardedTests(p *dag.Pipeline, _ *Options) []Finding {
	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		if job.Matrix != nil {
			continue
		}
		if !hasTestStep(job) {
			continue
		}
		duration := job.Duration()
		if duration < unshardedThresholdSecs {
			continue
		}
		shards := mathutil.ClampInt(int(math.Ceil(duration/shardTargetSecs)), 2, 8)
		savings := duration - duration/float64(shards)
		n++
		findings = append(findings, Finding{
			ID:           fmt.Sprintf("PLX-SHARD-%03d", n),
			Severity:     SeverityHigh,
			Category:     CategoryUnshardedTests,
			Title:        fmt.Sprintf("Test job %q runs serially for %.0f minutes", id, duration/60),
			Description:  fmt.Sprintf("Splitting the suite across %d shards brings the job to roughly %.0f minutes.", shards, duration/float64(shards)/60),
			AffectedJobs: []string{id},
			Recommendation: fmt.Sprintf("Add a shard matrix axis with %d shards and split the test command accordingly.", shards),
			FixCommand:           fmt.Sprintf("pipelinex optimize --fix shard --job %s", id),
			EstimatedSavingsSecs: savings,
			Confidence:           85,
			AutoFixable:          true,
		})
	}
	return findings
}

func hasTestStep(job *dag.Job) bool {
	for _, step := range job.Steps {
		if providers.ClassifyStep(step) == providers.ClassTest {
			return true
		}
	}
	return false
}

// Flaky classification bounds: below the floor a failure is noise, above
// the ceiling the test is simply broken, not flaky.
const (
	flakyMinRate = 0.02
	flakyMaxRate = 0.5
	flakyMinRuns = 10
)

// detectFlakyTests needs history; without it the pass is silently skipped.
func detectFlakyTests(p *dag.Pipeline, opts *Options) []Finding {
	if opts.History == nil {
		return nil
	}
	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		stats, ok := opts.History.Stats(id)
		if !ok || stats.SuccessCount+stats.FailureCount < flakyMinRuns {
			continue
		}
		rate := stats.FailureRate()
		if rate < flakyMinRate || rate > flakyMaxRate {
			continue
		}
		severity := SeverityMedium
		if rate >= 0.15 {
			severity = SeverityHigh
		}
		n++
		findings = append(findings, Finding{
			ID:           fmt.Sprintf("PLX-FLAKY-%03d", n),
			Severity:     severity,
			Category:     CategoryFlakyTests,
			Title:        fmt.Sprintf("Job %q fails intermittently (%.1f%% of runs)", id, rate*100),
			Description:  fmt.Sprintf("Across %d recorded runs the job failed %d times without a code change pattern, the signature of flaky tests.", stats.SuccessCount+stats.FailureCount, stats.FailureCount),
			AffectedJobs: []string{id},
			Recommendation: "Quarantine or deflake the failing tests; retries hide the cost but keep paying it.",
			Confidence:   mathutil.ClampInt(int(rate*400), 40, 95),
		})
	}
	return findings
}

// detectMatrixBloat flags a matrix whose combinatoric cost dwarfs the
// rest of the pipeline: size × mean cell duration more than twice the
// sum of all non-matrix job durations.
func detectMatrixBloat(p *dag.Pipeline, _ *Options) []Finding {
	var nonMatrixSum float64
	for _, id := range p.JobIDs() {
		if job, _ := p.Job(id); job.Matrix == nil {
			nonMatrixSum += job.Duration()
		}
	}
	if nonMatrixSum == 0 {
		return nil
	}

	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		if job.Matrix == nil {
			continue
		}
		size := job.Matrix.Size()
		cellDuration := job.StepDurationSum()
		if cellDuration == 0 {
			cellDuration = job.EstimatedSeconds
		}
		cost := float64(size) * cellDuration
		if cost <= 2*nonMatrixSum {
			continue
		}
		n++
		findings = append(findings, Finding{
			ID:           fmt.Sprintf("PLX-MATRIX-%03d", n),
			Severity:     SeverityMedium,
			Category:     CategoryMatrixBloat,
			Title:        fmt.Sprintf("Matrix on %q burns %.0f compute-minutes per run", id, cost/60),
			Description:  fmt.Sprintf("%d matrix cells at ~%.0fs each cost more than twice the rest of the pipeline combined.", size, cellDuration),
			AffectedJobs: []string{id},
			Recommendation: "Keep one primary cell at full fidelity and reduce the remaining cells to a smoke subset via include.",
			FixCommand:           fmt.Sprintf("pipelinex optimize --fix matrix --job %s", id),
			EstimatedSavingsSecs: cost - cellDuration - float64(size-1)*cellDuration*0.2,
			Confidence:           80,
			AutoFixable:          true,
		})
	}
	return findings
}
