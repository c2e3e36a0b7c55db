package analyzer

import (
	"context"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// npmChainPipeline models the canonical uncached serial workflow:
// setup -> lint -> test -> build -> deploy, every job reinstalling
// dependencies, job durations 3/3/8/3/3 minutes.
func npmChainPipeline(t *testing.T) *dag.Pipeline {
	t.Helper()
	p := dag.New("ci", dag.ProviderGitHubActions)
	p.Triggers = []string{"push"}

	jobs := []struct {
		id    string
		steps []dag.Step
	}{
		{"setup", []dag.Step{{Run: "npm ci", EstimatedSeconds: 180}}},
		{"lint", []dag.Step{{Run: "npm ci", EstimatedSeconds: 90}, {Run: "npm run lint", EstimatedSeconds: 90}}},
		{"test", []dag.Step{{Run: "npm ci", EstimatedSeconds: 120}, {Run: "npm test", EstimatedSeconds: 360}}},
		{"build", []dag.Step{{Run: "npm ci", EstimatedSeconds: 90}, {Run: "npm run build", EstimatedSeconds: 90}}},
		{"deploy", []dag.Step{{Run: "npm ci", EstimatedSeconds: 90}, {Run: "npm run deploy", EstimatedSeconds: 90}}},
	}
	for _, j := range jobs {
		require.NoError(t, p.AddJob(&dag.Job{ID: j.id, Name: j.id, Steps: j.steps, RunsOn: "ubuntu-latest"}))
	}
	for i := 1; i < len(jobs); i++ {
		require.NoError(t, p.AddEdge(jobs[i-1].id, jobs[i].id))
	}
	return p
}

func findByCategory(findings []Finding, c Category) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

func TestAnalyzeNpmChainScenario(t *testing.T) {
	report, err := Analyze(context.Background(), npmChainPipeline(t), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"setup", "lint", "test", "build", "deploy"}, report.CriticalPath)
	assert.InDelta(t, 1200, report.CriticalPathDurationSecs, 0.001)
	assert.InDelta(t, 1200, report.TotalEstimatedDurationSecs, 0.001)
	assert.Equal(t, 1, report.MaxParallelism)

	caches := findByCategory(report.Findings, CategoryMissingCache)
	require.Len(t, caches, 5, "every job reinstalls dependencies")
	first := caches[0]
	assert.Equal(t, SeverityCritical, first.Severity, "cache findings on the critical path escalate")
	assert.True(t, first.AutoFixable)

	serials := findByCategory(report.Findings, CategoryFalseDependency)
	require.NotEmpty(t, serials)
	var lintTest *Finding
	for i := range serials {
		if serials[i].AffectedJobs[0] == "lint" && serials[i].AffectedJobs[1] == "test" {
			lintTest = &serials[i]
		}
	}
	require.NotNil(t, lintTest, "edge lint -> test must be flagged removable")
	assert.Equal(t, SeverityHigh, lintTest.Severity)
	assert.InDelta(t, 180, lintTest.EstimatedSavingsSecs, 0.001)

	shards := findByCategory(report.Findings, CategoryUnshardedTests)
	require.Len(t, shards, 1)
	assert.Equal(t, []string{"test"}, shards[0].AffectedJobs)
	assert.Equal(t, SeverityHigh, shards[0].Severity)
	assert.InDelta(t, 320, shards[0].EstimatedSavingsSecs, 1)

	assert.LessOrEqual(t, report.OptimizedDurationSecs, 480.0)
	assert.GreaterOrEqual(t, report.OptimizedDurationSecs, 0.15*report.TotalEstimatedDurationSecs-0.001)

	assert.LessOrEqual(t, report.HealthScore.TotalScore, 50, "grade C or worse")
}

func TestAnalyzeFindingsSorted(t *testing.T) {
	report, err := Analyze(context.Background(), npmChainPipeline(t), nil)
	require.NoError(t, err)

	for i := 1; i < len(report.Findings); i++ {
		prev, cur := report.Findings[i-1], report.Findings[i]
		if prev.Severity.Priority() == cur.Severity.Priority() {
			assert.GreaterOrEqual(t, prev.EstimatedSavingsSecs, cur.EstimatedSavingsSecs)
		} else {
			assert.Greater(t, prev.Severity.Priority(), cur.Severity.Priority())
		}
	}
}

func TestAnalyzeOptimizedDurationBounds(t *testing.T) {
	report, err := Analyze(context.Background(), npmChainPipeline(t), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, report.OptimizedDurationSecs, report.TotalEstimatedDurationSecs)
	assert.GreaterOrEqual(t, report.OptimizedDurationSecs, 0.15*report.TotalEstimatedDurationSecs-0.001)
}

func TestAnalyzeSavingsClampedToJobDuration(t *testing.T) {
	report, err := Analyze(context.Background(), npmChainPipeline(t), nil)
	require.NoError(t, err)
	p := npmChainPipeline(t)
	for _, f := range report.Findings {
		var maxDur float64
		for _, id := range f.AffectedJobs {
			if job, ok := p.Job(id); ok && job.Duration() > maxDur {
				maxDur = job.Duration()
			}
		}
		if maxDur > 0 {
			assert.LessOrEqual(t, f.EstimatedSavingsSecs, maxDur+0.001, f.ID)
		}
	}
}

func TestAnalyzeHealthMonotonicity(t *testing.T) {
	findings := []Finding{{Severity: SeverityHigh}}
	base := scoreHealth(findings)
	withCritical := scoreHealth(append(findings, Finding{Severity: SeverityCritical}))
	assert.Less(t, withCritical.TotalScore, base.TotalScore)
}

func TestAnalyzeCleanPipelineScoresHigh(t *testing.T) {
	p := dag.New("clean", dag.ProviderGitHubActions)
	p.Triggers = []string{"push"}
	p.HasConcurrencyGroup = true
	require.NoError(t, p.AddJob(&dag.Job{
		ID:     "build",
		Steps:  []dag.Step{{Run: "npm ci", EstimatedSeconds: 60}, {Run: "npm run build", EstimatedSeconds: 60}},
		Caches: []dag.CacheConfig{{Tool: dag.CacheNPM, Key: "npm-lock"}},
		RunsOn: "ubuntu-latest",
	}))

	report, err := Analyze(context.Background(), p, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.HealthScore.TotalScore, 95)
	assert.Equal(t, "A+", report.HealthScore.Grade)
}

func TestAnalyzeFlakySkippedWithoutHistory(t *testing.T) {
	report, err := Analyze(context.Background(), npmChainPipeline(t), nil)
	require.NoError(t, err)
	assert.Empty(t, findByCategory(report.Findings, CategoryFlakyTests))
}

func TestAnalyzeFlakyWithHistory(t *testing.T) {
	snap := &history.Snapshot{PerJob: map[string]history.JobStats{
		"test": {SuccessCount: 80, FailureCount: 20, DurationsSec: []float64{400, 500}},
	}}
	report, err := Analyze(context.Background(), npmChainPipeline(t), &Options{History: snap})
	require.NoError(t, err)

	flaky := findByCategory(report.Findings, CategoryFlakyTests)
	require.Len(t, flaky, 1)
	assert.Equal(t, []string{"test"}, flaky[0].AffectedJobs)
	assert.Equal(t, SeverityHigh, flaky[0].Severity)
}

func TestAnalyzeHistoryOverridesDurations(t *testing.T) {
	p := npmChainPipeline(t)
	snap := &history.Snapshot{PerJob: map[string]history.JobStats{
		"test": {DurationsSec: []float64{1000, 1400}, SuccessCount: 2},
	}}
	report, err := Analyze(context.Background(), p, &Options{History: snap})
	require.NoError(t, err)
	// 180+180+1200+180+180
	assert.InDelta(t, 1920, report.CriticalPathDurationSecs, 0.001)
}

func TestAnalyzeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, npmChainPipeline(t), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectorPanicIsolated(t *testing.T) {
	defer func() {
		detectors = detectors[:len(detectors)-1]
	}()
	detectors = append(detectors, detector{
		name: "explosive",
		run:  func(*dag.Pipeline, *Options) []Finding { panic("boom") },
	})

	report, err := Analyze(context.Background(), npmChainPipeline(t), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Diagnostics)
	assert.NotEmpty(t, report.Findings, "remaining detectors still run")
}

type stubPlugins struct {
	findings    []Finding
	diagnostics []string
}

func (s *stubPlugins) Run(context.Context, *dag.Pipeline) ([]Finding, []string) {
	return s.findings, s.diagnostics
}

func TestAnalyzePluginFindingsAppended(t *testing.T) {
	plugins := &stubPlugins{
		findings:    []Finding{{ID: "EXT-001", Severity: SeverityInfo, Category: CategoryCustom, Title: "external"}},
		diagnostics: []string{"plugin slow-check timed out"},
	}
	report, err := Analyze(context.Background(), npmChainPipeline(t), &Options{Plugins: plugins})
	require.NoError(t, err)

	assert.NotEmpty(t, findByCategory(report.Findings, CategoryCustom))
	assert.Contains(t, report.Diagnostics, "plugin slow-check timed out")
}
