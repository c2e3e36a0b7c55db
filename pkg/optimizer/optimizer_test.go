package optimizer

import (
	"strings"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uncachedWorkflow = `name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: npm ci
      - run: npm run build
# deployment config lives in deploy.yml
`

func report(provider dag.Provider, findings ...analyzer.Finding) *analyzer.Report {
	return &analyzer.Report{Provider: provider, Findings: findings}
}

func cacheFinding(job string) analyzer.Finding {
	return analyzer.Finding{
		ID: "PLX-CACHE-001", Severity: analyzer.SeverityHigh,
		Category: analyzer.CategoryMissingCache,
		AffectedJobs: []string{job},
		Description:  "no npm cache",
		Recommendation: "Add a npm cache keyed by the lockfile hash.",
		Confidence:   90, AutoFixable: true,
	}
}

func TestOptimizeInjectsCacheStep(t *testing.T) {
	res, err := Optimize([]byte(uncachedWorkflow), report(dag.ProviderGitHubActions, cacheFinding("build")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)

	assert.Contains(t, res.Output, "actions/cache@v4")
	assert.Contains(t, res.Output, "hashFiles('package-lock.json')")
	assert.Contains(t, res.Output, "deployment config lives in deploy.yml", "trailing comment preserved")
}

func TestOptimizeCacheIdempotent(t *testing.T) {
	first, err := Optimize([]byte(uncachedWorkflow), report(dag.ProviderGitHubActions, cacheFinding("build")))
	require.NoError(t, err)
	require.Equal(t, 1, first.Applied)

	second, err := Optimize([]byte(first.Output), report(dag.ProviderGitHubActions, cacheFinding("build")))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Applied)
	assert.Equal(t, first.Output, second.Output, "optimize(optimize(x)) must be byte-identical")
	require.Len(t, second.Transcript, 1)
	assert.Equal(t, StateSkipped, second.Transcript[0].State)
	assert.Equal(t, SkipAlreadyApplied, second.Transcript[0].Reason)
}

func TestOptimizeUsesSetupActionCacheInput(t *testing.T) {
	src := `on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/setup-node@v4
        with:
          node-version: 20
      - run: npm ci
`
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, cacheFinding("build")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.Contains(t, res.Output, "cache: npm")
	assert.NotContains(t, res.Output, "actions/cache@v4", "setup action's built-in cache wins")
}

func TestOptimizeRemovesFalseDependency(t *testing.T) {
	src := `on: push
jobs:
  setup:
    runs-on: ubuntu-latest
    steps:
      - run: npm ci
  lint:
    needs: [setup]
    runs-on: ubuntu-latest
    steps:
      - run: npm run lint
  test:
    needs: [setup, lint]
    runs-on: ubuntu-latest
    steps:
      - run: npm test
`
	f := analyzer.Finding{
		ID: "PLX-SERIAL-001", Severity: analyzer.SeverityHigh,
		Category:     analyzer.CategoryFalseDependency,
		AffectedJobs: []string{"lint", "test"},
		Confidence:   85, AutoFixable: true,
	}
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.NotContains(t, res.Output, "lint]")
	assert.Contains(t, res.Output, "needs: [setup]")
}

func TestOptimizeRemovesScalarNeeds(t *testing.T) {
	src := `on: push
jobs:
  lint:
    runs-on: ubuntu-latest
    steps:
      - run: npm run lint
  test:
    needs: lint
    runs-on: ubuntu-latest
    steps:
      - run: npm test
`
	f := analyzer.Finding{
		ID: "PLX-SERIAL-001", Severity: analyzer.SeverityHigh,
		Category:     analyzer.CategoryFalseDependency,
		AffectedJobs: []string{"lint", "test"},
		Confidence:   85, AutoFixable: true,
	}
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.NotContains(t, res.Output, "needs:")
}

func TestOptimizeAddsShardMatrix(t *testing.T) {
	src := `on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
      - run: npx jest
`
	f := analyzer.Finding{
		ID: "PLX-SHARD-001", Severity: analyzer.SeverityHigh,
		Category:       analyzer.CategoryUnshardedTests,
		AffectedJobs:   []string{"test"},
		Recommendation: "Add a shard matrix axis with 3 shards and split the test command accordingly.",
		Confidence:     85, AutoFixable: true,
	}
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.Contains(t, res.Output, "shard: [1, 2, 3]")
	assert.Contains(t, res.Output, "--shard=${{ matrix.shard }}/3")
}

func TestOptimizeDockerCacheFlags(t *testing.T) {
	src := `on: push
jobs:
  image:
    runs-on: ubuntu-latest
    steps:
      - run: docker build -t app .
`
	f := analyzer.Finding{
		ID: "PLX-DOCKER-001", Severity: analyzer.SeverityHigh,
		Category:     analyzer.CategoryNoDockerCache,
		AffectedJobs: []string{"image"},
		Confidence:   85, AutoFixable: true,
	}
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.Contains(t, res.Output, "--cache-from type=gha,scope=image")
	assert.Contains(t, res.Output, "--cache-to type=gha,mode=max,scope=image")
}

func TestOptimizeMatrixPruning(t *testing.T) {
	src := `on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [ubuntu, macos, windows]
        node: [18, 20]
    steps:
      - run: npm test
`
	f := analyzer.Finding{
		ID: "PLX-MATRIX-001", Severity: analyzer.SeverityMedium,
		Category:     analyzer.CategoryMatrixBloat,
		AffectedJobs: []string{"test"},
		Confidence:   80, AutoFixable: true,
	}
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.Contains(t, res.Output, "include:")
	// Primary cell plus one smoke cell per non-primary value: 1 + 2 + 1.
	assert.Equal(t, 4, strings.Count(res.Output, "- os:"))
}

func TestOptimizeGitLabCache(t *testing.T) {
	src := `stages: [test]
unit:
  stage: test
  script:
    - npm ci
    - npm test
`
	res, err := Optimize([]byte(src), report(dag.ProviderGitLabCI, cacheFinding("unit")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	assert.Contains(t, res.Output, "cache:")
	assert.Contains(t, res.Output, "package-lock.json")
}

func TestOptimizeUnsupportedProvider(t *testing.T) {
	res, err := Optimize([]byte("steps: []"), report(dag.ProviderBuildkite, cacheFinding("x")))
	var optErr *Error
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, ErrUnsupportedProvider, optErr.Kind)
	assert.Equal(t, "steps: []", res.Output, "original source returned unchanged")
}

func TestOptimizeUnparseableSource(t *testing.T) {
	src := "jobs: [unclosed"
	res, err := Optimize([]byte(src), report(dag.ProviderGitHubActions, cacheFinding("x")))
	var optErr *Error
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, ErrSourceUnparseable, optErr.Kind)
	assert.Equal(t, src, res.Output)
}

func TestOptimizeSkipsLowConfidence(t *testing.T) {
	f := cacheFinding("build")
	f.Confidence = 60
	res, err := Optimize([]byte(uncachedWorkflow), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, uncachedWorkflow, res.Output, "untouched source returned verbatim")
	require.Len(t, res.Transcript, 1)
	assert.Equal(t, SkipLowConfidence, res.Transcript[0].Reason)
}

func TestOptimizeConflictResolvedBySeverity(t *testing.T) {
	low := cacheFinding("build")
	low.ID = "PLX-CACHE-002"
	low.Severity = analyzer.SeverityMedium
	high := cacheFinding("build")
	high.Severity = analyzer.SeverityCritical

	res, err := Optimize([]byte(uncachedWorkflow), report(dag.ProviderGitHubActions, low, high))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	var applied, conflicted string
	for _, d := range res.Transcript {
		switch d.State {
		case StateApplied:
			applied = d.FindingID
		case StateSkipped:
			if d.Reason == SkipConflict {
				conflicted = d.FindingID
			}
		}
	}
	assert.Equal(t, "PLX-CACHE-001", applied, "higher severity wins")
	assert.Equal(t, "PLX-CACHE-002", conflicted)
}

func TestOptimizeNonAutoFixableIgnored(t *testing.T) {
	f := cacheFinding("build")
	f.AutoFixable = false
	res, err := Optimize([]byte(uncachedWorkflow), report(dag.ProviderGitHubActions, f))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Empty(t, res.Transcript, "non-candidates never enter the state machine")
}
