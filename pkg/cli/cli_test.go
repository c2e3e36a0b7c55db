package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/providers"
	"github.com/pipelinex/pipelinex/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflowFixture = `name: CI
on: push
jobs:
  setup:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: npm ci
  test:
    needs: setup
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: npm ci
      - run: npm test
`

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"clean", nil, constants.ExitClean},
		{"findings", &ExitError{Code: constants.ExitFindings}, constants.ExitFindings},
		{"parse", &providers.ParseError{Kind: providers.ErrYamlSyntax}, constants.ExitParseError},
		{"missing file", os.ErrNotExist, constants.ExitParseError},
		{"wrapped parse", fmt.Errorf("outer: %w", &providers.ParseError{Kind: providers.ErrCycle}), constants.ExitParseError},
		{"config", errors.New("bad flag"), constants.ExitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestAnalyzeFileProducesReport(t *testing.T) {
	path := testutil.WriteFixture(t, ".github/workflows/ci.yml", workflowFixture)

	report, pipeline, err := analyzeFile(context.Background(), path, &commonFlags{format: "text"})
	require.NoError(t, err)
	assert.Equal(t, 2, pipeline.JobCount())
	assert.Equal(t, []string{"setup", "test"}, report.CriticalPath)
	assert.NotEmpty(t, report.Findings, "uncached installs must be flagged")
}

func TestAnalyzeFileRejectsBadHistoryPath(t *testing.T) {
	path := testutil.WriteFixture(t, ".github/workflows/ci.yml", workflowFixture)

	_, _, err := analyzeFile(context.Background(), path, &commonFlags{historyPath: "/nonexistent/history.json"})
	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, constants.ExitConfigError, exit.Code)
}

func TestEmitFailOnThreshold(t *testing.T) {
	path := testutil.WriteFixture(t, ".github/workflows/ci.yml", workflowFixture)
	report, _, err := analyzeFile(context.Background(), path, &commonFlags{})
	require.NoError(t, err)

	err = emit(report, &commonFlags{format: "json", failOn: "high"})
	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, constants.ExitFindings, exit.Code)

	err = emit(report, &commonFlags{format: "json", failOn: "bogus"})
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, constants.ExitConfigError, exit.Code)
}

func TestFindingDocsCoverEveryFamily(t *testing.T) {
	for _, prefix := range []string{
		"PLX-CACHE", "PLX-SERIAL", "PLX-SHARD", "PLX-DOCKER", "PLX-DUPSETUP",
		"PLX-FLAKY", "PLX-RUNNER", "PLX-ARTIFACT", "PLX-CLONE", "PLX-CONCUR",
		"PLX-MATRIX", "PLX-PATHS",
	} {
		_, ok := findingDocs[prefix]
		assert.True(t, ok, "missing explain doc for %s", prefix)
	}
}

func TestRenderGitHubWorkflowSkeleton(t *testing.T) {
	path := testutil.WriteFixture(t, ".gitlab-ci.yml", `
stages: [build, deploy]
compile:
  stage: build
  script: [make]
release:
  stage: deploy
  script: [make release]
`)
	pipeline, err := providers.ParseFile(context.Background(), path)
	require.NoError(t, err)

	rendered, err := renderGitHubWorkflow(pipeline)
	require.NoError(t, err)
	assert.Contains(t, rendered, "runs-on: ubuntu-latest")
	assert.Contains(t, rendered, "actions/checkout@v4")
	assert.Contains(t, rendered, "make release")
}
