package providers

import (
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectByFilename(t *testing.T) {
	tests := []struct {
		path string
		want dag.Provider
	}{
		{"repo/Jenkinsfile", dag.ProviderJenkins},
		{"repo/.github/workflows/ci.yml", dag.ProviderGitHubActions},
		{"repo/.github/workflows/release.yaml", dag.ProviderGitHubActions},
		{"repo/.gitlab-ci.yml", dag.ProviderGitLabCI},
		{"repo/.circleci/config.yml", dag.ProviderCircleCI},
		{"repo/bitbucket-pipelines.yml", dag.ProviderBitbucket},
		{"repo/azure-pipelines.yml", dag.ProviderAzurePipelines},
		{"repo/.buildkite/pipeline.yml", dag.ProviderBuildkite},
		{"repo/codepipeline.json", dag.ProviderAWSCodePipeline},
		{"repo/.drone.yml", dag.ProviderDrone},
		{"repo/.woodpecker.yml", dag.ProviderDrone},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Detect(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectJenkinsfileBeatsYAMLPatterns(t *testing.T) {
	got, err := Detect("ci/Jenkinsfile")
	require.NoError(t, err)
	assert.Equal(t, dag.ProviderJenkins, got)
}

func TestDetectTektonByKind(t *testing.T) {
	path := testutil.WriteFixture(t, "pipeline.yaml", `
apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: build
spec:
  tasks: []
`)
	got, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, dag.ProviderTekton, got)
}

func TestDetectArgoByKind(t *testing.T) {
	path := testutil.WriteFixture(t, "workflow.yaml", `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  generateName: build-
spec:
  entrypoint: main
`)
	got, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, dag.ProviderArgo, got)
}

func TestDetectUnknownFileFails(t *testing.T) {
	path := testutil.WriteFixture(t, "random.yaml", "foo: bar\n")
	_, err := Detect(path)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, ErrUnsupportedProvider, parseErr.Kind)
}
