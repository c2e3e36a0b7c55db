package providers

import (
	"context"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCircleCIRequires(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderCircleCI, ".circleci/config.yml", []byte(`
version: 2.1
jobs:
  build:
    docker:
      - image: cimg/go:1.22
    steps:
      - checkout
      - run: make build
  test:
    docker:
      - image: cimg/go:1.22
    parallelism: 4
    steps:
      - checkout
      - run:
          name: unit tests
          command: make test
workflows:
  main:
    jobs:
      - build
      - test:
          requires: [build]
`))
	require.NoError(t, err)
	assert.Equal(t, "main", p.Name)
	assert.True(t, p.HasEdge("build", "test"))

	test, ok := p.Job("test")
	require.True(t, ok)
	require.NotNil(t, test.Matrix)
	assert.Equal(t, 4, test.Matrix.Size())
	assert.Equal(t, "docker:cimg/go:1.22", test.RunsOn)
}

func TestParseBitbucketParallelGroup(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderBitbucket, "bitbucket-pipelines.yml", []byte(`
pipelines:
  default:
    - step:
        name: Install
        caches: [node]
        script:
          - npm ci
    - parallel:
        - step:
            name: Lint
            script:
              - npm run lint
        - step:
            name: Test
            script:
              - npm test
    - step:
        name: Deploy
        script:
          - npm run deploy
`))
	require.NoError(t, err)
	require.Equal(t, 4, p.JobCount())

	// step-1 install, step-2/3 parallel, step-4 deploy
	assert.True(t, p.HasEdge("step-1", "step-2"))
	assert.True(t, p.HasEdge("step-1", "step-3"))
	assert.True(t, p.HasEdge("step-2", "step-4"))
	assert.True(t, p.HasEdge("step-3", "step-4"))
	assert.False(t, p.HasEdge("step-2", "step-3"))

	install, _ := p.Job("step-1")
	require.Len(t, install.Caches, 1)
}

func TestParseAzureDependsOn(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderAzurePipelines, "azure-pipelines.yml", []byte(`
trigger:
  branches:
    include: [main]
  paths:
    include: [src/*]
jobs:
  - job: Build
    pool:
      vmImage: ubuntu-latest
    steps:
      - script: make build
  - job: Test
    dependsOn: Build
    steps:
      - script: make test
  - job: Deploy
    dependsOn: [Build, Test]
    condition: succeeded()
    steps:
      - script: make deploy
`))
	require.NoError(t, err)
	assert.True(t, p.HasPathFilters)
	assert.True(t, p.HasEdge("build", "test"))
	assert.True(t, p.HasEdge("build", "deploy"))
	assert.True(t, p.HasEdge("test", "deploy"))

	deploy, _ := p.Job("deploy")
	assert.Equal(t, "succeeded()", deploy.Condition)
}

func TestParseAWSRunOrderGroups(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderAWSCodePipeline, "codepipeline.json", []byte(`{
  "pipeline": {
    "name": "release",
    "stages": [
      {
        "name": "Source",
        "actions": [
          {"name": "Fetch", "runOrder": 1, "actionTypeId": {"category": "Source", "provider": "CodeCommit"}}
        ]
      },
      {
        "name": "Build",
        "actions": [
          {"name": "Compile", "runOrder": 1, "actionTypeId": {"category": "Build", "provider": "CodeBuild"}},
          {"name": "Audit", "runOrder": 1, "actionTypeId": {"category": "Test", "provider": "CodeBuild"}},
          {"name": "Package", "runOrder": 2, "actionTypeId": {"category": "Build", "provider": "CodeBuild"}}
        ]
      }
    ]
  }
}`))
	require.NoError(t, err)
	assert.Equal(t, "release", p.Name)
	require.Equal(t, 4, p.JobCount())

	// Equal run-orders are parallel; the next group depends on them all.
	assert.True(t, p.HasEdge("source-fetch", "build-compile"))
	assert.True(t, p.HasEdge("source-fetch", "build-audit"))
	assert.True(t, p.HasEdge("build-compile", "build-package"))
	assert.True(t, p.HasEdge("build-audit", "build-package"))
	assert.False(t, p.HasEdge("build-compile", "build-audit"))
}

func TestParseArgoDagDependencies(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderArgo, "workflow.yaml", []byte(`
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: ci
spec:
  entrypoint: main
  templates:
    - name: main
      dag:
        tasks:
          - name: fetch
            template: clone
          - name: build
            template: make
            dependencies: [fetch]
          - name: test
            template: make
            depends: "fetch.Succeeded"
    - name: clone
      container:
        command: [git, clone]
    - name: make
      container:
        command: [make]
`))
	require.NoError(t, err)
	assert.True(t, p.HasEdge("fetch", "build"))
	assert.True(t, p.HasEdge("fetch", "test"))
}

func TestParseArgoStepsPhases(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderArgo, "workflow.yaml", []byte(`
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  generateName: phased-
spec:
  entrypoint: main
  templates:
    - name: main
      steps:
        - - name: prep
            template: shell
        - - name: left
            template: shell
          - name: right
            template: shell
        - - name: finish
            template: shell
    - name: shell
      script:
        source: make all
`))
	require.NoError(t, err)
	assert.Equal(t, 4, p.JobCount())
	assert.True(t, p.HasEdge("prep", "left"))
	assert.True(t, p.HasEdge("prep", "right"))
	assert.True(t, p.HasEdge("left", "finish"))
	assert.True(t, p.HasEdge("right", "finish"))
	assert.False(t, p.HasEdge("left", "right"))
}

func TestParseDroneMultiPipeline(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderDrone, ".drone.yml", []byte(`
kind: pipeline
type: docker
name: build
steps:
  - name: compile
    image: golang:1.22
    commands:
      - go build ./...
---
kind: pipeline
type: docker
name: publish
depends_on: [build]
steps:
  - name: push
    image: plugins/docker
---
kind: signature
hmac: abc123
`))
	require.NoError(t, err)
	assert.Equal(t, 2, p.JobCount(), "signature document must be skipped")
	assert.True(t, p.HasEdge("build", "publish"))
}
