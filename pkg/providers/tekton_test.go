package providers

import (
	"context"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three documents: a PipelineRun, the Pipeline it runs, and an unrelated
// ConfigMap that must be ignored.
const tektonMultiDoc = `
apiVersion: tekton.dev/v1
kind: PipelineRun
metadata:
  name: build-run
spec:
  pipelineRef:
    name: build
---
apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: build
spec:
  tasks:
    - name: fetch
      taskSpec:
        steps:
          - name: clone
            script: git clone .
    - name: compile
      runAfter: [fetch]
      taskSpec:
        steps:
          - name: build
            script: make build
    - name: unit
      runAfter: [fetch]
      taskSpec:
        steps:
          - name: test
            script: make test
  finally:
    - name: report
      taskSpec:
        steps:
          - name: publish
            script: make report
    - name: cleanup
      taskSpec:
        steps:
          - name: rm
            script: make clean
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: unrelated
data:
  foo: bar
`

func TestParseTektonMultiDocument(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderTekton, "pipeline.yaml", []byte(tektonMultiDoc))
	require.NoError(t, err)

	assert.Equal(t, "build", p.Name)
	assert.Equal(t, 5, p.JobCount(), "ConfigMap must be ignored")

	assert.True(t, p.HasEdge("fetch", "compile"))
	assert.True(t, p.HasEdge("fetch", "unit"))

	// Implicit edges: every tasks[*] entry precedes every finally[*] entry.
	for _, task := range []string{"fetch", "compile", "unit"} {
		for _, fin := range []string{"report", "cleanup"} {
			assert.True(t, p.HasEdge(task, fin), "%s -> %s", task, fin)
		}
	}
	assert.False(t, p.HasEdge("report", "cleanup"))
}

func TestParseTektonPipelineRunWithInlineSpec(t *testing.T) {
	p, err := Parse(context.Background(), dag.ProviderTekton, "run.yaml", []byte(`
apiVersion: tekton.dev/v1
kind: PipelineRun
metadata:
  name: inline-run
spec:
  pipelineSpec:
    tasks:
      - name: only
        taskSpec:
          steps:
            - name: go
              command: [make, all]
`))
	require.NoError(t, err)
	assert.Equal(t, 1, p.JobCount())
	job, ok := p.Job("only")
	require.True(t, ok)
	require.Len(t, job.Steps, 1)
	assert.Equal(t, "make all", job.Steps[0].Run)
}

func TestParseTektonNoCIDocuments(t *testing.T) {
	_, err := Parse(context.Background(), dag.ProviderTekton, "cm.yaml", []byte(`
apiVersion: v1
kind: ConfigMap
metadata:
  name: only
`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, ErrSchemaMismatch, parseErr.Kind)
}
