package providers

import (
	"context"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseBuildkiteFixture(t *testing.T, content string) *dag.Pipeline {
	t.Helper()
	p, err := Parse(context.Background(), dag.ProviderBuildkite, ".buildkite/pipeline.yml", []byte(content))
	require.NoError(t, err)
	return p
}

func TestParseBuildkiteWaitBarrier(t *testing.T) {
	p := parseBuildkiteFixture(t, `
steps:
  - key: lint
    command: make lint
  - key: unit
    command: make test
  - wait: ~
  - key: package
    command: make package
  - key: publish
    command: make publish
`)
	assert.Equal(t, 4, p.JobCount())
	for _, before := range []string{"lint", "unit"} {
		for _, after := range []string{"package", "publish"} {
			assert.True(t, p.HasEdge(before, after), "%s -> %s", before, after)
		}
	}
	assert.False(t, p.HasEdge("lint", "unit"))
	assert.False(t, p.HasEdge("package", "publish"))
}

func TestParseBuildkiteBlockIsHardBarrier(t *testing.T) {
	p := parseBuildkiteFixture(t, `
steps:
  - key: build
    command: make
  - block: ":rocket: Release?"
  - key: deploy
    command: make deploy
`)
	assert.True(t, p.HasEdge("build", "deploy"))
}

func TestParseBuildkiteBareWaitString(t *testing.T) {
	p := parseBuildkiteFixture(t, `
steps:
  - key: a
    command: make a
  - wait
  - key: b
    command: make b
`)
	assert.True(t, p.HasEdge("a", "b"))
}

func TestParseBuildkiteDependsOn(t *testing.T) {
	p := parseBuildkiteFixture(t, `
steps:
  - key: build
    command: make
  - key: test
    command: make test
    depends_on:
      - build
  - key: publish
    command: make publish
    depends_on:
      - step: test
`)
	assert.True(t, p.HasEdge("build", "test"))
	assert.True(t, p.HasEdge("test", "publish"))
}

func TestParseBuildkiteParallelismShards(t *testing.T) {
	p := parseBuildkiteFixture(t, `
steps:
  - key: test
    command: make test
    parallelism: 6
`)
	job, ok := p.Job("test")
	require.True(t, ok)
	require.NotNil(t, job.Matrix)
	assert.Equal(t, 6, job.Matrix.Size())
}

func TestParseBuildkiteLabelSlugFallback(t *testing.T) {
	p := parseBuildkiteFixture(t, `
steps:
  - label: ":hammer: Build It"
    command: make
`)
	ids := p.JobIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, "hammer-build-it", ids[0])
}
