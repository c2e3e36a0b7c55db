package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, ids ...string) *Pipeline {
	t.Helper()
	p := New("chain", ProviderGitHubActions)
	for _, id := range ids {
		require.NoError(t, p.AddJob(&Job{ID: id, Name: id, EstimatedSeconds: 60}))
	}
	for i := 1; i < len(ids); i++ {
		require.NoError(t, p.AddEdge(ids[i-1], ids[i]))
	}
	return p
}

func TestAddJobRejectsDuplicateID(t *testing.T) {
	p := New("test", ProviderGitLabCI)
	require.NoError(t, p.AddJob(&Job{ID: "build"}))

	err := p.AddJob(&Job{ID: "build"})
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "build", dup.ID)
}

func TestAddEdgeRejectsUnknownNode(t *testing.T) {
	p := New("test", ProviderGitLabCI)
	require.NoError(t, p.AddJob(&Job{ID: "a"}))

	tests := []struct {
		name     string
		from, to string
		wantID   string
	}{
		{name: "unknown from", from: "ghost", to: "a", wantID: "ghost"},
		{name: "unknown to", from: "a", to: "ghost", wantID: "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.AddEdge(tt.from, tt.to)
			var unknown *UnknownNodeError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, tt.wantID, unknown.ID)
		})
	}
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	p := buildChain(t, "a", "b", "c")

	err := p.AddEdge("c", "a")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "c", cycle.From)
	assert.Equal(t, "a", cycle.To)
	assert.Contains(t, cycle.Path, "b")
}

func TestAddEdgeRejectsSelfLoop(t *testing.T) {
	p := New("test", ProviderJenkins)
	require.NoError(t, p.AddJob(&Job{ID: "a"}))

	err := p.AddEdge("a", "a")
	var cycle *CycleError
	assert.True(t, errors.As(err, &cycle))
}

func TestAddEdgeIdempotent(t *testing.T) {
	p := buildChain(t, "a", "b")
	require.NoError(t, p.AddEdge("a", "b"))
	assert.Equal(t, []string{"a"}, p.Predecessors("b"))
}

func TestTopologicalOrderBreaksTiesByInsertion(t *testing.T) {
	p := New("diamond", ProviderCircleCI)
	for _, id := range []string{"setup", "lint", "test", "deploy"} {
		require.NoError(t, p.AddJob(&Job{ID: id}))
	}
	require.NoError(t, p.AddEdge("setup", "lint"))
	require.NoError(t, p.AddEdge("setup", "test"))
	require.NoError(t, p.AddEdge("lint", "deploy"))
	require.NoError(t, p.AddEdge("test", "deploy"))

	assert.Equal(t, []string{"setup", "lint", "test", "deploy"}, p.TopologicalOrder())
}

func TestLongestPathWeighted(t *testing.T) {
	p := New("weighted", ProviderGitHubActions)
	require.NoError(t, p.AddJob(&Job{ID: "setup", EstimatedSeconds: 60}))
	require.NoError(t, p.AddJob(&Job{ID: "quick", EstimatedSeconds: 30}))
	require.NoError(t, p.AddJob(&Job{ID: "slow", EstimatedSeconds: 480}))
	require.NoError(t, p.AddJob(&Job{ID: "deploy", EstimatedSeconds: 60}))
	require.NoError(t, p.AddEdge("setup", "quick"))
	require.NoError(t, p.AddEdge("setup", "slow"))
	require.NoError(t, p.AddEdge("quick", "deploy"))
	require.NoError(t, p.AddEdge("slow", "deploy"))

	path, total := p.LongestPath()
	assert.Equal(t, []string{"setup", "slow", "deploy"}, path)
	assert.InDelta(t, 600, total, 0.001)
}

func TestLongestPathIsTopologicalChain(t *testing.T) {
	p := buildChain(t, "a", "b", "c", "d", "e")
	path, total := p.LongestPath()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, path)
	assert.InDelta(t, 300, total, 0.001)
	for i := 1; i < len(path); i++ {
		assert.True(t, p.HasEdge(path[i-1], path[i]), "path must follow edges")
	}
}

func TestLongestPathEmptyGraph(t *testing.T) {
	p := New("empty", ProviderDrone)
	path, total := p.LongestPath()
	assert.Empty(t, path)
	assert.Zero(t, total)
}

func TestMaxParallelism(t *testing.T) {
	p := New("fanout", ProviderBuildkite)
	require.NoError(t, p.AddJob(&Job{ID: "setup"}))
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, p.AddJob(&Job{ID: id}))
		require.NoError(t, p.AddEdge("setup", id))
	}
	require.NoError(t, p.AddJob(&Job{ID: "deploy"}))
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, p.AddEdge(id, "deploy"))
	}

	assert.Equal(t, 3, p.MaxParallelism())
}

func TestPredecessorsSuccessors(t *testing.T) {
	p := buildChain(t, "a", "b", "c")
	assert.Empty(t, p.Predecessors("a"))
	assert.Equal(t, []string{"b"}, p.Predecessors("c"))
	assert.Equal(t, []string{"b"}, p.Successors("a"))
	assert.Empty(t, p.Successors("c"))
}

func TestStepCount(t *testing.T) {
	p := New("steps", ProviderAzurePipelines)
	require.NoError(t, p.AddJob(&Job{ID: "a", Steps: []Step{{Run: "make"}, {Run: "make test"}}}))
	require.NoError(t, p.AddJob(&Job{ID: "b", Steps: []Step{{Run: "make deploy"}}}))
	assert.Equal(t, 3, p.StepCount())
}
