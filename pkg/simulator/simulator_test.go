package simulator

import (
	"context"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamondPipeline(t *testing.T) *dag.Pipeline {
	t.Helper()
	p := dag.New("diamond", dag.ProviderGitHubActions)
	durations := map[string]float64{"setup": 60, "fast": 30, "slow": 300, "deploy": 60}
	for _, id := range []string{"setup", "fast", "slow", "deploy"} {
		require.NoError(t, p.AddJob(&dag.Job{ID: id, EstimatedSeconds: durations[id]}))
	}
	require.NoError(t, p.AddEdge("setup", "fast"))
	require.NoError(t, p.AddEdge("setup", "slow"))
	require.NoError(t, p.AddEdge("fast", "deploy"))
	require.NoError(t, p.AddEdge("slow", "deploy"))
	return p
}

func TestSimulateDeterministicForSeed(t *testing.T) {
	p := diamondPipeline(t)
	opts := Options{Runs: 1000, Seed: 42, SeedSet: true}

	a, err := Simulate(context.Background(), p, opts)
	require.NoError(t, err)
	b, err := Simulate(context.Background(), p, opts)
	require.NoError(t, err)

	assert.Equal(t, a.P50, b.P50)
	assert.Equal(t, a.P90, b.P90)
	assert.Equal(t, a.P99, b.P99)
	assert.Equal(t, a.Mean, b.Mean)
	assert.Equal(t, a.Histogram, b.Histogram)
	assert.Equal(t, a.PerJob, b.PerJob)
}

func TestSimulateDeterministicAcrossWorkerCounts(t *testing.T) {
	p := diamondPipeline(t)

	serial, err := Simulate(context.Background(), p, Options{Runs: 500, Seed: 7, SeedSet: true, Workers: 1})
	require.NoError(t, err)
	parallel, err := Simulate(context.Background(), p, Options{Runs: 500, Seed: 7, SeedSet: true, Workers: 8})
	require.NoError(t, err)

	assert.Equal(t, serial.P50, parallel.P50)
	assert.Equal(t, serial.Mean, parallel.Mean)
}

func TestSimulateDistributionShape(t *testing.T) {
	p := diamondPipeline(t)
	res, err := Simulate(context.Background(), p, Options{Runs: 2000, Seed: 42, SeedSet: true})
	require.NoError(t, err)

	// Expected critical path mean: 60 + 300 + 60 = 420.
	assert.InDelta(t, 420, res.Mean, 40)
	assert.LessOrEqual(t, res.Min, res.P50)
	assert.LessOrEqual(t, res.P50, res.P90)
	assert.LessOrEqual(t, res.P90, res.P99)
	assert.LessOrEqual(t, res.P99, res.Max)

	total := 0
	require.Len(t, res.Histogram, 6)
	for _, b := range res.Histogram {
		total += b.Count
	}
	assert.Equal(t, 2000, total)
}

func TestSimulateCriticalFractions(t *testing.T) {
	p := diamondPipeline(t)
	res, err := Simulate(context.Background(), p, Options{Runs: 1000, Seed: 42, SeedSet: true})
	require.NoError(t, err)

	// The slow branch dominates; the fast branch almost never decides.
	assert.Greater(t, res.PerJob["slow"].CriticalFraction, 0.95)
	assert.Less(t, res.PerJob["fast"].CriticalFraction, 0.05)
	assert.InDelta(t, 1.0, res.PerJob["setup"].CriticalFraction, 0.001)
}

func TestSimulateVarianceOverride(t *testing.T) {
	p := diamondPipeline(t)
	narrow, err := Simulate(context.Background(), p, Options{Runs: 1000, Seed: 42, SeedSet: true,
		VarianceOverride: map[string]float64{"slow": 1}})
	require.NoError(t, err)
	wide, err := Simulate(context.Background(), p, Options{Runs: 1000, Seed: 42, SeedSet: true,
		VarianceOverride: map[string]float64{"slow": 150}})
	require.NoError(t, err)

	assert.Less(t, narrow.StdDev, wide.StdDev)
}

func TestSimulateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulate(ctx, diamondPipeline(t), Options{Runs: 100})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed("1234")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), seed)

	_, err = ParseSeed("not-a-number")
	var invalid *InvalidSeedError
	assert.ErrorAs(t, err, &invalid)
}
