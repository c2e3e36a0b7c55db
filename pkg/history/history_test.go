package history

import (
	"testing"

	"github.com/pipelinex/pipelinex/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := testutil.WriteFixture(t, "history.json", `{
  "per_job": {
    "test": {"durations_sec": [100, 200, 300], "success_count": 28, "failure_count": 2, "variance": 40}
  }
}`)
	snap, err := LoadFile(path)
	require.NoError(t, err)

	stats, ok := snap.Stats("test")
	require.True(t, ok)
	assert.InDelta(t, 200, stats.MeanDuration(), 0.001)
	assert.InDelta(t, 2.0/30.0, stats.FailureRate(), 0.001)

	_, ok = snap.Stats("missing")
	assert.False(t, ok)
}

func TestNilSnapshotStats(t *testing.T) {
	var snap *Snapshot
	_, ok := snap.Stats("anything")
	assert.False(t, ok)
}

func TestZeroRunStats(t *testing.T) {
	stats := JobStats{}
	assert.Zero(t, stats.MeanDuration())
	assert.Zero(t, stats.FailureRate())
}
