package config

import (
	"testing"

	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(constants.EnvPluginManifest, "")
	t.Setenv(constants.EnvOffline, "")
	t.Setenv(constants.EnvSeed, "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.PluginManifestPath)
	assert.False(t, cfg.Offline)
	assert.False(t, cfg.SeedSet)
}

func TestFromEnvReadsValues(t *testing.T) {
	t.Setenv(constants.EnvPluginManifest, "/etc/pipelinex/plugins.json")
	t.Setenv(constants.EnvOffline, "1")
	t.Setenv(constants.EnvSeed, "12345")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/etc/pipelinex/plugins.json", cfg.PluginManifestPath)
	assert.True(t, cfg.Offline)
	assert.True(t, cfg.SeedSet)
	assert.Equal(t, uint64(12345), cfg.Seed)
}

func TestFromEnvRejectsMalformedSeed(t *testing.T) {
	t.Setenv(constants.EnvSeed, "forty-two")
	_, err := FromEnv()
	assert.Error(t, err)
}
