// Package config reads the environment variables recognized by the core
// into an immutable struct. The struct is built once at startup and passed
// by reference to components; no process-wide singletons are introduced.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pipelinex/pipelinex/pkg/constants"
)

// Config carries the environment-derived settings for one invocation.
type Config struct {
	// PluginManifestPath overrides the default .pipelinex/plugins.json location.
	PluginManifestPath string

	// Offline disables history fetching.
	Offline bool

	// Seed is the simulator seed; SeedSet distinguishes 0 from unset.
	Seed    uint64
	SeedSet bool
}

// FromEnv builds a Config from the process environment.
// A malformed PIPELINEX_SEED is reported as an error rather than ignored
// so simulation runs are never silently non-reproducible.
func FromEnv() (*Config, error) {
	cfg := &Config{
		PluginManifestPath: os.Getenv(constants.EnvPluginManifest),
		Offline:            os.Getenv(constants.EnvOffline) != "",
	}
	if raw := os.Getenv(constants.EnvSeed); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", constants.EnvSeed, raw, err)
		}
		cfg.Seed = seed
		cfg.SeedSet = true
	}
	return cfg, nil
}
