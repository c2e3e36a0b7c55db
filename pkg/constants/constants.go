// Package constants defines shared constants used across the CLI and core.
package constants

import "time"

// CLIName is the binary name used in help text and version output.
const CLIName = "pipelinex"

// Environment variables recognized by the core.
const (
	// EnvPluginManifest overrides the default plugin manifest location.
	EnvPluginManifest = "PIPELINEX_PLUGIN_MANIFEST"

	// EnvOffline disables any history fetching when set to a non-empty value.
	EnvOffline = "PIPELINEX_OFFLINE"

	// EnvSeed seeds the Monte-Carlo simulator for reproducible runs.
	EnvSeed = "PIPELINEX_SEED"
)

// DefaultPluginManifestPath is resolved relative to the analyzed repository root.
const DefaultPluginManifestPath = ".pipelinex/plugins.json"

// DefaultPluginTimeout bounds a single plugin subprocess invocation.
const DefaultPluginTimeout = 10 * time.Second

// SpinnerRunThreshold is the simulation run count at or above which the
// CLI shows a progress indicator on TTYs.
const SpinnerRunThreshold = 5000

// Exit codes shared by all subcommands.
const (
	ExitClean       = 0
	ExitFindings    = 1
	ExitParseError  = 2
	ExitConfigError = 3
)
