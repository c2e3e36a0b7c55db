// Package providers normalizes heterogeneous CI configuration formats
// into the shared pipeline DAG. Detection is pre-parser and deterministic;
// each parser produces exactly one DAG and never mutates its input.
package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/logger"
)

var log = logger.New("providers:parse")

// ParseFile detects the provider for path and parses it into a DAG.
func ParseFile(ctx context.Context, path string) (*dag.Pipeline, error) {
	provider, err := Detect(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(ctx, provider, path, data)
}

// Parse normalizes data for a known provider into a DAG. The path is
// carried for diagnostics only.
func Parse(ctx context.Context, provider dag.Provider, path string, data []byte) (*dag.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("parsing %s as %s", path, provider)

	data = stripBOM(data)
	switch provider {
	case dag.ProviderGitHubActions:
		return parseGitHub(ctx, path, data)
	case dag.ProviderGitLabCI:
		return parseGitLab(ctx, path, data)
	case dag.ProviderJenkins:
		return parseJenkins(ctx, path, data)
	case dag.ProviderCircleCI:
		return parseCircleCI(ctx, path, data)
	case dag.ProviderBitbucket:
		return parseBitbucket(ctx, path, data)
	case dag.ProviderAzurePipelines:
		return parseAzure(ctx, path, data)
	case dag.ProviderAWSCodePipeline:
		return parseAWSCodePipeline(ctx, path, data)
	case dag.ProviderBuildkite:
		return parseBuildkite(ctx, path, data)
	case dag.ProviderTekton:
		return parseTekton(ctx, path, data)
	case dag.ProviderArgo:
		return parseArgo(ctx, path, data)
	case dag.ProviderDrone:
		return parseDrone(ctx, path, data)
	}
	return nil, &ParseError{
		Kind:    ErrUnsupportedProvider,
		Path:    path,
		Message: fmt.Sprintf("no parser for provider %q", provider),
	}
}
