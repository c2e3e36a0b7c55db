package providers

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// parseGitHub normalizes a GitHub Actions workflow into a DAG. Jobs
// become nodes; `needs` declarations become edges.
func parseGitHub(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}

	name := getString(doc, "name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	p := dag.New(name, dag.ProviderGitHubActions)
	p.SourcePath = path
	parseGitHubTriggers(p, doc)

	if c := getMap(doc, "concurrency"); c != nil {
		p.HasConcurrencyGroup = getBool(c, "cancel-in-progress")
	}

	jobsSection := getMap(doc, "jobs")
	if jobsSection == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "workflow has no jobs section"}
	}

	jobIDs := sortedKeys(jobsSection)
	for _, id := range jobIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, ok := jobsSection[id].(map[string]any)
		if !ok {
			continue
		}
		job := buildGitHubJob(id, raw)
		if err := p.AddJob(job); err != nil {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{id}}
		}
	}

	for _, id := range jobIDs {
		raw, ok := jobsSection[id].(map[string]any)
		if !ok {
			continue
		}
		for _, need := range stringOrList(raw["needs"]) {
			if err := p.AddEdge(need, id); err != nil {
				return nil, edgeError(path, need, id, err)
			}
		}
	}
	return p, nil
}

// parseGitHubTriggers reads the `on:` key. GitHub accepts three shapes:
// a scalar event name, a sequence of events, and an event mapping. The
// key's value may also be the YAML boolean true (`on: true` is a valid
// truthy trigger form), which must not be treated as a mapping.
func parseGitHubTriggers(p *dag.Pipeline, doc map[string]any) {
	on, present := doc["on"]
	if !present {
		// YAML 1.1 decoders read the bare `on` key as boolean true; the
		// trigger set then lives under a "true" key.
		on, present = doc["true"]
	}
	if !present {
		return
	}

	switch v := on.(type) {
	case bool:
		// `on: true`: trigger set is present but unnamed.
		p.Triggers = append(p.Triggers, "push")
	case string:
		p.Triggers = append(p.Triggers, v)
	case []any:
		p.Triggers = append(p.Triggers, stringOrList(v)...)
	case map[string]any:
		for _, event := range sortedKeys(v) {
			p.Triggers = append(p.Triggers, event)
			if spec, ok := v[event].(map[string]any); ok {
				if paths := stringOrList(spec["paths"]); len(paths) > 0 {
					p.HasPathFilters = true
				}
				if paths := stringOrList(spec["paths-ignore"]); len(paths) > 0 {
					p.HasPathFilters = true
				}
			}
		}
	}
}

func buildGitHubJob(id string, raw map[string]any) *dag.Job {
	job := &dag.Job{
		ID:        id,
		Name:      getString(raw, "name"),
		Needs:     stringOrList(raw["needs"]),
		Condition: getString(raw, "if"),
		Env:       stringMap(raw["env"]),
		RunsOn:    strings.Join(stringOrList(raw["runs-on"]), ","),
	}
	if job.Name == "" {
		job.Name = id
	}
	if timeout := getFloat(raw, "timeout-minutes"); timeout > 0 {
		job.TimeoutSeconds = timeout * 60
	}
	if strategy := getMap(raw, "strategy"); strategy != nil {
		job.Matrix = buildGitHubMatrix(strategy)
	}

	for _, rawStep := range getSlice(raw, "steps") {
		stepMap, ok := rawStep.(map[string]any)
		if !ok {
			continue
		}
		step := dag.Step{
			Name:             getString(stepMap, "name"),
			Run:              getString(stepMap, "run"),
			Uses:             getString(stepMap, "uses"),
			WorkingDirectory: getString(stepMap, "working-directory"),
			Env:              stringMap(stepMap["env"]),
		}
		step.Pin = classifyPin(step.Uses)
		job.Steps = append(job.Steps, step)

		if cache := gitHubStepCache(stepMap); cache != nil {
			job.Caches = append(job.Caches, *cache)
		}
	}

	annotateDurations(job)
	return job
}

func buildGitHubMatrix(strategy map[string]any) *dag.Matrix {
	rawMatrix := getMap(strategy, "matrix")
	if rawMatrix == nil {
		return nil
	}
	m := &dag.Matrix{Axes: make(map[string][]string)}
	for _, axis := range sortedKeys(rawMatrix) {
		switch axis {
		case "include":
			m.IncludeCount = len(getSlice(rawMatrix, axis))
		case "exclude":
			m.ExcludeCount = len(getSlice(rawMatrix, axis))
		default:
			if values := axisValues(rawMatrix[axis]); len(values) > 0 {
				m.Axes[axis] = values
				m.Order = append(m.Order, axis)
			}
		}
	}
	m.MaxParallel = getInt(strategy, "max-parallel")
	if len(m.Axes) == 0 && m.IncludeCount == 0 {
		return nil
	}
	return m
}

// gitHubStepCache recognizes cache declarations: explicit actions/cache
// steps and the cache input of the setup-* actions.
func gitHubStepCache(stepMap map[string]any) *dag.CacheConfig {
	uses := getString(stepMap, "uses")
	with := getMap(stepMap, "with")

	switch {
	case strings.HasPrefix(uses, "actions/cache"):
		cache := &dag.CacheConfig{Tool: dag.CacheGeneric}
		if with != nil {
			cache.Key = getString(with, "key")
			cache.Paths = splitLines(getString(with, "path"))
			cache.RestoreKeys = splitLines(getString(with, "restore-keys"))
			cache.Tool = cacheToolFromPaths(cache.Paths)
		}
		return cache
	case strings.HasPrefix(uses, "actions/setup-") && with != nil:
		if tool := getString(with, "cache"); tool != "" {
			return &dag.CacheConfig{Tool: cacheToolFromName(tool)}
		}
	}
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func cacheToolFromName(name string) dag.CacheTool {
	switch strings.ToLower(name) {
	case "npm":
		return dag.CacheNPM
	case "yarn", "pnpm":
		return dag.CacheYarn
	case "pip", "pipenv", "poetry":
		return dag.CachePip
	case "gradle":
		return dag.CacheGradle
	case "maven":
		return dag.CacheMaven
	}
	return dag.CacheGeneric
}

func cacheToolFromPaths(paths []string) dag.CacheTool {
	joined := strings.ToLower(strings.Join(paths, " "))
	switch {
	case strings.Contains(joined, "node_modules") || strings.Contains(joined, ".npm"):
		return dag.CacheNPM
	case strings.Contains(joined, "yarn"):
		return dag.CacheYarn
	case strings.Contains(joined, "pip"):
		return dag.CachePip
	case strings.Contains(joined, "cargo") || strings.Contains(joined, "target"):
		return dag.CacheCargo
	case strings.Contains(joined, "gradle"):
		return dag.CacheGradle
	case strings.Contains(joined, ".m2"):
		return dag.CacheMaven
	}
	return dag.CacheGeneric
}
