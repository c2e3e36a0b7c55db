package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

// parseBuildkite normalizes .buildkite/pipeline.yml into a DAG. Command
// steps become nodes with explicit depends_on edges; wait and block
// entries are barriers introducing edges from all prior non-barrier
// steps to all later ones. Block steps are modeled as hard edges rather
// than pauses.
func parseBuildkite(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}

	steps := getSlice(doc, "steps")
	if steps == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline has no steps"}
	}

	p := dag.New("buildkite", dag.ProviderBuildkite)
	p.SourcePath = path
	p.Triggers = []string{"push"}

	type bkStep struct {
		id        string
		dependsOn []string
	}
	var parsed []bkStep
	// beforeBarrier tracks jobs added before the most recent barrier;
	// each new job gains edges from all of them.
	var beforeBarrier []string
	var sinceBarrier []string
	seq := 0

	for _, rawStep := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch t := rawStep.(type) {
		case string:
			// "wait" as a bare string is a barrier.
			if t == "wait" || t == "block" {
				beforeBarrier = append(beforeBarrier, sinceBarrier...)
				sinceBarrier = nil
			}
			continue
		case map[string]any:
			if _, isWait := t["wait"]; isWait {
				beforeBarrier = append(beforeBarrier, sinceBarrier...)
				sinceBarrier = nil
				continue
			}
			if _, isBlock := t["block"]; isBlock {
				beforeBarrier = append(beforeBarrier, sinceBarrier...)
				sinceBarrier = nil
				continue
			}

			seq++
			job := buildBuildkiteJob(t, seq)
			if err := p.AddJob(job); err != nil {
				return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
			}
			for _, prev := range beforeBarrier {
				if err := p.AddEdge(prev, job.ID); err != nil {
					return nil, edgeError(path, prev, job.ID, err)
				}
			}
			parsed = append(parsed, bkStep{id: job.ID, dependsOn: buildkiteDependsOn(t)})
			sinceBarrier = append(sinceBarrier, job.ID)
		}
	}

	if p.JobCount() == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline defines no command steps"}
	}

	// Explicit depends_on references step keys and comes after barrier
	// wiring so both coexist.
	for _, step := range parsed {
		for _, dep := range step.dependsOn {
			if err := p.AddEdge(dep, step.id); err != nil {
				return nil, edgeError(path, dep, step.id, err)
			}
		}
	}
	return p, nil
}

// buildkiteDependsOn reads depends_on, which may be a string, a list of
// strings, or a list of {step: ...} mappings.
func buildkiteDependsOn(raw map[string]any) []string {
	switch t := raw["depends_on"].(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			switch dep := item.(type) {
			case string:
				out = append(out, dep)
			case map[string]any:
				if step := getString(dep, "step"); step != "" {
					out = append(out, step)
				}
			}
		}
		return out
	}
	return nil
}

func buildBuildkiteJob(raw map[string]any, seq int) *dag.Job {
	id := getString(raw, "key")
	if id == "" {
		id = getString(raw, "id")
	}
	label := getString(raw, "label")
	if label == "" {
		label = getString(raw, "name")
	}
	if id == "" {
		if label != "" {
			id = stringutil.Slugify(label)
		} else {
			id = fmt.Sprintf("step-%d", seq)
		}
	}
	if label == "" {
		label = id
	}

	job := &dag.Job{
		ID:        id,
		Name:      label,
		Condition: getString(raw, "if"),
		Env:       stringMap(raw["env"]),
		Needs:     buildkiteDependsOn(raw),
	}
	if agents := getMap(raw, "agents"); agents != nil {
		job.RunsOn = getString(agents, "queue")
	}
	if timeout := getFloat(raw, "timeout_in_minutes"); timeout > 0 {
		job.TimeoutSeconds = timeout * 60
	}

	switch cmd := raw["command"].(type) {
	case string:
		job.Steps = append(job.Steps, dag.Step{Run: cmd})
	case []any:
		for _, line := range stringOrList(cmd) {
			job.Steps = append(job.Steps, dag.Step{Run: line})
		}
	}
	if cmds := stringOrList(raw["commands"]); len(cmds) > 0 {
		for _, line := range cmds {
			job.Steps = append(job.Steps, dag.Step{Run: line})
		}
	}

	// parallelism shards the step across identical agents.
	if par := getInt(raw, "parallelism"); par > 1 {
		job.Matrix = &dag.Matrix{
			Axes:  map[string][]string{"parallelism": shardValues(par)},
			Order: []string{"parallelism"},
		}
	}
	if matrix := getSlice(raw, "matrix"); len(matrix) > 0 {
		job.Matrix = &dag.Matrix{
			Axes:  map[string][]string{"matrix": axisValues(raw["matrix"])},
			Order: []string{"matrix"},
		}
	}

	// Buildkite cache is plugin-based; recognize the common cache plugins.
	for _, rawPlugin := range getSlice(raw, "plugins") {
		pluginMap, ok := rawPlugin.(map[string]any)
		if !ok {
			continue
		}
		for pluginName := range pluginMap {
			if strings.Contains(pluginName, "cache") {
				job.Caches = append(job.Caches, dag.CacheConfig{Tool: dag.CacheGeneric})
			}
		}
	}

	annotateDurations(job)
	return job
}
