package providers

import (
	"context"
	"fmt"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// parseBitbucket normalizes bitbucket-pipelines.yml into a DAG. Steps in
// the default pipeline run serially; a parallel block fans out and
// rejoins; a stage groups serial steps.
func parseBitbucket(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}

	pipelines := getMap(doc, "pipelines")
	if pipelines == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no pipelines section found"}
	}

	// Prefer the default pipeline; otherwise the first branch pipeline.
	items := getSlice(pipelines, "default")
	trigger := "push"
	if items == nil {
		if branches := getMap(pipelines, "branches"); branches != nil {
			for _, branch := range sortedKeys(branches) {
				if list, ok := branches[branch].([]any); ok {
					items = list
					trigger = "branch:" + branch
					break
				}
			}
		}
	}
	if items == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no default or branch pipeline found"}
	}

	p := dag.New("bitbucket-pipelines", dag.ProviderBitbucket)
	p.SourcePath = path
	p.Triggers = []string{trigger}

	seq := 0
	var prevIDs []string
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch {
		case entry["step"] != nil:
			ids, err := addBitbucketStep(p, path, getMap(entry, "step"), &seq, prevIDs)
			if err != nil {
				return nil, err
			}
			prevIDs = ids
		case entry["parallel"] != nil:
			var groupIDs []string
			for _, sub := range bitbucketParallelSteps(entry["parallel"]) {
				ids, err := addBitbucketStep(p, path, sub, &seq, prevIDs)
				if err != nil {
					return nil, err
				}
				groupIDs = append(groupIDs, ids...)
			}
			prevIDs = groupIDs
		case entry["stage"] != nil:
			// A stage is a named serial group: step order within the
			// stage produces the edges.
			stage := getMap(entry, "stage")
			for _, sub := range getSlice(stage, "steps") {
				subMap, ok := sub.(map[string]any)
				if !ok {
					continue
				}
				ids, err := addBitbucketStep(p, path, getMap(subMap, "step"), &seq, prevIDs)
				if err != nil {
					return nil, err
				}
				prevIDs = ids
			}
		}
	}

	if p.JobCount() == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline defines no steps"}
	}
	return p, nil
}

// bitbucketParallelSteps flattens both the list form and the
// {steps: [...]} form of a parallel block.
func bitbucketParallelSteps(v any) []map[string]any {
	var out []map[string]any
	items, ok := v.([]any)
	if !ok {
		if m, isMap := v.(map[string]any); isMap {
			items = getSlice(m, "steps")
		}
	}
	for _, item := range items {
		if entry, ok := item.(map[string]any); ok {
			if step := getMap(entry, "step"); step != nil {
				out = append(out, step)
			}
		}
	}
	return out
}

func addBitbucketStep(p *dag.Pipeline, path string, step map[string]any, seq *int, prevIDs []string) ([]string, error) {
	if step == nil {
		return prevIDs, nil
	}
	*seq++
	name := getString(step, "name")
	if name == "" {
		name = fmt.Sprintf("step-%d", *seq)
	}
	job := &dag.Job{
		ID:     fmt.Sprintf("step-%d", *seq),
		Name:   name,
		Needs:  prevIDs,
		RunsOn: getString(step, "runs-on"),
	}
	for _, line := range stringOrList(step["script"]) {
		job.Steps = append(job.Steps, dag.Step{Run: line})
	}
	for _, cacheName := range stringOrList(step["caches"]) {
		job.Caches = append(job.Caches, dag.CacheConfig{Tool: cacheToolFromName(cacheName)})
	}
	if size := getString(step, "size"); size != "" {
		job.RunsOn = "size:" + size
	}
	annotateDurations(job)

	if err := p.AddJob(job); err != nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
	}
	for _, prev := range prevIDs {
		if err := p.AddEdge(prev, job.ID); err != nil {
			return nil, edgeError(path, prev, job.ID, err)
		}
	}
	return []string{job.ID}, nil
}
