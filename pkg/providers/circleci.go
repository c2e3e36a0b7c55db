package providers

import (
	"context"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// parseCircleCI normalizes a .circleci/config.yml into a DAG. Workflow
// entries become nodes; `requires` declarations become edges. Job bodies
// in the top-level jobs section supply steps and parallelism.
func parseCircleCI(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}

	jobsSection := getMap(doc, "jobs")
	workflows := getMap(doc, "workflows")

	// Pick the first real workflow mapping (skipping the version key).
	var workflow map[string]any
	var workflowName string
	if workflows != nil {
		for _, key := range sortedKeys(workflows) {
			if key == "version" {
				continue
			}
			if wf, ok := workflows[key].(map[string]any); ok {
				workflow = wf
				workflowName = key
				break
			}
		}
	}
	if workflow == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no workflow section found"}
	}

	p := dag.New(workflowName, dag.ProviderCircleCI)
	p.SourcePath = path
	p.Triggers = []string{"push"}

	type wfEntry struct {
		id       string
		requires []string
	}
	var entries []wfEntry

	for _, item := range getSlice(workflow, "jobs") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var id string
		var entryCfg map[string]any
		switch t := item.(type) {
		case string:
			id = t
		case map[string]any:
			for _, key := range sortedKeys(t) {
				id = key
				entryCfg, _ = t[key].(map[string]any)
				break
			}
		}
		if id == "" {
			continue
		}

		job := buildCircleCIJob(id, getMap(jobsSection, id), entryCfg)
		if err := p.AddJob(job); err != nil {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{id}}
		}
		entry := wfEntry{id: id}
		if entryCfg != nil {
			entry.requires = stringOrList(entryCfg["requires"])
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "workflow has no jobs"}
	}

	for _, entry := range entries {
		for _, req := range entry.requires {
			if err := p.AddEdge(req, entry.id); err != nil {
				return nil, edgeError(path, req, entry.id, err)
			}
		}
	}
	return p, nil
}

func buildCircleCIJob(id string, body, entryCfg map[string]any) *dag.Job {
	job := &dag.Job{ID: id, Name: id}
	if entryCfg != nil {
		job.Needs = stringOrList(entryCfg["requires"])
		job.Condition = getString(entryCfg, "filters")
	}
	if body != nil {
		job.Env = stringMap(body["environment"])
		job.RunsOn = circleCIExecutor(body)

		for _, rawStep := range getSlice(body, "steps") {
			switch t := rawStep.(type) {
			case string:
				// Built-in steps like checkout appear as bare strings.
				if t == "checkout" {
					job.Steps = append(job.Steps, dag.Step{Name: "checkout", Run: "git checkout"})
				} else {
					job.Steps = append(job.Steps, dag.Step{Name: t})
				}
			case map[string]any:
				for _, key := range sortedKeys(t) {
					switch key {
					case "run":
						job.Steps = append(job.Steps, circleCIRunStep(t[key]))
					case "restore_cache", "save_cache":
						if cfg, ok := t[key].(map[string]any); ok && key == "save_cache" {
							job.Caches = append(job.Caches, dag.CacheConfig{
								Tool:  cacheToolFromPaths(stringOrList(cfg["paths"])),
								Key:   getString(cfg, "key"),
								Paths: stringOrList(cfg["paths"]),
							})
						}
					case "setup_remote_docker":
						job.Steps = append(job.Steps, dag.Step{Name: "setup_remote_docker"})
					default:
						job.Steps = append(job.Steps, dag.Step{Name: key})
					}
				}
			}
		}

		if par := getInt(body, "parallelism"); par > 1 {
			job.Matrix = &dag.Matrix{
				Axes:  map[string][]string{"parallelism": shardValues(par)},
				Order: []string{"parallelism"},
			}
		}
	}
	annotateDurations(job)
	return job
}

func circleCIRunStep(v any) dag.Step {
	switch t := v.(type) {
	case string:
		return dag.Step{Run: t}
	case map[string]any:
		return dag.Step{
			Name:             getString(t, "name"),
			Run:              getString(t, "command"),
			WorkingDirectory: getString(t, "working_directory"),
			Env:              stringMap(t["environment"]),
		}
	}
	return dag.Step{}
}

func circleCIExecutor(body map[string]any) string {
	if docker := getSlice(body, "docker"); len(docker) > 0 {
		if img, ok := docker[0].(map[string]any); ok {
			return "docker:" + getString(img, "image")
		}
	}
	if machine := getString(body, "machine"); machine != "" {
		return "machine"
	}
	if class := getString(body, "resource_class"); class != "" {
		return class
	}
	return strings.TrimSpace(getString(body, "executor"))
}
