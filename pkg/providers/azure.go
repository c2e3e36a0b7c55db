package providers

import (
	"context"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

// parseAzure normalizes azure-pipelines.yml into a DAG. Jobs (possibly
// nested under stages) become nodes; `dependsOn` declarations become
// edges. Stages themselves also depend on each other, expanding to edges
// between their jobs.
func parseAzure(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}

	name := getString(doc, "name")
	if name == "" {
		name = "azure-pipelines"
	}
	p := dag.New(name, dag.ProviderAzurePipelines)
	p.SourcePath = path
	parseAzureTriggers(p, doc)

	type azJob = struct {
		id        string
		dependsOn []string
	}
	var all []azJob
	// stageJobs maps stage name to its job ids for stage-level dependsOn.
	stageJobs := make(map[string][]string)
	var stageOrder []struct {
		name      string
		dependsOn []string
		implicit  string // previous stage when dependsOn is absent
	}

	addJob := func(raw map[string]any, stage string) error {
		job, deps := buildAzureJob(raw, stage)
		if err := p.AddJob(job); err != nil {
			return &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
		}
		all = append(all, azJob{id: job.ID, dependsOn: deps})
		if stage != "" {
			stageJobs[stage] = append(stageJobs[stage], job.ID)
		}
		return nil
	}

	switch {
	case doc["stages"] != nil:
		prevStage := ""
		for _, rawStage := range getSlice(doc, "stages") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			stageMap, ok := rawStage.(map[string]any)
			if !ok {
				continue
			}
			stageName := getString(stageMap, "stage")
			stageOrder = append(stageOrder, struct {
				name      string
				dependsOn []string
				implicit  string
			}{stageName, stringOrList(stageMap["dependsOn"]), prevStage})
			for _, rawJob := range getSlice(stageMap, "jobs") {
				if jobMap, ok := rawJob.(map[string]any); ok {
					if err := addJob(jobMap, stageName); err != nil {
						return nil, err
					}
				}
			}
			prevStage = stageName
		}
	case doc["jobs"] != nil:
		for _, rawJob := range getSlice(doc, "jobs") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if jobMap, ok := rawJob.(map[string]any); ok {
				if err := addJob(jobMap, ""); err != nil {
					return nil, err
				}
			}
		}
	case doc["steps"] != nil:
		// Single implicit job pipeline.
		job := &dag.Job{ID: "job", Name: name}
		for _, rawStep := range getSlice(doc, "steps") {
			if stepMap, ok := rawStep.(map[string]any); ok {
				job.Steps = append(job.Steps, buildAzureStep(stepMap))
			}
		}
		if pool := getMap(doc, "pool"); pool != nil {
			job.RunsOn = getString(pool, "vmImage")
		}
		annotateDurations(job)
		if err := p.AddJob(job); err != nil {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error()}
		}
		return p, nil
	default:
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline has no stages, jobs, or steps"}
	}

	if len(all) == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline defines no jobs"}
	}

	// Job-level dependsOn wins; stage ordering covers the rest.
	for _, j := range all {
		for _, dep := range j.dependsOn {
			depID := stringutil.Slugify(dep)
			if err := p.AddEdge(depID, j.id); err != nil {
				return nil, edgeError(path, depID, j.id, err)
			}
		}
	}
	for _, stage := range stageOrder {
		upstreams := stage.dependsOn
		if len(upstreams) == 0 && stage.implicit != "" {
			upstreams = []string{stage.implicit}
		}
		for _, upstream := range upstreams {
			for _, from := range stageJobs[upstream] {
				for _, to := range stageJobs[stage.name] {
					if hasAzureJobDeps(all, to) {
						continue
					}
					if err := p.AddEdge(from, to); err != nil {
						return nil, edgeError(path, from, to, err)
					}
				}
			}
		}
	}
	return p, nil
}

func hasAzureJobDeps(all []struct {
	id        string
	dependsOn []string
}, id string) bool {
	for _, j := range all {
		if j.id == id {
			return len(j.dependsOn) > 0
		}
	}
	return false
}

func parseAzureTriggers(p *dag.Pipeline, doc map[string]any) {
	switch trigger := doc["trigger"].(type) {
	case string:
		p.Triggers = []string{trigger}
	case []any:
		for _, branch := range stringOrList(trigger) {
			p.Triggers = append(p.Triggers, "branch:"+branch)
		}
	case map[string]any:
		p.Triggers = []string{"push"}
		if paths := getMap(trigger, "paths"); paths != nil {
			if len(stringOrList(paths["include"]))+len(stringOrList(paths["exclude"])) > 0 {
				p.HasPathFilters = true
			}
		}
	default:
		p.Triggers = []string{"push"}
	}
	if doc["pr"] != nil {
		p.Triggers = append(p.Triggers, "pull_request")
	}
}

func buildAzureJob(raw map[string]any, stage string) (*dag.Job, []string) {
	id := getString(raw, "job")
	if id == "" {
		id = getString(raw, "deployment")
	}
	display := getString(raw, "displayName")
	if display == "" {
		display = id
	}
	job := &dag.Job{
		ID:        stringutil.Slugify(id),
		Name:      display,
		Condition: getString(raw, "condition"),
		Env:       stringMap(raw["variables"]),
	}
	if pool := getMap(raw, "pool"); pool != nil {
		job.RunsOn = getString(pool, "vmImage")
	}
	if timeout := getFloat(raw, "timeoutInMinutes"); timeout > 0 {
		job.TimeoutSeconds = timeout * 60
	}
	if strategy := getMap(raw, "strategy"); strategy != nil {
		if rawMatrix := getMap(strategy, "matrix"); rawMatrix != nil {
			// Azure matrices enumerate cells directly; model them as one
			// axis whose values are the cell names.
			cells := sortedKeys(rawMatrix)
			if len(cells) > 0 {
				job.Matrix = &dag.Matrix{
					Axes:        map[string][]string{"cell": cells},
					Order:       []string{"cell"},
					MaxParallel: getInt(strategy, "maxParallel"),
				}
			}
		}
	}

	for _, rawStep := range getSlice(raw, "steps") {
		if stepMap, ok := rawStep.(map[string]any); ok {
			job.Steps = append(job.Steps, buildAzureStep(stepMap))
		}
	}
	annotateDurations(job)

	deps := stringOrList(raw["dependsOn"])
	job.Needs = make([]string, 0, len(deps))
	for _, dep := range deps {
		job.Needs = append(job.Needs, stringutil.Slugify(dep))
	}
	return job, deps
}

func buildAzureStep(raw map[string]any) dag.Step {
	step := dag.Step{
		Name:             getString(raw, "displayName"),
		WorkingDirectory: getString(raw, "workingDirectory"),
		Env:              stringMap(raw["env"]),
	}
	switch {
	case raw["script"] != nil:
		step.Run = getString(raw, "script")
	case raw["bash"] != nil:
		step.Run = getString(raw, "bash")
	case raw["pwsh"] != nil:
		step.Run = getString(raw, "pwsh")
	case raw["powershell"] != nil:
		step.Run = getString(raw, "powershell")
	case raw["checkout"] != nil:
		step.Name = "checkout"
		step.Run = "git checkout"
	case raw["task"] != nil:
		step.Uses = getString(raw, "task")
		step.Pin = dag.PinTag
	case raw["template"] != nil:
		step.Uses = getString(raw, "template")
		step.Pin = dag.PinNone
	}
	if step.Name == "" {
		step.Name = stringutil.FirstLine(step.Run)
	}
	return step
}
