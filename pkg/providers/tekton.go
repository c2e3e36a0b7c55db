package providers

import (
	"context"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// parseTekton normalizes a Tekton YAML stream into a DAG. The stream may
// hold multiple documents; Pipeline wins over PipelineRun (which embeds a
// pipelineSpec), and non-CI documents are skipped silently. Tasks wire by
// runAfter, and every tasks[*] entry gains an implicit edge to every
// finally[*] entry.
func parseTekton(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	docs, err := decodeYAMLDocuments(path, data)
	if err != nil {
		return nil, err
	}

	var spec map[string]any
	var name string
	var standaloneTasks []map[string]any
	fromPipeline := false
	for _, doc := range docs {
		kind := getString(doc, "kind")
		meta := getMap(doc, "metadata")
		switch kind {
		case "Pipeline":
			if !fromPipeline {
				spec = getMap(doc, "spec")
				name = getString(meta, "name")
				fromPipeline = true
			}
		case "PipelineRun":
			if spec == nil {
				if runSpec := getMap(doc, "spec"); runSpec != nil {
					spec = getMap(runSpec, "pipelineSpec")
					name = getString(meta, "name")
				}
			}
		case "Task":
			standaloneTasks = append(standaloneTasks, doc)
		}
	}

	if spec == nil {
		// A stream of bare Tasks still describes units of work: chain is
		// unknown, so they land as independent jobs.
		if len(standaloneTasks) == 0 {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no Pipeline or PipelineRun document found"}
		}
		p := dag.New("tekton-tasks", dag.ProviderTekton)
		p.SourcePath = path
		p.Triggers = []string{"pipeline-run"}
		for _, doc := range standaloneTasks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			meta := getMap(doc, "metadata")
			job := buildTektonTask(getString(meta, "name"), getMap(doc, "spec"))
			if err := p.AddJob(job); err != nil {
				return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
			}
		}
		return p, nil
	}

	if name == "" {
		name = "tekton-pipeline"
	}
	p := dag.New(name, dag.ProviderTekton)
	p.SourcePath = path
	p.Triggers = []string{"pipeline-run"}

	// Task specs from standalone Task documents, addressable by taskRef.
	taskSpecs := make(map[string]map[string]any)
	for _, doc := range standaloneTasks {
		meta := getMap(doc, "metadata")
		if taskName := getString(meta, "name"); taskName != "" {
			taskSpecs[taskName] = getMap(doc, "spec")
		}
	}

	addTask := func(raw map[string]any) (*dag.Job, error) {
		taskName := getString(raw, "name")
		taskSpec := getMap(raw, "taskSpec")
		if taskSpec == nil {
			if ref := getMap(raw, "taskRef"); ref != nil {
				taskSpec = taskSpecs[getString(ref, "name")]
			}
		}
		job := buildTektonTask(taskName, taskSpec)
		job.Condition = tektonWhen(raw)
		if err := p.AddJob(job); err != nil {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
		}
		return job, nil
	}

	tasks := getSlice(spec, "tasks")
	var taskIDs []string
	type pendingEdge struct{ from, to string }
	var edges []pendingEdge

	for _, rawTask := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		taskMap, ok := rawTask.(map[string]any)
		if !ok {
			continue
		}
		job, err := addTask(taskMap)
		if err != nil {
			return nil, err
		}
		taskIDs = append(taskIDs, job.ID)
		for _, after := range stringOrList(taskMap["runAfter"]) {
			edges = append(edges, pendingEdge{from: after, to: job.ID})
		}
	}

	for _, rawFinally := range getSlice(spec, "finally") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		finallyMap, ok := rawFinally.(map[string]any)
		if !ok {
			continue
		}
		job, err := addTask(finallyMap)
		if err != nil {
			return nil, err
		}
		// Implicit edge from every pipeline task to every finally task.
		for _, taskID := range taskIDs {
			edges = append(edges, pendingEdge{from: taskID, to: job.ID})
		}
	}

	if p.JobCount() == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline defines no tasks"}
	}

	for _, e := range edges {
		if err := p.AddEdge(e.from, e.to); err != nil {
			return nil, edgeError(path, e.from, e.to, err)
		}
	}
	return p, nil
}

func buildTektonTask(name string, taskSpec map[string]any) *dag.Job {
	job := &dag.Job{ID: name, Name: name}
	if taskSpec != nil {
		for _, rawStep := range getSlice(taskSpec, "steps") {
			stepMap, ok := rawStep.(map[string]any)
			if !ok {
				continue
			}
			step := dag.Step{
				Name:             getString(stepMap, "name"),
				WorkingDirectory: getString(stepMap, "workingDir"),
			}
			if script := getString(stepMap, "script"); script != "" {
				step.Run = script
			} else if cmd := stringOrList(stepMap["command"]); len(cmd) > 0 {
				step.Run = strings.Join(append(cmd, stringOrList(stepMap["args"])...), " ")
			}
			job.Steps = append(job.Steps, step)
		}
	}
	annotateDurations(job)
	return job
}

// tektonWhen flattens when expressions into an opaque condition string.
func tektonWhen(raw map[string]any) string {
	var conds []string
	for _, rawWhen := range getSlice(raw, "when") {
		if m, ok := rawWhen.(map[string]any); ok {
			conds = append(conds, getString(m, "input")+" "+getString(m, "operator")+" "+strings.Join(stringOrList(m["values"]), ","))
		}
	}
	return strings.Join(conds, " && ")
}
