package providers

import (
	"context"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// parseArgo normalizes an Argo Workflows YAML stream into a DAG. The
// entrypoint template supplies the structure: a dag template wires tasks
// by `dependencies`; a steps template orders its [][] phases serially
// with parallelism inside each phase. Non-CI documents are skipped.
func parseArgo(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	docs, err := decodeYAMLDocuments(path, data)
	if err != nil {
		return nil, err
	}

	var spec map[string]any
	var name string
	for _, doc := range docs {
		switch getString(doc, "kind") {
		case "Workflow", "WorkflowTemplate":
			if spec == nil {
				spec = getMap(doc, "spec")
				name = getString(getMap(doc, "metadata"), "name")
				if name == "" {
					name = getString(getMap(doc, "metadata"), "generateName")
				}
			}
		}
	}
	if spec == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no Workflow or WorkflowTemplate document found"}
	}
	if name == "" {
		name = "argo-workflow"
	}

	templates := make(map[string]map[string]any)
	var templateOrder []string
	for _, rawTemplate := range getSlice(spec, "templates") {
		if t, ok := rawTemplate.(map[string]any); ok {
			tname := getString(t, "name")
			templates[tname] = t
			templateOrder = append(templateOrder, tname)
		}
	}

	entrypoint := getString(spec, "entrypoint")
	entry := templates[entrypoint]
	if entry == nil {
		for _, tname := range templateOrder {
			t := templates[tname]
			if getMap(t, "dag") != nil || getSlice(t, "steps") != nil {
				entry = t
				break
			}
		}
	}
	if entry == nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "workflow has no dag or steps template"}
	}

	p := dag.New(name, dag.ProviderArgo)
	p.SourcePath = path
	p.Triggers = []string{"workflow-submit"}

	addNode := func(nodeName, templateName string, condition string) error {
		job := buildArgoJob(nodeName, templates[templateName])
		job.Condition = condition
		if err := p.AddJob(job); err != nil {
			return &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{nodeName}}
		}
		return nil
	}

	if dagTemplate := getMap(entry, "dag"); dagTemplate != nil {
		tasks := getSlice(dagTemplate, "tasks")
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
			taskName := getString(taskMap, "name")
			if err := addNode(taskName, getString(taskMap, "template"), getString(taskMap, "when")); err != nil {
				return nil, err
			}
			for _, dep := range argoDependencies(taskMap) {
				edges = append(edges, pendingEdge{from: dep, to: taskName})
			}
		}
		for _, e := range edges {
			if err := p.AddEdge(e.from, e.to); err != nil {
				return nil, edgeError(path, e.from, e.to, err)
			}
		}
	} else {
		// steps[][]: the outer list is serial phases, the inner lists are
		// parallel within a phase. Every job in phase i+1 depends on
		// every job in phase i.
		var prevPhase []string
		for _, rawPhase := range getSlice(entry, "steps") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			phase, ok := rawPhase.([]any)
			if !ok {
				// A single mapping is a one-entry phase.
				if m, isMap := rawPhase.(map[string]any); isMap {
					phase = []any{m}
				} else {
					continue
				}
			}
			var currentPhase []string
			for _, rawStep := range phase {
				stepMap, ok := rawStep.(map[string]any)
				if !ok {
					continue
				}
				stepName := getString(stepMap, "name")
				if err := addNode(stepName, getString(stepMap, "template"), getString(stepMap, "when")); err != nil {
					return nil, err
				}
				for _, prev := range prevPhase {
					if err := p.AddEdge(prev, stepName); err != nil {
						return nil, edgeError(path, prev, stepName, err)
					}
				}
				currentPhase = append(currentPhase, stepName)
			}
			if len(currentPhase) > 0 {
				prevPhase = currentPhase
			}
		}
	}

	if p.JobCount() == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "workflow defines no tasks"}
	}
	return p, nil
}

// argoDependencies merges the `dependencies` list and `depends` boolean
// expression, extracting task names from the latter best-effort.
func argoDependencies(taskMap map[string]any) []string {
	deps := stringOrList(taskMap["dependencies"])
	if depends := getString(taskMap, "depends"); depends != "" {
		for _, field := range strings.FieldsFunc(depends, func(r rune) bool {
			return r == '&' || r == '|' || r == '(' || r == ')' || r == '!' || r == ' '
		}) {
			// Strip result qualifiers like task.Succeeded.
			if i := strings.IndexByte(field, '.'); i > 0 {
				field = field[:i]
			}
			if field != "" {
				deps = append(deps, field)
			}
		}
	}
	return deps
}

func buildArgoJob(name string, template map[string]any) *dag.Job {
	job := &dag.Job{ID: name, Name: name}
	if template != nil {
		if container := getMap(template, "container"); container != nil {
			cmd := append(stringOrList(container["command"]), stringOrList(container["args"])...)
			job.Steps = append(job.Steps, dag.Step{Run: strings.Join(cmd, " ")})
		}
		if script := getMap(template, "script"); script != nil {
			job.Steps = append(job.Steps, dag.Step{Run: getString(script, "source")})
		}
		if nodeSelector := getMap(template, "nodeSelector"); nodeSelector != nil {
			for _, key := range sortedKeys(nodeSelector) {
				job.RunsOn = getString(nodeSelector, key)
				break
			}
		}
	}
	annotateDurations(job)
	return job
}
