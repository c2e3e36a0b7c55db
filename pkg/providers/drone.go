package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// parseDrone normalizes a Drone or Woodpecker YAML stream into a DAG.
// Each `kind: pipeline` document is one job whose steps are the
// document's steps; pipeline-level depends_on wires documents together.
// A single-document file without kind (the Woodpecker short form) is one
// job. Non-pipeline documents (kind: secret, signature, ...) are skipped.
func parseDrone(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	docs, err := decodeYAMLDocuments(path, data)
	if err != nil {
		return nil, err
	}

	var pipelineDocs []map[string]any
	for _, doc := range docs {
		kind := getString(doc, "kind")
		if kind == "pipeline" || (kind == "" && (doc["steps"] != nil || doc["pipeline"] != nil)) {
			pipelineDocs = append(pipelineDocs, doc)
		}
	}
	if len(pipelineDocs) == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no pipeline documents found"}
	}

	name := getString(pipelineDocs[0], "name")
	if name == "" {
		name = "drone"
	}
	p := dag.New(name, dag.ProviderDrone)
	p.SourcePath = path
	p.Triggers = droneTriggers(pipelineDocs[0])

	seq := 0
	for _, doc := range pipelineDocs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq++
		job := buildDroneJob(doc, seq)
		if err := p.AddJob(job); err != nil {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
		}
	}
	for _, doc := range pipelineDocs {
		id := droneDocID(doc)
		for _, dep := range stringOrList(doc["depends_on"]) {
			if err := p.AddEdge(dep, id); err != nil {
				return nil, edgeError(path, dep, id, err)
			}
		}
	}
	return p, nil
}

func droneDocID(doc map[string]any) string {
	if name := getString(doc, "name"); name != "" {
		return name
	}
	return "pipeline"
}

func buildDroneJob(doc map[string]any, seq int) *dag.Job {
	id := getString(doc, "name")
	if id == "" {
		id = "pipeline"
		if seq > 1 {
			id = fmt.Sprintf("pipeline-%d", seq)
		}
	}
	job := &dag.Job{ID: id, Name: id, Needs: stringOrList(doc["depends_on"])}

	if platform := getMap(doc, "platform"); platform != nil {
		job.RunsOn = getString(platform, "os") + "/" + getString(platform, "arch")
	}

	// Drone names its steps section "steps"; legacy Woodpecker used "pipeline".
	steps := getSlice(doc, "steps")
	if steps == nil {
		if m := getMap(doc, "pipeline"); m != nil {
			for _, stepName := range sortedKeys(m) {
				if stepMap, ok := m[stepName].(map[string]any); ok {
					job.Steps = append(job.Steps, buildDroneStep(stepName, stepMap))
				}
			}
		}
	}
	for _, rawStep := range steps {
		stepMap, ok := rawStep.(map[string]any)
		if !ok {
			continue
		}
		job.Steps = append(job.Steps, buildDroneStep(getString(stepMap, "name"), stepMap))
	}

	annotateDurations(job)
	return job
}

func buildDroneStep(name string, raw map[string]any) dag.Step {
	step := dag.Step{
		Name: name,
		Run:  strings.Join(stringOrList(raw["commands"]), "\n"),
		Env:  stringMap(raw["environment"]),
	}
	if step.Run == "" {
		// Plugin steps carry an image instead of commands.
		step.Uses = getString(raw, "image")
		step.Pin = classifyPin(step.Uses)
	}
	return step
}

func droneTriggers(doc map[string]any) []string {
	trigger := getMap(doc, "trigger")
	if trigger == nil {
		return []string{"push"}
	}
	if events := stringOrList(trigger["event"]); len(events) > 0 {
		return events
	}
	return []string{"push"}
}
