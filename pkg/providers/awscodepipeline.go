package providers

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

// parseAWSCodePipeline normalizes a CodePipeline definition (JSON or
// YAML) into a DAG. Actions within a stage order by runOrder: lower runs
// earlier, equal run-orders are parallel. Stages chain serially.
func parseAWSCodePipeline(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeAWSDocument(path, data)
	if err != nil {
		return nil, err
	}

	// Definitions exported by the AWS CLI nest under a pipeline key.
	if nested := getMap(doc, "pipeline"); nested != nil {
		doc = nested
	}

	name := getString(doc, "name")
	if name == "" {
		name = "codepipeline"
	}
	p := dag.New(name, dag.ProviderAWSCodePipeline)
	p.SourcePath = path
	p.Triggers = []string{"source-change"}

	stages := getSlice(doc, "stages")
	if len(stages) == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline has no stages"}
	}

	// prevGroup holds the job ids of the previous runOrder group, which
	// every job of the next group depends on.
	var prevGroup []string
	for _, rawStage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stageMap, ok := rawStage.(map[string]any)
		if !ok {
			continue
		}
		stageName := getString(stageMap, "name")

		type awsAction struct {
			id       string
			runOrder int
			raw      map[string]any
		}
		var actions []awsAction
		for _, rawAction := range getSlice(stageMap, "actions") {
			actionMap, ok := rawAction.(map[string]any)
			if !ok {
				continue
			}
			runOrder := getInt(actionMap, "runOrder")
			if runOrder == 0 {
				runOrder = 1
			}
			id := stringutil.Slugify(stageName + "-" + getString(actionMap, "name"))
			actions = append(actions, awsAction{id: id, runOrder: runOrder, raw: actionMap})
		}
		sort.SliceStable(actions, func(i, j int) bool { return actions[i].runOrder < actions[j].runOrder })

		groupStart := 0
		for groupStart < len(actions) {
			order := actions[groupStart].runOrder
			groupEnd := groupStart
			for groupEnd < len(actions) && actions[groupEnd].runOrder == order {
				groupEnd++
			}
			var group []string
			for _, action := range actions[groupStart:groupEnd] {
				job := buildAWSJob(action.id, action.raw)
				job.Needs = prevGroup
				if err := p.AddJob(job); err != nil {
					return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
				}
				for _, prev := range prevGroup {
					if err := p.AddEdge(prev, job.ID); err != nil {
						return nil, edgeError(path, prev, job.ID, err)
					}
				}
				group = append(group, job.ID)
			}
			prevGroup = group
			groupStart = groupEnd
		}
	}

	if p.JobCount() == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline defines no actions"}
	}
	return p, nil
}

// decodeAWSDocument accepts both the JSON and YAML renditions of a
// CodePipeline definition.
func decodeAWSDocument(path string, data []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(stripBOM(data)))
	if strings.HasPrefix(trimmed, "{") {
		var doc map[string]any
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, &ParseError{Kind: ErrYamlSyntax, Path: path, Message: err.Error(), Err: err}
		}
		return doc, nil
	}
	return decodeYAML(path, data)
}

func buildAWSJob(id string, raw map[string]any) *dag.Job {
	job := &dag.Job{ID: id, Name: getString(raw, "name")}
	if job.Name == "" {
		job.Name = id
	}

	category := ""
	provider := ""
	if typeInfo := getMap(raw, "actionTypeId"); typeInfo != nil {
		category = getString(typeInfo, "category")
		provider = getString(typeInfo, "provider")
	}
	// Model the action as one step whose command reflects its category so
	// duration heuristics have a signature to latch onto.
	switch strings.ToLower(category) {
	case "source":
		job.Steps = append(job.Steps, dag.Step{Name: "source", Run: "git checkout"})
	case "build":
		job.Steps = append(job.Steps, dag.Step{Name: "build", Run: "codebuild " + provider + " build"})
	case "test":
		job.Steps = append(job.Steps, dag.Step{Name: "test", Run: "codebuild " + provider + " test"})
	case "deploy":
		job.Steps = append(job.Steps, dag.Step{Name: "deploy", Run: "aws deploy " + provider})
	default:
		job.Steps = append(job.Steps, dag.Step{Name: strings.ToLower(category)})
	}
	annotateDurations(job)
	return job
}
