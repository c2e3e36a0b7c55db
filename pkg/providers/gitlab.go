package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/sliceutil"
)

// gitlabReservedKeys are top-level keys that never define jobs.
var gitlabReservedKeys = map[string]bool{
	"stages": true, "variables": true, "default": true, "include": true,
	"workflow": true, "image": true, "services": true, "cache": true,
	"before_script": true, "after_script": true, "types": true, "pages": true,
}

// parseGitLab normalizes a .gitlab-ci.yml into a DAG. Dependencies come
// from explicit `needs` when present, otherwise from stage ordering:
// every job depends on all jobs of the previous stage.
func parseGitLab(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}

	p := dag.New("gitlab-ci", dag.ProviderGitLabCI)
	p.SourcePath = path

	if wf := getMap(doc, "workflow"); wf != nil {
		// workflow:rules gates pipeline creation; record as a trigger hint.
		if rules := getSlice(wf, "rules"); len(rules) > 0 {
			p.Triggers = append(p.Triggers, "rules")
		}
	}
	if len(p.Triggers) == 0 {
		p.Triggers = []string{"push"}
	}

	stages := stringOrList(doc["stages"])
	if len(stages) == 0 {
		stages = []string{"build", "test", "deploy"}
	}

	type glJob struct {
		id    string
		raw   map[string]any
		stage string
		needs []string
	}

	var jobs []glJob
	for _, id := range sortedKeys(doc) {
		if gitlabReservedKeys[id] || strings.HasPrefix(id, ".") {
			continue
		}
		raw, ok := doc[id].(map[string]any)
		if !ok {
			continue
		}
		// A job must have a script (or trigger/extends); anything else is
		// an unrecognized top-level key and is tolerated.
		if raw["script"] == nil && raw["trigger"] == nil && raw["extends"] == nil {
			continue
		}
		stage := getString(raw, "stage")
		if stage == "" {
			stage = "test"
		}
		jobs = append(jobs, glJob{id: id, raw: raw, stage: stage, needs: gitlabNeeds(raw)})
	}

	if len(jobs) == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no jobs found in GitLab config"}
	}

	byStage := make(map[string][]string)
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		job := buildGitLabJob(j.id, j.raw)
		if err := p.AddJob(job); err != nil {
			return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{j.id}}
		}
		byStage[j.stage] = append(byStage[j.stage], j.id)
	}

	for _, j := range jobs {
		if len(j.needs) > 0 {
			for _, need := range j.needs {
				if err := p.AddEdge(need, j.id); err != nil {
					return nil, edgeError(path, need, j.id, err)
				}
			}
			continue
		}
		// Stage ordering: depend on every job of the nearest earlier
		// stage that has jobs.
		stageIdx := indexOf(stages, j.stage)
		for prev := stageIdx - 1; prev >= 0; prev-- {
			if prevJobs := byStage[stages[prev]]; len(prevJobs) > 0 {
				for _, prevID := range prevJobs {
					if err := p.AddEdge(prevID, j.id); err != nil {
						return nil, edgeError(path, prevID, j.id, err)
					}
				}
				break
			}
		}
	}
	return p, nil
}

// gitlabNeeds reads `needs`, which may be strings or {job: ...} mappings.
func gitlabNeeds(raw map[string]any) []string {
	items, ok := raw["needs"].([]any)
	if !ok {
		return stringOrList(raw["needs"])
	}
	var out []string
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if job := getString(t, "job"); job != "" {
				out = append(out, job)
			}
		}
	}
	return sliceutil.Dedupe(out)
}

func buildGitLabJob(id string, raw map[string]any) *dag.Job {
	job := &dag.Job{
		ID:        id,
		Name:      id,
		Needs:     gitlabNeeds(raw),
		Condition: gitlabRulesCondition(raw),
		Env:       stringMap(raw["variables"]),
		RunsOn:    strings.Join(stringOrList(raw["tags"]), ","),
	}
	if timeout := getString(raw, "timeout"); timeout != "" {
		job.TimeoutSeconds = parseGitLabTimeout(timeout)
	}

	for _, line := range stringOrList(raw["before_script"]) {
		job.Steps = append(job.Steps, dag.Step{Run: line})
	}
	for _, line := range stringOrList(raw["script"]) {
		job.Steps = append(job.Steps, dag.Step{Run: line})
	}

	// `parallel: N` is a keyed shard matrix; `parallel:matrix` is a full
	// axis matrix.
	switch par := raw["parallel"].(type) {
	case int, int64, uint64, float64:
		n := getInt(raw, "parallel")
		if n > 1 {
			job.Matrix = &dag.Matrix{
				Axes:  map[string][]string{"parallel": shardValues(n)},
				Order: []string{"parallel"},
			}
		}
	case map[string]any:
		if cells := getSlice(par, "matrix"); len(cells) > 0 {
			m := &dag.Matrix{Axes: make(map[string][]string)}
			for _, cell := range cells {
				cellMap, ok := cell.(map[string]any)
				if !ok {
					continue
				}
				for _, axis := range sortedKeys(cellMap) {
					values := stringOrList(cellMap[axis])
					if len(values) == 0 {
						values = []string{getString(cellMap, axis)}
					}
					if _, seen := m.Axes[axis]; !seen {
						m.Order = append(m.Order, axis)
					}
					m.Axes[axis] = append(m.Axes[axis], values...)
				}
			}
			if len(m.Axes) > 0 {
				job.Matrix = m
			}
		}
	}

	if cache := getMap(raw, "cache"); cache != nil {
		job.Caches = append(job.Caches, dag.CacheConfig{
			Tool:  cacheToolFromPaths(stringOrList(cache["paths"])),
			Key:   gitlabCacheKey(cache),
			Paths: stringOrList(cache["paths"]),
		})
	}

	annotateDurations(job)
	return job
}

func gitlabCacheKey(cache map[string]any) string {
	switch key := cache["key"].(type) {
	case string:
		return key
	case map[string]any:
		if files := stringOrList(key["files"]); len(files) > 0 {
			return "files:" + strings.Join(files, ",")
		}
	}
	return ""
}

func gitlabRulesCondition(raw map[string]any) string {
	rules := getSlice(raw, "rules")
	if len(rules) == 0 {
		return getString(raw, "only")
	}
	var conds []string
	for _, rule := range rules {
		if m, ok := rule.(map[string]any); ok {
			if cond := getString(m, "if"); cond != "" {
				conds = append(conds, cond)
			}
		}
	}
	return strings.Join(conds, " || ")
}

// parseGitLabTimeout converts "1h 30m" style timeouts to seconds.
func parseGitLabTimeout(s string) float64 {
	var total float64
	for _, field := range strings.Fields(s) {
		var value float64
		var unit string
		if _, err := fmt.Sscanf(field, "%f%s", &value, &unit); err != nil {
			continue
		}
		switch strings.ToLower(unit) {
		case "h", "hour", "hours":
			total += value * 3600
		case "m", "min", "minute", "minutes":
			total += value * 60
		case "s", "sec", "second", "seconds":
			total += value
		}
	}
	return total
}

func shardValues(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", i+1)
	}
	return out
}

func indexOf(list []string, item string) int {
	for i, s := range list {
		if s == item {
			return i
		}
	}
	return len(list)
}
