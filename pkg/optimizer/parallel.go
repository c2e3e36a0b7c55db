package optimizer

import (
	"fmt"

	"github.com/goccy/go-yaml/ast"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
)

// applyParallel removes the false-dependency edge from the downstream
// job's needs declaration. The finding's affected jobs are ordered
// [upstream, downstream]. An edge protecting a declared artifact handoff
// never reaches this point; the detector excludes it.
func applyParallel(doc *ast.MappingNode, provider dag.Provider, f analyzer.Finding) (bool, error) {
	if len(f.AffectedJobs) < 2 {
		return false, fmt.Errorf("false-dependency finding lacks edge endpoints")
	}
	from, to := f.AffectedJobs[0], f.AffectedJobs[1]

	var job *ast.MappingNode
	var needsKey string
	switch provider {
	case dag.ProviderGitHubActions:
		job = githubJob(doc, to)
		needsKey = "needs"
	case dag.ProviderGitLabCI:
		job = childMapping(doc, to)
		needsKey = "needs"
	default:
		return false, fmt.Errorf("no parallel rewrite for %s", provider)
	}
	if job == nil {
		return false, fmt.Errorf("job %q not found", to)
	}

	needsKV := mappingValue(job, needsKey)
	if needsKV == nil {
		return false, nil
	}

	switch value := needsKV.Value.(type) {
	case *ast.StringNode:
		if value.Value != from {
			return false, nil
		}
		removeMappingKey(job, needsKey)
		return true, nil
	case *ast.SequenceNode:
		for i, item := range value.Values {
			name := scalarText(item)
			if entry := asMapping(item); entry != nil {
				// GitLab needs entries may be {job: ...} mappings.
				name = scalarText(valueOf(entry, "job"))
			}
			if name != from {
				continue
			}
			value.Values = append(value.Values[:i], value.Values[i+1:]...)
			if len(value.Values) == 0 {
				removeMappingKey(job, needsKey)
			}
			return true, nil
		}
		return false, nil
	}
	// GitLab needs entries may be {job: ...} mappings.
	if seq := asSequence(needsKV.Value); seq != nil {
		for i, item := range seq.Values {
			entry := asMapping(item)
			if entry == nil || scalarText(valueOf(entry, "job")) != from {
				continue
			}
			seq.Values = append(seq.Values[:i], seq.Values[i+1:]...)
			if len(seq.Values) == 0 {
				removeMappingKey(job, needsKey)
			}
			return true, nil
		}
	}
	return false, nil
}
