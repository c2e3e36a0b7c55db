package optimizer

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

// applyDocker rewrites docker build invocations to read and write a
// layer cache. GitHub gets the gha backend scoped to the job; GitLab
// gets registry-backed --cache-from against the project's cache image.
func applyDocker(doc *ast.MappingNode, provider dag.Provider, f analyzer.Finding) (bool, error) {
	jobID := firstAffected(f)
	scope := stringutil.Slugify(jobID)

	var job *ast.MappingNode
	var flags string
	switch provider {
	case dag.ProviderGitHubActions:
		job = githubJob(doc, jobID)
		flags = fmt.Sprintf("--cache-from type=gha,scope=%s --cache-to type=gha,mode=max,scope=%s", scope, scope)
	case dag.ProviderGitLabCI:
		job = childMapping(doc, jobID)
		flags = "--cache-from $CI_REGISTRY_IMAGE:cache --build-arg BUILDKIT_INLINE_CACHE=1"
	default:
		return false, fmt.Errorf("no docker rewrite for %s", provider)
	}
	if job == nil {
		return false, fmt.Errorf("job %q not found", jobID)
	}

	changed := false
	switch provider {
	case dag.ProviderGitHubActions:
		steps := asSequence(valueOf(job, "steps"))
		if steps == nil {
			return false, fmt.Errorf("job %q has no steps", jobID)
		}
		for _, rawStep := range steps.Values {
			step := asMapping(rawStep)
			if step == nil {
				continue
			}
			runKV := mappingValue(step, "run")
			if runKV == nil {
				continue
			}
			if updated, err := addDockerFlags(runKV, flags); err != nil {
				return false, err
			} else if updated {
				changed = true
			}
		}
	case dag.ProviderGitLabCI:
		script := asSequence(valueOf(job, "script"))
		if script == nil {
			return false, fmt.Errorf("job %q has no script", jobID)
		}
		for _, item := range script.Values {
			line := scalarText(item)
			if !isDockerBuild(line) || strings.Contains(line, "--cache-from") {
				continue
			}
			if s, ok := item.(*ast.StringNode); ok {
				s.Value = line + " " + flags
				if tk := s.GetToken(); tk != nil {
					tk.Value = s.Value
				}
				changed = true
			}
		}
	}
	return changed, nil
}

func addDockerFlags(runKV *ast.MappingValueNode, flags string) (bool, error) {
	run := scalarText(runKV.Value)
	if !isDockerBuild(run) || strings.Contains(run, "--cache-from") {
		return false, nil
	}
	// Multiline scripts keep their literal style; the flags attach to the
	// docker build line only.
	if strings.Contains(run, "\n") {
		var lines []string
		for _, line := range strings.Split(run, "\n") {
			if isDockerBuild(line) && !strings.Contains(line, "--cache-from") {
				line = line + " " + flags
			}
			lines = append(lines, line)
		}
		return true, replaceValue(runKV, "|\n"+indentLines(strings.Join(lines, "\n"), 2))
	}
	return true, replaceScalar(runKV, run+" "+flags)
}

func indentLines(s string, n int) string {
	prefix := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func isDockerBuild(line string) bool {
	return strings.Contains(line, "docker build") || strings.Contains(line, "docker buildx build")
}
