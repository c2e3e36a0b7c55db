package optimizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml/ast"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
)

var shardCountPattern = regexp.MustCompile(`(\d+) shards`)

// applyShard adds a shard matrix axis to the affected test job and
// rewrites the test command to receive the shard index per provider
// convention.
func applyShard(doc *ast.MappingNode, provider dag.Provider, f analyzer.Finding) (bool, error) {
	jobID := firstAffected(f)
	shards := shardCount(f)

	switch provider {
	case dag.ProviderGitHubActions:
		return applyGitHubShard(doc, jobID, shards)
	case dag.ProviderGitLabCI:
		return applyGitLabShard(doc, jobID, shards)
	}
	return false, fmt.Errorf("no shard rewrite for %s", provider)
}

// shardCount recovers the shard count the detector recommended.
func shardCount(f analyzer.Finding) int {
	if m := shardCountPattern.FindStringSubmatch(f.Recommendation); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n >= 2 {
			return n
		}
	}
	return 4
}

func applyGitHubShard(doc *ast.MappingNode, jobID string, shards int) (bool, error) {
	job := githubJob(doc, jobID)
	if job == nil {
		return false, fmt.Errorf("job %q not found", jobID)
	}

	strategy := childMapping(job, "strategy")
	if strategy != nil {
		if matrix := childMapping(strategy, "matrix"); matrix != nil {
			if mappingValue(matrix, "shard") != nil {
				return false, nil
			}
		}
	}

	values := make([]string, shards)
	for i := range values {
		values[i] = fmt.Sprintf("%d", i+1)
	}
	axis := "[" + strings.Join(values, ", ") + "]"

	indent := nodeIndent(job.Values[0].Key)
	switch {
	case strategy == nil:
		snippet, err := parseSnippet(indent, fmt.Sprintf("strategy:\n  fail-fast: false\n  matrix:\n    shard: %s\n", axis))
		if err != nil {
			return false, err
		}
		if err := appendMappingEntries(job, snippet); err != nil {
			return false, err
		}
	default:
		matrixKV := mappingValue(strategy, "matrix")
		if matrixKV == nil {
			snippet, err := parseSnippet(0, fmt.Sprintf("matrix:\n  shard: %s\n", axis))
			if err != nil {
				return false, err
			}
			if err := appendMappingEntries(strategy, snippet); err != nil {
				return false, err
			}
		} else {
			matrix := asMapping(matrixKV.Value)
			if matrix == nil {
				return false, fmt.Errorf("matrix of job %q is not a mapping", jobID)
			}
			snippet, err := parseSnippet(0, "shard: "+axis)
			if err != nil {
				return false, err
			}
			if err := appendMappingEntries(matrix, snippet); err != nil {
				return false, err
			}
		}
	}

	rewriteTestCommand(job, fmt.Sprintf("--shard=${{ matrix.shard }}/%d", shards))
	return true, nil
}

func applyGitLabShard(doc *ast.MappingNode, jobID string, shards int) (bool, error) {
	job := childMapping(doc, jobID)
	if job == nil {
		return false, fmt.Errorf("job %q not found", jobID)
	}
	if mappingValue(job, "parallel") != nil {
		return false, nil
	}
	snippet, err := parseSnippet(nodeIndent(job.Values[0].Key), fmt.Sprintf("parallel: %d", shards))
	if err != nil {
		return false, err
	}
	if err := appendMappingEntries(job, snippet); err != nil {
		return false, err
	}
	// GitLab exposes CI_NODE_INDEX/CI_NODE_TOTAL to the command.
	rewriteGitLabScript(job, "--shard=$CI_NODE_INDEX/$CI_NODE_TOTAL")
	return true, nil
}

// rewriteTestCommand appends the shard argument to the first test-runner
// step of a GitHub job.
func rewriteTestCommand(job *ast.MappingNode, shardArg string) {
	steps := asSequence(valueOf(job, "steps"))
	if steps == nil {
		return
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
		run := scalarText(runKV.Value)
		if !isTestCommand(run) || strings.Contains(run, "--shard") {
			continue
		}
		_ = replaceScalar(runKV, run+" "+shardArg)
		return
	}
}

func rewriteGitLabScript(job *ast.MappingNode, shardArg string) {
	script := asSequence(valueOf(job, "script"))
	if script == nil {
		return
	}
	for _, item := range script.Values {
		line := scalarText(item)
		if !isTestCommand(line) || strings.Contains(line, "--shard") {
			continue
		}
		if s, ok := item.(*ast.StringNode); ok {
			s.Value = line + " " + shardArg
			if tk := s.GetToken(); tk != nil {
				tk.Value = s.Value
			}
		}
		return
	}
}

func isTestCommand(run string) bool {
	for _, sig := range []string{"test", "jest", "pytest", "rspec", "vitest", "mocha"} {
		if strings.Contains(run, sig) {
			return true
		}
	}
	return false
}
