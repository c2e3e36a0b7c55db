package optimizer

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
)

// lockfileByTool keys the injected cache by the right lockfile hash.
var lockfileByTool = map[string]struct {
	lockfile string
	paths    string
}{
	"npm":    {"package-lock.json", "~/.npm"},
	"yarn":   {"yarn.lock", "~/.yarn/cache"},
	"pip":    {"requirements.txt", "~/.cache/pip"},
	"cargo":  {"Cargo.lock", "~/.cargo/registry\ntarget"},
	"gradle": {"**/*.gradle*", "~/.gradle/caches"},
	"maven":  {"pom.xml", "~/.m2/repository"},
}

// applyCache injects a provider-native cache into the affected job:
// the cache input of an existing setup-* step when one exists, an
// explicit cache step otherwise. Idempotent: a matching cache already in
// place is a no-op.
func applyCache(doc *ast.MappingNode, provider dag.Provider, f analyzer.Finding) (bool, error) {
	jobID := firstAffected(f)
	switch provider {
	case dag.ProviderGitHubActions:
		return applyGitHubCache(doc, jobID, f)
	case dag.ProviderGitLabCI:
		return applyGitLabCache(doc, jobID, f)
	}
	return false, fmt.Errorf("no cache rewrite for %s", provider)
}

func applyGitHubCache(doc *ast.MappingNode, jobID string, f analyzer.Finding) (bool, error) {
	job := githubJob(doc, jobID)
	if job == nil {
		return false, fmt.Errorf("job %q not found", jobID)
	}
	stepsKV := mappingValue(job, "steps")
	if stepsKV == nil {
		return false, fmt.Errorf("job %q has no steps", jobID)
	}
	steps := asSequence(stepsKV.Value)
	if steps == nil {
		return false, fmt.Errorf("job %q steps is not a sequence", jobID)
	}

	tool := cacheToolFromFinding(f)

	// Prefer the setup-* action's built-in cache input.
	for _, rawStep := range steps.Values {
		step := asMapping(rawStep)
		if step == nil {
			continue
		}
		uses := scalarText(valueOf(step, "uses"))
		if !strings.HasPrefix(uses, "actions/setup-") {
			continue
		}
		withKV := mappingValue(step, "with")
		if withKV != nil {
			withMap := asMapping(withKV.Value)
			if withMap != nil {
				if existing := scalarText(valueOf(withMap, "cache")); existing != "" {
					return false, nil
				}
				snippet, err := parseSnippet(0, "cache: "+tool)
				if err != nil {
					return false, err
				}
				return true, appendMappingEntries(withMap, snippet)
			}
		}
		return true, appendMappingEntries(step, mustMapping("with:\n  cache: "+tool, nodeIndent(step.Values[0].Key)))
	}

	// No setup step: insert an explicit cache step before the installer.
	insertAt := 0
	for i, rawStep := range steps.Values {
		step := asMapping(rawStep)
		if step == nil {
			continue
		}
		uses := scalarText(valueOf(step, "uses"))
		if strings.HasPrefix(uses, "actions/cache") {
			return false, nil
		}
		run := scalarText(valueOf(step, "run"))
		if installSignature(run) {
			insertAt = i
		}
	}

	info, ok := lockfileByTool[tool]
	if !ok {
		info = struct {
			lockfile string
			paths    string
		}{"**/lockfiles", "~/.cache"}
	}
	indent := 0
	if len(steps.Values) > 0 {
		indent = nodeIndent(steps.Values[0])
	}
	var paths strings.Builder
	for _, p := range strings.Split(info.paths, "\n") {
		fmt.Fprintf(&paths, "    %s\n", p)
	}
	body := fmt.Sprintf(
		"- uses: actions/cache@v4\n  with:\n    path: |\n%s    key: %s-${{ runner.os }}-${{ hashFiles('%s') }}\n    restore-keys: |\n      %s-${{ runner.os }}-\n",
		paths.String(), tool, info.lockfile, tool)
	node, err := parseSnippet(indent, body)
	if err != nil {
		return false, err
	}
	cacheSeq := asSequence(node)
	if cacheSeq == nil || len(cacheSeq.Values) == 0 {
		return false, fmt.Errorf("malformed cache snippet")
	}
	insertSequenceValue(steps, insertAt, cacheSeq.Values[0])
	return true, nil
}

func applyGitLabCache(doc *ast.MappingNode, jobID string, f analyzer.Finding) (bool, error) {
	job := childMapping(doc, jobID)
	if job == nil {
		return false, fmt.Errorf("job %q not found", jobID)
	}
	if mappingValue(job, "cache") != nil {
		return false, nil
	}
	tool := cacheToolFromFinding(f)
	info, ok := lockfileByTool[tool]
	if !ok {
		info = struct {
			lockfile string
			paths    string
		}{"**/lockfiles", ".cache"}
	}
	paths := strings.ReplaceAll(info.paths, "~/.", ".")
	var pathLines strings.Builder
	for _, p := range strings.Split(paths, "\n") {
		fmt.Fprintf(&pathLines, "    - %s\n", p)
	}
	body := fmt.Sprintf("cache:\n  key:\n    files:\n      - %s\n  paths:\n%s", info.lockfile, pathLines.String())
	snippet, err := parseSnippet(nodeIndent(job.Values[0].Key), body)
	if err != nil {
		return false, err
	}
	return true, appendMappingEntries(job, snippet)
}

// githubJob resolves jobs.<id> as a mapping.
func githubJob(doc *ast.MappingNode, jobID string) *ast.MappingNode {
	return childMapping(childMapping(doc, "jobs"), jobID)
}

func valueOf(m *ast.MappingNode, key string) ast.Node {
	kv := mappingValue(m, key)
	if kv == nil {
		return nil
	}
	return kv.Value
}

// mustMapping parses a snippet known valid at build time.
func mustMapping(body string, indent int) ast.Node {
	node, err := parseSnippet(indent, body)
	if err != nil {
		panic(err)
	}
	return node
}

func cacheToolFromFinding(f analyzer.Finding) string {
	for _, tool := range []string{"npm", "yarn", "pip", "cargo", "gradle", "maven"} {
		if strings.Contains(f.Description, tool) || strings.Contains(f.Recommendation, tool) {
			return tool
		}
	}
	return "npm"
}

func installSignature(run string) bool {
	for _, sig := range []string{"npm ci", "npm install", "yarn", "pip install", "cargo build", "gradle", "mvn ", "go mod download", "bundle install"} {
		if strings.Contains(run, sig) {
			return true
		}
	}
	return false
}
