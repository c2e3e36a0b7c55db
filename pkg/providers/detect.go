package providers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/logger"
)

var detectLog = logger.New("providers:detect")

// Detect identifies the CI provider for a file, deterministically, by
// filename and directory pattern first and document kind second. The
// priority order is fixed: the first match wins. Unknown files fail with
// ErrUnsupportedProvider.
func Detect(path string) (dag.Provider, error) {
	base := filepath.Base(path)
	dir := filepath.ToSlash(filepath.Dir(path))
	lower := strings.ToLower(base)

	yamlExt := strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")

	switch {
	case base == "Jenkinsfile" || strings.HasPrefix(base, "Jenkinsfile."):
		return dag.ProviderJenkins, nil
	case yamlExt && strings.HasSuffix(dir, ".github/workflows"):
		return dag.ProviderGitHubActions, nil
	case lower == ".gitlab-ci.yml" || lower == ".gitlab-ci.yaml":
		return dag.ProviderGitLabCI, nil
	case yamlExt && strings.HasSuffix(dir, ".circleci") && strings.HasPrefix(lower, "config."):
		return dag.ProviderCircleCI, nil
	case lower == "bitbucket-pipelines.yml" || lower == "bitbucket-pipelines.yaml":
		return dag.ProviderBitbucket, nil
	case lower == "azure-pipelines.yml" || lower == "azure-pipelines.yaml":
		return dag.ProviderAzurePipelines, nil
	case yamlExt && strings.HasSuffix(dir, ".buildkite") && strings.HasPrefix(lower, "pipeline."):
		return dag.ProviderBuildkite, nil
	case lower == "codepipeline.json" || lower == "codepipeline.yml" || lower == "codepipeline.yaml":
		return dag.ProviderAWSCodePipeline, nil
	case lower == ".drone.yml" || lower == ".woodpecker.yml":
		return dag.ProviderDrone, nil
	}

	// Kubernetes-style configs are recognized by their document kind.
	if yamlExt {
		if provider, ok := detectByKind(path); ok {
			return provider, nil
		}
	}

	detectLog.Printf("no provider matched %s", path)
	return "", &ParseError{
		Kind:    ErrUnsupportedProvider,
		Path:    path,
		Message: fmt.Sprintf("cannot determine CI provider for %q", base),
	}
}

// detectByKind sniffs multi-document YAML for Tekton and Argo kinds.
func detectByKind(path string) (dag.Provider, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	docs, err := decodeYAMLDocuments(path, data)
	if err != nil {
		return "", false
	}
	for _, doc := range docs {
		switch getString(doc, "kind") {
		case "Pipeline", "Task", "PipelineRun":
			return dag.ProviderTekton, true
		case "Workflow", "WorkflowTemplate":
			return dag.ProviderArgo, true
		}
	}
	return "", false
}
