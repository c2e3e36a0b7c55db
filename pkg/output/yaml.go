package output

import (
	"github.com/goccy/go-yaml"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
)

// testSelection is the YAML projection consumed by test-selection
// tooling: which jobs to prioritize and what the analysis claims about
// them.
type testSelection struct {
	Pipeline string                 `yaml:"pipeline"`
	Provider string                 `yaml:"provider"`
	Jobs     []testSelectionJob     `yaml:"jobs"`
	Findings []testSelectionFinding `yaml:"findings"`
}

type testSelectionJob struct {
	ID         string `yaml:"id"`
	OnCritical bool   `yaml:"on_critical_path"`
}

type testSelectionFinding struct {
	ID       string   `yaml:"id"`
	Severity string   `yaml:"severity"`
	Jobs     []string `yaml:"jobs,omitempty"`
}

// EncodeYAML renders the test-selection projection of the report.
func EncodeYAML(report *analyzer.Report) (string, error) {
	onPath := make(map[string]bool, len(report.CriticalPath))
	sel := testSelection{
		Pipeline: report.PipelineName,
		Provider: string(report.Provider),
	}
	for _, id := range report.CriticalPath {
		onPath[id] = true
		sel.Jobs = append(sel.Jobs, testSelectionJob{ID: id, OnCritical: true})
	}
	for _, f := range report.Findings {
		sel.Findings = append(sel.Findings, testSelectionFinding{
			ID:       f.ID,
			Severity: string(f.Severity),
			Jobs:     f.AffectedJobs,
		})
	}
	data, err := yaml.Marshal(sel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
