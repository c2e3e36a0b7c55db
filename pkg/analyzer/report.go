package analyzer

import "github.com/pipelinex/pipelinex/pkg/dag"

// HealthScore is the 0-100 pipeline health with its letter grade and the
// top auto-fixable recommendations.
type HealthScore struct {
	TotalScore      int      `json:"total_score"`
	Grade           string   `json:"grade"`
	Recommendations []string `json:"recommendations"`
}

// Report is the single structured output of an analysis. Its JSON field
// names are a stable, additive compatibility surface: fields may be added
// in later versions but never removed or retyped.
type Report struct {
	Provider     dag.Provider `json:"provider"`
	PipelineName string       `json:"pipeline_name"`
	SourceFile   string       `json:"source_file"`
	JobCount     int          `json:"job_count"`
	StepCount    int          `json:"step_count"`

	// MaxParallelism is the maximum antichain width (heuristic).
	MaxParallelism int `json:"max_parallelism"`

	CriticalPath             []string `json:"critical_path"`
	CriticalPathDurationSecs float64  `json:"critical_path_duration_secs"`

	// TotalEstimatedDurationSecs equals the critical path duration.
	TotalEstimatedDurationSecs float64 `json:"total_estimated_duration_secs"`

	// OptimizedDurationSecs subtracts confidently claimed savings on the
	// critical path, floored at 15% of the total to prevent overstated wins.
	OptimizedDurationSecs float64 `json:"optimized_duration_secs"`

	Findings []Finding `json:"findings"`

	HealthScore HealthScore `json:"health_score"`

	// Diagnostics records detector and plugin failures that did not
	// abort the analysis.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// FindingsAtOrAbove counts findings at or above the given severity, the
// basis of the CLI's --fail-on exit code.
func (r *Report) FindingsAtOrAbove(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity.Priority() >= s.Priority() {
			n++
		}
	}
	return n
}
