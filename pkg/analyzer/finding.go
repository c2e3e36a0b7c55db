package analyzer

// Severity ranks findings. The order is total: Critical > High > Medium
// > Low > Info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Priority returns the numeric rank of a severity, higher is more severe.
func (s Severity) Priority() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Category is the closed set of antipatterns plus security and custom
// (plugin-contributed) findings.
type Category string

const (
	CategoryMissingCache     Category = "missing-cache"
	CategoryFalseDependency  Category = "false-dependency"
	CategoryUnshardedTests   Category = "unsharded-tests"
	CategoryNoDockerCache    Category = "no-docker-cache"
	CategoryRedundantSetup   Category = "redundant-setup"
	CategoryFlakyTests       Category = "flaky-tests"
	CategoryRunnerSizing     Category = "runner-sizing"
	CategoryNoArtifactReuse  Category = "no-artifact-reuse"
	CategoryFullClone        Category = "full-clone"
	CategoryNoConcurrency    Category = "no-concurrency-control"
	CategoryMatrixBloat      Category = "matrix-bloat"
	CategoryNoPathFiltering  Category = "no-path-filtering"
	CategorySecurity         Category = "security"
	CategoryCustom           Category = "custom"
)

// Finding is a single detected issue. IDs follow PLX-<CAT>-<N> so
// renderers can link to documentation.
type Finding struct {
	ID            string   `json:"id"`
	Severity      Severity `json:"severity"`
	Category      Category `json:"category"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	AffectedJobs  []string `json:"affected_jobs"`
	Recommendation string  `json:"recommendation"`
	FixCommand    string   `json:"fix_command"`

	// EstimatedSavingsSecs never exceeds the affected job's duration;
	// finalization clamps it.
	EstimatedSavingsSecs float64 `json:"estimated_savings_secs"`

	// Confidence is in [0, 100]. The optimizer only applies findings at
	// 80 or above.
	Confidence  int  `json:"confidence"`
	AutoFixable bool `json:"auto_fixable"`

	// Extra preserves unknown fields from plugin findings.
	Extra map[string]any `json:"-"`
}
