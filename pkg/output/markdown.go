package output

import (
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/mathutil"
)

// EncodeMarkdown renders the report for PR comments and docs.
func EncodeMarkdown(report *analyzer.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Pipeline analysis: %s\n\n", report.PipelineName)
	fmt.Fprintf(&b, "- Provider: `%s`\n", report.Provider)
	fmt.Fprintf(&b, "- Jobs: %d, steps: %d, max parallelism: %d\n", report.JobCount, report.StepCount, report.MaxParallelism)
	fmt.Fprintf(&b, "- Critical path: `%s`\n", strings.Join(report.CriticalPath, " → "))
	fmt.Fprintf(&b, "- Estimated duration: %.1f min", mathutil.Round1(report.TotalEstimatedDurationSecs/60))
	if report.OptimizedDurationSecs < report.TotalEstimatedDurationSecs {
		fmt.Fprintf(&b, " (→ %.1f min after fixes)", mathutil.Round1(report.OptimizedDurationSecs/60))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Health: **%s** (%d/100)\n\n", report.HealthScore.Grade, report.HealthScore.TotalScore)

	if len(report.Findings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}

	b.WriteString("| ID | Severity | Title | Jobs | Savings |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, f := range report.Findings {
		savings := ""
		if f.EstimatedSavingsSecs > 0 {
			savings = fmt.Sprintf("%.0fs", f.EstimatedSavingsSecs)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			f.ID, f.Severity, f.Title, strings.Join(f.AffectedJobs, ", "), savings)
	}
	return b.String()
}
