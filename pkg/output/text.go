package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/mathutil"
	"github.com/pipelinex/pipelinex/pkg/styles"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
	"github.com/pipelinex/pipelinex/pkg/tty"
)

// EncodeText renders the human-readable report: a summary header, the
// findings table, and the health grade. Styling applies only on TTYs.
func EncodeText(report *analyzer.Report) string {
	var b strings.Builder
	styled := tty.IsStdoutTerminal()
	style := func(s lipgloss.Style, text string) string {
		if styled {
			return s.Render(text)
		}
		return text
	}

	b.WriteString(style(styles.Header, fmt.Sprintf("Pipeline %s (%s)", report.PipelineName, report.Provider)))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  source           %s\n", report.SourceFile)
	fmt.Fprintf(&b, "  jobs / steps     %d / %d\n", report.JobCount, report.StepCount)
	fmt.Fprintf(&b, "  max parallelism  %d\n", report.MaxParallelism)
	fmt.Fprintf(&b, "  critical path    %s\n", strings.Join(report.CriticalPath, " -> "))
	fmt.Fprintf(&b, "  estimated        %s\n", formatDuration(report.TotalEstimatedDurationSecs))

	saved := report.TotalEstimatedDurationSecs - report.OptimizedDurationSecs
	if saved > 0.5 {
		pct := mathutil.Round1(saved / report.TotalEstimatedDurationSecs * 100)
		fmt.Fprintf(&b, "  optimized        %s (%.1f%% faster)\n", formatDuration(report.OptimizedDurationSecs), pct)
	}
	b.WriteByte('\n')

	if len(report.Findings) == 0 {
		b.WriteString(style(styles.Success, "No findings.") + "\n")
	} else {
		b.WriteString(renderFindingsTable(report, styled))
		b.WriteByte('\n')
	}

	grade := report.HealthScore.Grade
	gradeStyle := styles.Success
	if report.HealthScore.TotalScore < 70 {
		gradeStyle = styles.Warning
	}
	if report.HealthScore.TotalScore < 25 {
		gradeStyle = styles.Error
	}
	fmt.Fprintf(&b, "Health: %s (%d/100)\n", style(gradeStyle, grade), report.HealthScore.TotalScore)

	if len(report.HealthScore.Recommendations) > 0 {
		b.WriteString("Top fixes:\n")
		for _, rec := range report.HealthScore.Recommendations {
			fmt.Fprintf(&b, "  • %s\n", rec)
		}
	}
	for _, diag := range report.Diagnostics {
		fmt.Fprintf(&b, "%s %s\n", style(styles.Warning, "diagnostic:"), diag)
	}
	return b.String()
}

func renderFindingsTable(report *analyzer.Report, styled bool) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	width := tty.Width(120)
	t.SetAllowedRowLength(width)
	t.AppendHeader(table.Row{"ID", "SEV", "Title", "Jobs", "Saves"})

	for _, f := range report.Findings {
		savings := ""
		if f.EstimatedSavingsSecs > 0 {
			savings = formatDuration(f.EstimatedSavingsSecs)
		}
		sev := strings.ToUpper(string(f.Severity))
		if styled {
			sev = severityStyle(f.Severity).Render(sev)
		}
		t.AppendRow(table.Row{
			f.ID,
			sev,
			stringutil.Truncate(f.Title, 60),
			stringutil.Truncate(strings.Join(f.AffectedJobs, ","), 30),
			savings,
		})
	}
	return t.Render() + "\n"
}

func severityStyle(s analyzer.Severity) lipgloss.Style {
	switch s {
	case analyzer.SeverityCritical, analyzer.SeverityHigh:
		return styles.Error
	case analyzer.SeverityMedium:
		return styles.Warning
	case analyzer.SeverityLow:
		return styles.Info
	}
	return styles.Muted
}

// formatDuration renders seconds the way humans read pipeline times.
func formatDuration(secs float64) string {
	d := time.Duration(secs * float64(time.Second))
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", secs)
	}
	return humanize.RelTime(time.Now(), time.Now().Add(d), "", "")
}
