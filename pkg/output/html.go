package output

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/mathutil"
)

// EncodeHTML renders a standalone report page: a duration bar chart over
// the critical path plus the findings table.
func EncodeHTML(report *analyzer.Report) (string, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Pipeline %s", report.PipelineName),
			Subtitle: fmt.Sprintf("critical path %.1f min", report.CriticalPathDurationSecs/60),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
	)

	var jobs []string
	var durations []opts.BarData
	for _, id := range report.CriticalPath {
		jobs = append(jobs, id)
		durations = append(durations, opts.BarData{Value: jobDurationInReport(report, id)})
	}
	bar.SetXAxis(jobs).AddSeries("duration", durations)

	var chart bytes.Buffer
	if err := bar.Render(&chart); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>pipelinex report</title></head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s <small>(%s)</small></h1>\n", html.EscapeString(report.PipelineName), report.Provider)
	fmt.Fprintf(&b, "<p>Health <strong>%s</strong> (%d/100), estimated %.1f min, optimized %.1f min</p>\n",
		report.HealthScore.Grade, report.HealthScore.TotalScore,
		mathutil.Round1(report.TotalEstimatedDurationSecs/60), mathutil.Round1(report.OptimizedDurationSecs/60))

	b.WriteString(chart.String())

	b.WriteString("<table border=\"1\" cellpadding=\"4\">\n<tr><th>ID</th><th>Severity</th><th>Title</th><th>Jobs</th><th>Savings (s)</th></tr>\n")
	for _, f := range report.Findings {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%.0f</td></tr>\n",
			f.ID, f.Severity, html.EscapeString(f.Title),
			html.EscapeString(strings.Join(f.AffectedJobs, ", ")), f.EstimatedSavingsSecs)
	}
	b.WriteString("</table>\n</body>\n</html>\n")
	return b.String(), nil
}

// jobDurationInReport approximates a job's share of the critical path.
// The report does not carry per-job durations, so the path total is
// split evenly across the critical-path jobs.
func jobDurationInReport(report *analyzer.Report, _ string) float64 {
	if len(report.CriticalPath) == 0 {
		return 0
	}
	return report.CriticalPathDurationSecs / float64(len(report.CriticalPath))
}
