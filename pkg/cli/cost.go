package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/providers"
)

// Per-minute runner rates in USD, the public hosted-runner price list.
var runnerRates = map[string]float64{
	"small":  0.004,
	"medium": 0.008,
	"large":  0.016,
	"xlarge": 0.032,
}

// NewCostCommand builds the cost subcommand: a compute-minute estimate
// from job durations, runner classes, and matrix sizes.
func NewCostCommand() *cobra.Command {
	var runsPerMonth int

	cmd := &cobra.Command{
		Use:     "cost <config-file>",
		Short:   "Estimate the compute cost of one pipeline run",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := providers.ParseFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var totalMinutes, totalCost float64
			fmt.Printf("%-24s %8s %8s %10s\n", "JOB", "CLASS", "MIN", "COST")
			for _, id := range pipeline.JobIDs() {
				job, _ := pipeline.Job(id)
				class := runnerClassLabel(job.RunsOn)
				// Cost scales with total compute, not wall-clock: every
				// matrix cell bills its own runner.
				minutes := job.StepDurationSum() / 60 * float64(job.MatrixSize())
				if minutes == 0 {
					minutes = job.EstimatedSeconds / 60 * float64(job.MatrixSize())
				}
				cost := minutes * runnerRates[class]
				totalMinutes += minutes
				totalCost += cost
				fmt.Printf("%-24s %8s %8.1f %10.4f\n", id, class, minutes, cost)
			}
			fmt.Printf("%-24s %8s %8.1f %10.4f\n", "TOTAL", "", totalMinutes, totalCost)
			if runsPerMonth > 0 {
				fmt.Printf("\nat %d runs/month: $%.2f\n", runsPerMonth, totalCost*float64(runsPerMonth))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runsPerMonth, "runs-per-month", 0, "Project the monthly cost at this run count")
	return cmd
}

func runnerClassLabel(runsOn string) string {
	lower := strings.ToLower(runsOn)
	switch {
	case strings.Contains(lower, "xlarge"):
		return "xlarge"
	case strings.Contains(lower, "large"):
		return "large"
	case strings.Contains(lower, "small") || strings.Contains(lower, "micro"):
		return "small"
	}
	return "medium"
}
