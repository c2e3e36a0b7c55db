package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// NewWhatIfCommand builds the what-if subcommand: re-analysis under a
// hypothetical job duration.
func NewWhatIfCommand() *cobra.Command {
	var jobID string
	var durationSecs float64

	cmd := &cobra.Command{
		Use:     "what-if <config-file>",
		Short:   "Re-analyze with a hypothetical job duration",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID == "" || durationSecs <= 0 {
				return &ExitError{Code: constants.ExitConfigError,
					Err: fmt.Errorf("--job and a positive --duration-secs are required")}
			}
			pipeline, err := providers.ParseFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			baseline, err := analyzer.Analyze(cmd.Context(), pipeline, nil)
			if err != nil {
				return err
			}

			job, ok := pipeline.Job(jobID)
			if !ok {
				return &ExitError{Code: constants.ExitConfigError, Err: fmt.Errorf("no job %q in pipeline", jobID)}
			}
			job.EstimatedSeconds = durationSecs
			for i := range job.Steps {
				job.Steps[i].EstimatedSeconds = 0
			}

			modified, err := analyzer.Analyze(cmd.Context(), pipeline, nil)
			if err != nil {
				return err
			}

			fmt.Printf("what-if %s takes %.0fs:\n", jobID, durationSecs)
			fmt.Printf("  critical path: %.1f min -> %.1f min\n",
				baseline.CriticalPathDurationSecs/60, modified.CriticalPathDurationSecs/60)
			fmt.Printf("  path before:   %v\n", baseline.CriticalPath)
			fmt.Printf("  path after:    %v\n", modified.CriticalPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Job id to override")
	cmd.Flags().Float64Var(&durationSecs, "duration-secs", 0, "Hypothetical duration in seconds")
	return cmd
}
