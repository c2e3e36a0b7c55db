package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/console"
)

// NewDiffCommand builds the diff subcommand: the findings delta between
// two configurations, typically before and after an optimization.
func NewDiffCommand() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:     "diff <before-config> <after-config>",
		Short:   "Compare findings between two CI configurations",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, _, err := analyzeFile(cmd.Context(), args[0], &flags)
			if err != nil {
				return err
			}
			after, _, err := analyzeFile(cmd.Context(), args[1], &flags)
			if err != nil {
				return err
			}

			beforeSet := findingKeySet(before.Findings)
			afterSet := findingKeySet(after.Findings)

			for key, f := range beforeSet {
				if _, still := afterSet[key]; !still {
					fmt.Println(console.FormatSuccessMessage("fixed " + describeFinding(f)))
				}
			}
			for key, f := range afterSet {
				if _, was := beforeSet[key]; !was {
					fmt.Println(console.FormatWarningMessage("new " + describeFinding(f)))
				}
			}

			fmt.Printf("\nduration: %.1f min -> %.1f min\n",
				before.TotalEstimatedDurationSecs/60, after.TotalEstimatedDurationSecs/60)
			fmt.Printf("health:   %s (%d) -> %s (%d)\n",
				before.HealthScore.Grade, before.HealthScore.TotalScore,
				after.HealthScore.Grade, after.HealthScore.TotalScore)
			return nil
		},
	}
	addCommonFlags(cmd, &flags)
	return cmd
}

// findingKeySet keys findings by category plus affected jobs so renames
// of sequential ids do not show up as churn.
func findingKeySet(findings []analyzer.Finding) map[string]analyzer.Finding {
	set := make(map[string]analyzer.Finding, len(findings))
	for _, f := range findings {
		key := string(f.Category)
		for _, job := range f.AffectedJobs {
			key += "|" + job
		}
		set[key] = f
	}
	return set
}

func describeFinding(f analyzer.Finding) string {
	return fmt.Sprintf("[%s] %s", f.Severity, f.Title)
}
