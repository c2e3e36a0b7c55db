package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/output"
)

// filteredCommand builds a subcommand that reports one finding category.
func filteredCommand(use, short string, categories ...analyzer.Category) *cobra.Command {
	var flags commonFlags
	keep := make(map[analyzer.Category]bool, len(categories))
	for _, c := range categories {
		keep[c] = true
	}

	cmd := &cobra.Command{
		Use:     use + " <config-file>",
		Short:   short,
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, _, err := analyzeFile(cmd.Context(), args[0], &flags)
			if err != nil {
				return err
			}
			var filtered []analyzer.Finding
			for _, f := range report.Findings {
				if keep[f.Category] {
					filtered = append(filtered, f)
				}
			}
			report.Findings = filtered
			return emit(report, &flags)
		},
	}
	addCommonFlags(cmd, &flags)
	return cmd
}

// NewRightSizeCommand reports only runner-sizing findings.
func NewRightSizeCommand() *cobra.Command {
	return filteredCommand("right-size", "Report runner right-sizing findings", analyzer.CategoryRunnerSizing)
}

// NewFlakyCommand reports only flaky-test findings; it requires history.
func NewFlakyCommand() *cobra.Command {
	cmd := filteredCommand("flaky", "Report flaky-test findings from job history", analyzer.CategoryFlakyTests)
	preRun := func(cmd *cobra.Command, args []string) error {
		if flag, _ := cmd.Flags().GetString("history"); flag == "" {
			return &ExitError{Code: constants.ExitConfigError,
				Err: fmt.Errorf("flaky detection needs --history (a job-history snapshot)")}
		}
		return nil
	}
	cmd.PreRunE = preRun
	return cmd
}

// NewSelectTestsCommand emits the YAML test-selection projection.
func NewSelectTestsCommand() *cobra.Command {
	var flags commonFlags
	cmd := &cobra.Command{
		Use:     "select-tests <config-file>",
		Short:   "Emit the test-selection projection (YAML)",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, _, err := analyzeFile(cmd.Context(), args[0], &flags)
			if err != nil {
				return err
			}
			rendered, err := output.Encode(report, output.FormatYAML)
			if err != nil {
				return err
			}
			fmt.Print(rendered)
			return nil
		},
	}
	addCommonFlags(cmd, &flags)
	return cmd
}
