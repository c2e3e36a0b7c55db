package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/console"
	"github.com/pipelinex/pipelinex/pkg/optimizer"
)

// NewOptimizeCommand builds the optimize subcommand.
func NewOptimizeCommand() *cobra.Command {
	var flags commonFlags
	var write bool
	var outputPath string

	cmd := &cobra.Command{
		Use:     "optimize <config-file>",
		Short:   "Rewrite a CI configuration to apply auto-fixable findings",
		GroupID: "optimization",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			report, _, err := analyzeFile(cmd.Context(), path, &flags)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			result, optErr := optimizer.Optimize(source, report)
			for _, decision := range result.Transcript {
				line := fmt.Sprintf("%-9s %s (%s)", decision.State, decision.FindingID, decision.Category)
				if decision.Reason != "" {
					line += ": " + string(decision.Reason)
				}
				fmt.Fprintln(os.Stderr, console.FormatListItem(line))
			}
			if optErr != nil {
				// The original source came back verbatim; surface the error.
				PrintError(optErr)
				return optErr
			}

			switch {
			case write:
				if err := os.WriteFile(path, []byte(result.Output), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(
					fmt.Sprintf("applied %d rewrites to %s", result.Applied, path)))
			case outputPath != "":
				if err := os.WriteFile(outputPath, []byte(result.Output), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(
					fmt.Sprintf("wrote optimized config to %s", outputPath)))
			default:
				fmt.Print(result.Output)
			}
			return nil
		},
	}
	addCommonFlags(cmd, &flags)
	cmd.Flags().BoolVar(&write, "write", false, "Rewrite the config file in place")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the optimized config to this path")
	return cmd
}
