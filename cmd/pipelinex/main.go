package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/cli"
	"github.com/pipelinex/pipelinex/pkg/console"
	"github.com/pipelinex/pipelinex/pkg/constants"
)

// Build-time variables set by the release pipeline
var (
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     constants.CLIName,
	Short:   "Static analyzer and optimizer for CI pipeline configurations",
	Version: version,
	Long: `pipelinex finds bottlenecks in CI pipelines and fixes them

Common Tasks:
  pipelinex analyze .github/workflows/ci.yml   # Findings and health score
  pipelinex optimize ci.yml -o ci.fixed.yml    # Apply auto-fixes
  pipelinex graph ci.yml                       # Show the dependency graph
  pipelinex simulate ci.yml --runs 10000       # Duration distribution
  pipelinex cost ci.yml --runs-per-month 900   # Compute cost estimate
  pipelinex explain PLX-CACHE-001              # What a finding means

For detailed help on any command, use:
  pipelinex [command] --help`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "analysis",
		Title: "Analysis Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "optimization",
		Title: "Optimization Commands:",
	})

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output showing detailed information")

	// Logs go to stderr so stdout stays machine-readable.
	rootCmd.SetOut(os.Stderr)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n",
		console.FormatInfoMessage(fmt.Sprintf("%s version {{.Version}}", constants.CLIName))))

	rootCmd.AddCommand(
		cli.NewAnalyzeCommand(),
		cli.NewOptimizeCommand(),
		cli.NewDiffCommand(),
		cli.NewGraphCommand(),
		cli.NewCostCommand(),
		cli.NewSimulateCommand(),
		cli.NewExplainCommand(),
		cli.NewWhatIfCommand(),
		cli.NewLintCommand(),
		cli.NewMigrateCommand(),
		cli.NewMultiRepoCommand(),
		cli.NewRightSizeCommand(),
		cli.NewFlakyCommand(),
		cli.NewSelectTestsCommand(),
		cli.NewHistoryCommand(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code := cli.ExitCode(err)
		if code != constants.ExitFindings {
			cli.PrintError(err)
		}
		os.Exit(code)
	}
}
