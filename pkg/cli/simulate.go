package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/config"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/providers"
	"github.com/pipelinex/pipelinex/pkg/simulator"
	"github.com/pipelinex/pipelinex/pkg/tty"
)

// NewSimulateCommand builds the simulate subcommand.
func NewSimulateCommand() *cobra.Command {
	var runs int
	var seedFlag string
	var workers int
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "simulate <config-file>",
		Short:   "Monte-Carlo the pipeline duration distribution",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := providers.ParseFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			opts := simulator.Options{Runs: runs, Workers: workers}
			cfg, err := config.FromEnv()
			if err != nil {
				return &ExitError{Code: constants.ExitConfigError, Err: err}
			}
			if cfg.SeedSet {
				opts.Seed, opts.SeedSet = cfg.Seed, true
			}
			if seedFlag != "" {
				seed, err := simulator.ParseSeed(seedFlag)
				if err != nil {
					return &ExitError{Code: constants.ExitConfigError, Err: err}
				}
				opts.Seed, opts.SeedSet = seed, true
			}

			// Progress indicator on TTYs for big runs; presentation only.
			var progress *spinner.Spinner
			if runs >= constants.SpinnerRunThreshold && tty.IsStderrTerminal() {
				progress = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				progress.Suffix = fmt.Sprintf(" simulating %d runs", runs)
				progress.Start()
			}
			result, err := simulator.Simulate(cmd.Context(), pipeline, opts)
			if progress != nil {
				progress.Stop()
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSimulation(result)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 1000, "Number of Monte-Carlo runs")
	cmd.Flags().StringVar(&seedFlag, "seed", "", "RNG seed (overrides PIPELINEX_SEED)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (0 = one per CPU)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw result as JSON")
	return cmd
}

func printSimulation(result *simulator.Result) {
	fmt.Printf("runs %d  seed %d\n", result.Runs, result.Seed)
	fmt.Printf("  min  %8.1fs    p50 %8.1fs\n", result.Min, result.P50)
	fmt.Printf("  p90  %8.1fs    p99 %8.1fs\n", result.P90, result.P99)
	fmt.Printf("  max  %8.1fs   mean %8.1fs  (σ %.1fs)\n", result.Max, result.Mean, result.StdDev)
	fmt.Println("histogram:")
	maxCount := 1
	for _, bucket := range result.Histogram {
		if bucket.Count > maxCount {
			maxCount = bucket.Count
		}
	}
	for _, bucket := range result.Histogram {
		bar := int(float64(bucket.Count) / float64(maxCount) * 40)
		fmt.Printf("  %7.0f-%7.0fs %s %d\n", bucket.Lo, bucket.Hi, barString(bar), bucket.Count)
	}
}

func barString(n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = '█'
	}
	return string(out)
}
