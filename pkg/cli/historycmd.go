package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/history"
)

// NewHistoryCommand builds the history subcommand for inspecting job
// history snapshots. Ingestion from provider APIs is an external
// collaborator; the core only consumes snapshot files.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Inspect job-history snapshots",
		GroupID: "analysis",
	}

	show := &cobra.Command{
		Use:   "show <snapshot.json>",
		Short: "Summarize a history snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := history.LoadFile(args[0])
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(snap.PerJob))
			for id := range snap.PerJob {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			fmt.Printf("%-24s %6s %6s %8s %8s\n", "JOB", "OK", "FAIL", "MEAN", "VAR")
			for _, id := range ids {
				stats := snap.PerJob[id]
				fmt.Printf("%-24s %6d %6d %7.1fs %8.1f\n",
					id, stats.SuccessCount, stats.FailureCount, stats.MeanDuration(), stats.Variance)
			}
			return nil
		},
	}
	cmd.AddCommand(show)
	return cmd
}
