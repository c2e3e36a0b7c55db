package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/console"
)

// findingDocs documents each finding family for the explain subcommand.
var findingDocs = map[string]struct {
	title string
	body  string
}{
	"PLX-CACHE": {
		"Missing dependency cache",
		"Installer steps (npm ci, pip install, cargo build, ...) re-download\nthe dependency tree on every run. A cache keyed by the lockfile hash\nturns minutes of network time into seconds of restore. Matrix jobs\nmultiply the waste by the cell count.",
	},
	"PLX-SERIAL": {
		"False dependency between jobs",
		"An edge between two jobs that share no artifacts serializes work\nthat could run in parallel. Removing the edge lets both start from\ntheir common ancestor; the pipeline saves the shorter duration.",
	},
	"PLX-SHARD": {
		"Unsharded test suite",
		"A long serial test job dominates the critical path. Splitting it\nacross matrix shards divides the wall-clock by the shard count at\nthe cost of duplicated setup.",
	},
	"PLX-DOCKER": {
		"No docker layer caching",
		"docker build without --cache-from rebuilds every layer on every\nrun. Pointing the build at the provider's layer cache backend skips\nunchanged layers entirely.",
	},
	"PLX-DUPSETUP": {
		"Redundant checkout and setup",
		"Several jobs repeat an identical checkout+install prefix. Hoist the\nwork into a shared predecessor or rely on a shared cache.",
	},
	"PLX-FLAKY": {
		"Flaky tests",
		"History shows intermittent failures without a code-change pattern.\nRetries hide flakiness but pay for it on every run.",
	},
	"PLX-RUNNER": {
		"Runner right-sizing",
		"The declared runner class does not match the inferred resource\npressure: an UPSCALE wastes wall-clock, a DOWNSIZE wastes money.",
	},
	"PLX-ARTIFACT": {
		"No artifact reuse",
		"A downstream job repeats a build its predecessor already ran.\nPublish the output once and download it instead.",
	},
	"PLX-CLONE": {
		"Unnecessary full clone",
		"Cloning full history of a large repository when the build only\nneeds the tree. A depth-1 clone fetches a fraction of the data.",
	},
	"PLX-CONCUR": {
		"Missing concurrency control",
		"Without a cancel-in-progress group, every push stacks a full run\nbehind the previous one on busy branches.",
	},
	"PLX-MATRIX": {
		"Matrix bloat",
		"The matrix cross-product costs more compute than the rest of the\npipeline combined. Keep one primary cell at full fidelity and smoke\nthe rest.",
	},
	"PLX-PATHS": {
		"No path filtering",
		"Documentation-only changes trigger the full pipeline. paths-ignore\nfor docs/ and *.md skips builds no one needs.",
	},
}

// NewExplainCommand builds the explain subcommand.
func NewExplainCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "explain <finding-id>",
		Short:   "Explain a finding id (e.g. PLX-CACHE-001)",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToUpper(args[0])
			for prefix, doc := range findingDocs {
				if strings.HasPrefix(id, prefix) {
					fmt.Println(console.FormatListHeader(doc.title))
					fmt.Println()
					fmt.Println(doc.body)
					return nil
				}
			}
			return fmt.Errorf("unknown finding id %q", args[0])
		},
	}
}
