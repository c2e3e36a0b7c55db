package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/console"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// NewMultiRepoCommand builds the multi-repo subcommand: walk a
// directory tree, analyze every recognized CI configuration, and report
// per-file. A single bad file never aborts the scan.
func NewMultiRepoCommand() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:     "multi-repo <directory>",
		Short:   "Analyze every CI configuration under a directory",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			var configs []string
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil // unreadable entries are skipped, not fatal
				}
				if d.IsDir() {
					if name := d.Name(); name == ".git" || name == "node_modules" || name == "vendor" {
						return filepath.SkipDir
					}
					return nil
				}
				if _, detectErr := providers.Detect(path); detectErr == nil {
					configs = append(configs, path)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				return &ExitError{Code: constants.ExitParseError,
					Err: fmt.Errorf("no CI configurations found under %s", root)}
			}

			failures := 0
			for _, path := range configs {
				fmt.Println(console.FormatListHeader(path))
				report, _, err := analyzeFile(cmd.Context(), path, &flags)
				if err != nil {
					// Report the diagnostic and keep walking.
					PrintError(err)
					failures++
					continue
				}
				if err := emit(report, &flags); err != nil {
					var exit *ExitError
					if errors.As(err, &exit) && exit.Code == constants.ExitFindings {
						failures++
						continue
					}
					return err
				}
				fmt.Println()
			}
			if failures > 0 {
				return &ExitError{Code: constants.ExitFindings}
			}
			return nil
		},
	}
	addCommonFlags(cmd, &flags)
	return cmd
}

