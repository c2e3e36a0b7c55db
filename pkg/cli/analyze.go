package cli

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/console"
)

// NewAnalyzeCommand builds the analyze subcommand.
func NewAnalyzeCommand() *cobra.Command {
	var flags commonFlags
	var watch bool

	cmd := &cobra.Command{
		Use:     "analyze <config-file>",
		Short:   "Analyze a CI configuration and report findings",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			run := func() error {
				report, _, err := analyzeFile(cmd.Context(), path, &flags)
				if err != nil {
					return err
				}
				return emit(report, &flags)
			}
			if !watch {
				return run()
			}
			return watchAndRun(cmd, path, run)
		},
	}
	addCommonFlags(cmd, &flags)
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run the analysis when the file changes")
	return cmd
}

// watchAndRun re-executes the analysis on every write to the config
// file until interrupted. Analysis errors are printed, not fatal: the
// next save gets a fresh chance.
func watchAndRun(cmd *cobra.Command, path string, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}

	if err := run(); err != nil {
		PrintError(err)
	}
	fmt.Fprintln(os.Stderr, console.FormatProgressMessage("watching "+path))

	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Fprintln(os.Stderr, console.FormatProgressMessage("change detected, re-analyzing"))
			if err := run(); err != nil {
				PrintError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(err.Error()))
		}
	}
}
