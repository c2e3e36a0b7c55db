// Package cli implements the pipelinex subcommands. Every command is a
// thin adapter over the core packages: parse, analyze, optimize,
// simulate, encode.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/config"
	"github.com/pipelinex/pipelinex/pkg/console"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/history"
	"github.com/pipelinex/pipelinex/pkg/logger"
	"github.com/pipelinex/pipelinex/pkg/output"
	"github.com/pipelinex/pipelinex/pkg/plugins"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

var log = logger.New("cli:run")

// ExitError carries a process exit code through cobra's error plumbing.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error to the documented exit codes: 0 clean, 1
// findings above threshold, 2 parse/IO error, 3 configuration error.
func ExitCode(err error) int {
	if err == nil {
		return constants.ExitClean
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		return constants.ExitParseError
	}
	if errors.Is(err, os.ErrNotExist) {
		return constants.ExitParseError
	}
	return constants.ExitConfigError
}

// PrintError renders an error for humans, with position details for
// parse failures.
func PrintError(err error) {
	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		fmt.Fprint(os.Stderr, console.FormatDiagnostic(console.Diagnostic{
			Position: console.ErrorPosition{File: parseErr.Path, Line: parseErr.Line, Column: parseErr.Column},
			Type:     "error",
			Message:  fmt.Sprintf("%s: %s", parseErr.Kind, parseErr.Message),
		}))
		return
	}
	fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
}

// commonFlags are shared by the analysis-flavored commands.
type commonFlags struct {
	format      string
	historyPath string
	repoSizeMB  float64
	failOn      string
}

func addCommonFlags(cmd *cobra.Command, flags *commonFlags) {
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text|json|sarif|html|yaml|markdown")
	cmd.Flags().StringVar(&flags.historyPath, "history", "", "Path to a job-history snapshot (JSON)")
	cmd.Flags().Float64Var(&flags.repoSizeMB, "repo-size-mb", 0, "Repository size hint for clone analysis")
	cmd.Flags().StringVar(&flags.failOn, "fail-on", "", "Exit 1 when findings at or above this severity exist: critical|high|medium|low")
}

// analyzeFile runs the full parse+analyze pipeline for one file.
func analyzeFile(ctx context.Context, path string, flags *commonFlags) (*analyzer.Report, *dag.Pipeline, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, &ExitError{Code: constants.ExitConfigError, Err: err}
	}

	pipeline, err := providers.ParseFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	opts := &analyzer.Options{
		RepoSizeMB: flags.repoSizeMB,
		Config:     cfg,
	}
	if flags.historyPath != "" {
		snap, err := history.LoadFile(flags.historyPath)
		if err != nil {
			return nil, nil, &ExitError{Code: constants.ExitConfigError, Err: err}
		}
		opts.History = snap
	}
	opts.RepoHasDocs = repoHasDocs(filepath.Dir(path))

	manifest, err := plugins.FindManifest(cfg.PluginManifestPath, repoRootOf(path))
	if err != nil {
		return nil, nil, &ExitError{Code: constants.ExitConfigError, Err: err}
	}
	if runner := plugins.NewRunner(manifest); runner != nil {
		opts.Plugins = runner
	}

	report, err := analyzer.Analyze(ctx, pipeline, opts)
	if err != nil {
		return nil, nil, err
	}
	return report, pipeline, nil
}

// repoRootOf walks up from the config file looking for the repository
// root (a .git directory), falling back to the file's directory.
func repoRootOf(path string) string {
	dir := filepath.Dir(path)
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Dir(path)
		}
		dir = parent
	}
}

// repoHasDocs reports whether the surrounding repo carries docs trees,
// the hint the path-filtering detector needs.
func repoHasDocs(dir string) bool {
	root := repoRootOf(filepath.Join(dir, "x"))
	if info, err := os.Stat(filepath.Join(root, "docs")); err == nil && info.IsDir() {
		return true
	}
	matches, _ := filepath.Glob(filepath.Join(root, "*.md"))
	return len(matches) > 0
}

// emit writes the encoded report and applies the --fail-on threshold.
func emit(report *analyzer.Report, flags *commonFlags) error {
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return &ExitError{Code: constants.ExitConfigError, Err: err}
	}
	rendered, err := output.Encode(report, format)
	if err != nil {
		return err
	}
	fmt.Print(rendered)

	if flags.failOn != "" {
		threshold := analyzer.Severity(strings.ToLower(flags.failOn))
		if threshold.Priority() == 0 && threshold != analyzer.SeverityInfo {
			return &ExitError{Code: constants.ExitConfigError, Err: fmt.Errorf("unknown severity %q", flags.failOn)}
		}
		if n := report.FindingsAtOrAbove(threshold); n > 0 {
			log.Printf("%d findings at or above %s", n, threshold)
			return &ExitError{Code: constants.ExitFindings}
		}
	}
	return nil
}
