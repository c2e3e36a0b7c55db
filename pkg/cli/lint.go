package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rhysd/actionlint"
	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/console"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// NewLintCommand builds the lint subcommand. GitHub Actions files get
// the full actionlint rule set; every other provider gets a parse-level
// schema check.
func NewLintCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "lint <config-file>",
		Short:   "Lint a CI configuration for syntax and semantic errors",
		GroupID: "analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			provider, err := providers.Detect(path)
			if err != nil {
				return err
			}

			if provider == dag.ProviderGitHubActions {
				return lintGitHub(path)
			}

			// Other providers: the parser's schema checks are the lint.
			if _, err := providers.ParseFile(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(path + " parses cleanly"))
			return nil
		},
	}
}

func lintGitHub(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	linter, err := actionlint.NewLinter(io.Discard, &actionlint.LinterOptions{})
	if err != nil {
		return err
	}
	lintErrors, err := linter.Lint(path, content, nil)
	if err != nil {
		return err
	}
	if len(lintErrors) == 0 {
		fmt.Println(console.FormatSuccessMessage(path + " lints cleanly"))
		return nil
	}
	for _, lintErr := range lintErrors {
		fmt.Print(console.FormatDiagnostic(console.Diagnostic{
			Position: console.ErrorPosition{File: path, Line: lintErr.Line, Column: lintErr.Column},
			Type:     "error",
			Message:  lintErr.Message,
		}))
	}
	return &ExitError{Code: constants.ExitFindings}
}
