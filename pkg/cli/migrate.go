package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/pipelinex/pipelinex/pkg/console"
	"github.com/pipelinex/pipelinex/pkg/constants"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// NewMigrateCommand builds the migrate subcommand: a best-effort
// skeleton conversion of any parsed pipeline into a GitHub Actions
// workflow. The DAG is lossy, so the output is a starting point a human
// finishes, not a drop-in replacement.
func NewMigrateCommand() *cobra.Command {
	var to string
	var outputPath string

	cmd := &cobra.Command{
		Use:     "migrate <config-file>",
		Short:   "Convert a pipeline to another provider (skeleton, best effort)",
		GroupID: "optimization",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to != string(dag.ProviderGitHubActions) {
				return &ExitError{Code: constants.ExitConfigError,
					Err: fmt.Errorf("migration target %q not supported (only github-actions)", to)}
			}
			pipeline, err := providers.ParseFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rendered, err := renderGitHubWorkflow(pipeline)
			if err != nil {
				return err
			}
			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(rendered), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("wrote "+outputPath))
				return nil
			}
			fmt.Print(rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", string(dag.ProviderGitHubActions), "Target provider")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the converted workflow to this path")
	return cmd
}

// renderGitHubWorkflow regenerates a workflow from the DAG. Unlike the
// optimizer this is generation, not preservation: comments and ordering
// of the source do not survive.
func renderGitHubWorkflow(p *dag.Pipeline) (string, error) {
	type ghStep map[string]any
	type ghJob struct {
		Name   string   `yaml:"name,omitempty"`
		RunsOn string   `yaml:"runs-on"`
		Needs  []string `yaml:"needs,omitempty"`
		If     string   `yaml:"if,omitempty"`
		Steps  []ghStep `yaml:"steps"`
	}

	jobs := make(map[string]ghJob, p.JobCount())
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		runsOn := "ubuntu-latest"
		if strings.Contains(strings.ToLower(job.RunsOn), "windows") {
			runsOn = "windows-latest"
		}
		gh := ghJob{Name: job.Name, RunsOn: runsOn, Needs: p.Predecessors(id), If: job.Condition}
		gh.Steps = append(gh.Steps, ghStep{"uses": "actions/checkout@v4"})
		for _, step := range job.Steps {
			if step.Run == "" {
				continue
			}
			s := ghStep{"run": step.Run}
			if step.Name != "" {
				s["name"] = step.Name
			}
			if step.WorkingDirectory != "" {
				s["working-directory"] = step.WorkingDirectory
			}
			gh.Steps = append(gh.Steps, s)
		}
		jobs[id] = gh
	}

	doc := map[string]any{
		"name": p.Name,
		"on":   map[string]any{"push": map[string]any{"branches": []string{"main"}}},
		"jobs": jobs,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
