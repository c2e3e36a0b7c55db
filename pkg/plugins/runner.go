package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/logger"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

var log = logger.New("plugins:runner")

// envAllowlist is the only environment a plugin subprocess inherits.
var envAllowlist = []string{"PATH", "HOME", "TMPDIR", "LANG"}

// maxStderrBytes caps the captured diagnostic buffer per plugin.
const maxStderrBytes = 16 * 1024

func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Request is the envelope written to a plugin's stdin.
type Request struct {
	Pipeline RequestPipeline `json:"pipeline"`
}

type RequestPipeline struct {
	Name     string       `json:"name"`
	Provider dag.Provider `json:"provider"`
	JobCount int          `json:"job_count"`
	Jobs     []RequestJob `json:"jobs"`
}

type RequestJob struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Needs []string      `json:"needs"`
	Steps []RequestStep `json:"steps"`
}

type RequestStep struct {
	Command string `json:"command"`
}

// Runner executes the enabled analyzer plugins. It implements
// analyzer.PluginRunner.
type Runner struct {
	Specs []Spec
}

// NewRunner builds a Runner over the manifest's enabled analyzers.
func NewRunner(manifest *Manifest) *Runner {
	if manifest == nil {
		return nil
	}
	var specs []Spec
	for _, spec := range manifest.Analyzers {
		if spec.Enabled {
			specs = append(specs, spec)
		}
	}
	if len(specs) == 0 {
		return nil
	}
	return &Runner{Specs: specs}
}

// Run invokes each plugin in manifest order. A failing plugin yields a
// diagnostic and its findings are dropped; the analysis always proceeds.
func (r *Runner) Run(ctx context.Context, p *dag.Pipeline) ([]analyzer.Finding, []string) {
	request := buildRequest(p)
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, []string{fmt.Sprintf("plugin request encoding failed: %v", err)}
	}

	var findings []analyzer.Finding
	var diagnostics []string
	for _, spec := range r.Specs {
		pluginFindings, err := r.runOne(ctx, spec, payload)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("plugin %s failed: %v", spec.ID, err))
			continue
		}
		findings = append(findings, pluginFindings...)
	}
	return findings, diagnostics
}

func (r *Runner) runOne(ctx context.Context, spec Spec, payload []byte) ([]analyzer.Finding, error) {
	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = allowedEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderr, n: maxStderrBytes}

	log.Printf("running plugin %s (%s)", spec.ID, spec.Command)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("timed out after %s: %s", spec.Timeout(), stringutil.Truncate(stderr.String(), 200))
		}
		return nil, fmt.Errorf("%w: %s", err, stringutil.Truncate(stderr.String(), 200))
	}
	return decodeFindings(spec.ID, stdout.Bytes())
}

func allowedEnv() []string {
	var env []string
	for _, key := range envAllowlist {
		if value := os.Getenv(key); value != "" {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// decodeFindings accepts either a bare findings array or a {findings:
// [...]} wrapper. Unknown fields on a finding are preserved under the
// custom category.
func decodeFindings(pluginID string, data []byte) ([]analyzer.Finding, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapper struct {
			Findings []map[string]any `json:"findings"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("unparseable plugin response: %w", err)
		}
		raw = wrapper.Findings
	}

	knownFields := map[string]bool{
		"id": true, "severity": true, "category": true, "title": true,
		"description": true, "affected_jobs": true, "recommendation": true,
		"fix_command": true, "estimated_savings_secs": true,
		"confidence": true, "auto_fixable": true,
	}

	findings := make([]analyzer.Finding, 0, len(raw))
	for i, entry := range raw {
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		var f analyzer.Finding
		if err := json.Unmarshal(encoded, &f); err != nil {
			return nil, fmt.Errorf("finding %d malformed: %w", i, err)
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("PLX-EXT-%s-%03d", pluginID, i+1)
		}
		if f.Severity.Priority() == 0 && f.Severity != analyzer.SeverityInfo {
			f.Severity = analyzer.SeverityInfo
		}
		if f.Category != analyzer.CategorySecurity {
			f.Category = analyzer.CategoryCustom
		}
		for key, value := range entry {
			if !knownFields[key] {
				if f.Extra == nil {
					f.Extra = make(map[string]any)
				}
				f.Extra[key] = value
			}
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func buildRequest(p *dag.Pipeline) Request {
	request := Request{Pipeline: RequestPipeline{
		Name:     p.Name,
		Provider: p.Provider,
		JobCount: p.JobCount(),
	}}
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		reqJob := RequestJob{ID: job.ID, Name: job.Name, Needs: p.Predecessors(id)}
		for _, step := range job.Steps {
			command := step.Run
			if command == "" {
				command = step.Uses
			}
			reqJob.Steps = append(reqJob.Steps, RequestStep{Command: command})
		}
		request.Pipeline.Jobs = append(request.Pipeline.Jobs, reqJob)
	}
	return request
}

// limitedWriter caps captured stderr.
type limitedWriter struct {
	w *bytes.Buffer
	n int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if remaining := lw.n - lw.w.Len(); remaining > 0 {
		if len(p) > remaining {
			lw.w.Write(p[:remaining])
		} else {
			lw.w.Write(p)
		}
	}
	return len(p), nil
}
