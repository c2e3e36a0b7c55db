// Package optimizer rewrites CI configuration sources to realize the
// auto-fixable findings of an analysis. It mutates a YAML value tree
// parsed from the original bytes, never the DAG, so comments and key
// ordering survive as far as the YAML library allows.
package optimizer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/logger"
)

var log = logger.New("optimizer:run")

// minConfidence is the floor below which a finding is never applied.
const minConfidence = 80

// State tracks one finding through the optimizer's state machine.
type State string

const (
	StateCandidate State = "candidate"
	StatePlanned   State = "planned"
	StateApplied   State = "applied"
	StateSkipped   State = "skipped"
)

// SkipReason explains a Skipped decision.
type SkipReason string

const (
	SkipLowConfidence   SkipReason = "confidence below threshold"
	SkipNotAutoFixable  SkipReason = "not auto-fixable"
	SkipConflict        SkipReason = "conflicts with a higher-severity rewrite"
	SkipAlreadyApplied  SkipReason = "source already carries the fix"
	SkipUnsupported     SkipReason = "no rewrite for this category and provider"
	SkipTargetNotFound  SkipReason = "target job not present in source"
)

// Decision is one transcript entry.
type Decision struct {
	FindingID string     `json:"finding_id"`
	Category  analyzer.Category `json:"category"`
	State     State      `json:"state"`
	Reason    SkipReason `json:"reason,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

// Result is the optimizer output: the (possibly rewritten) source and
// the decision transcript.
type Result struct {
	Output     string     `json:"output"`
	Transcript []Decision `json:"transcript"`
	Applied    int        `json:"applied"`
	Skipped    int        `json:"skipped"`
}

// Error kinds.
type ErrorKind string

const (
	ErrSourceUnparseable   ErrorKind = "SourceUnparseable"
	ErrRewriteConflict     ErrorKind = "RewriteConflict"
	ErrUnsupportedProvider ErrorKind = "UnsupportedProvider"
)

// Error is the optimizer failure type. The caller always gets the
// original source back alongside it; users never receive a partially
// rewritten file.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }
func (e *Error) Unwrap() error { return e.Err }

// rewriteFunc applies one finding to the document tree. It returns true
// when the tree changed, false when the fix is already present.
type rewriteFunc func(doc *ast.MappingNode, provider dag.Provider, f analyzer.Finding) (bool, error)

// rewrites maps categories to their rewrite sub-modules. Optimizer
// coverage is deliberately narrower than parser coverage.
var rewrites = map[analyzer.Category]rewriteFunc{
	analyzer.CategoryMissingCache:    applyCache,
	analyzer.CategoryFalseDependency: applyParallel,
	analyzer.CategoryUnshardedTests:  applyShard,
	analyzer.CategoryNoDockerCache:   applyDocker,
	analyzer.CategoryMatrixBloat:     applyMatrix,
}

// supportedProviders is the optimizer's provider coverage.
var supportedProviders = map[dag.Provider]bool{
	dag.ProviderGitHubActions: true,
	dag.ProviderGitLabCI:      true,
}

// Optimize applies the report's auto-fixable findings to the original
// source bytes. On any failure the original source is returned unchanged
// alongside the error.
func Optimize(source []byte, report *analyzer.Report) (*Result, error) {
	original := string(source)
	result := &Result{Output: original}

	if !supportedProviders[report.Provider] {
		return result, &Error{
			Kind:    ErrUnsupportedProvider,
			Message: fmt.Sprintf("optimizer does not rewrite %s configurations", report.Provider),
		}
	}

	file, err := parser.ParseBytes(source, parser.ParseComments)
	if err != nil || len(file.Docs) == 0 {
		if err == nil {
			err = errors.New("empty document")
		}
		return result, &Error{Kind: ErrSourceUnparseable, Message: err.Error(), Err: err}
	}
	doc, ok := file.Docs[0].Body.(*ast.MappingNode)
	if !ok {
		return result, &Error{Kind: ErrSourceUnparseable, Message: "top-level document is not a mapping"}
	}

	// Candidate selection and conflict resolution. Findings are already
	// sorted by severity then savings; the first rewrite per (category,
	// target) wins, later ones skip with Conflict.
	plan := planFindings(report.Findings, result)

	applied := 0
	for _, f := range plan {
		rewrite := rewrites[f.Category]
		changed, err := rewrite(doc, report.Provider, f)
		switch {
		case err != nil:
			result.Transcript = append(result.Transcript, Decision{
				FindingID: f.ID, Category: f.Category, State: StateSkipped,
				Reason: SkipTargetNotFound, Detail: err.Error(),
			})
			result.Skipped++
		case !changed:
			result.Transcript = append(result.Transcript, Decision{
				FindingID: f.ID, Category: f.Category, State: StateSkipped,
				Reason: SkipAlreadyApplied,
			})
			result.Skipped++
		default:
			result.Transcript = append(result.Transcript, Decision{
				FindingID: f.ID, Category: f.Category, State: StateApplied,
			})
			result.Applied++
			applied++
		}
	}

	// An untouched tree returns the source verbatim so repeated runs are
	// byte-identical.
	if applied == 0 {
		return result, nil
	}
	result.Output = file.String()
	log.Printf("applied %d rewrites, skipped %d", result.Applied, result.Skipped)
	return result, nil
}

// planFindings walks Candidate -> Planned | Skipped for every finding,
// recording pre-apply skips in the transcript.
func planFindings(findings []analyzer.Finding, result *Result) []analyzer.Finding {
	type target struct {
		category analyzer.Category
		job      string
	}
	planned := make(map[target]bool)
	var plan []analyzer.Finding

	ordered := append([]analyzer.Finding(nil), findings...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity.Priority() > ordered[j].Severity.Priority()
	})

	for _, f := range ordered {
		switch {
		case !f.AutoFixable:
			continue // not even a candidate
		case f.Confidence < minConfidence:
			result.Transcript = append(result.Transcript, Decision{
				FindingID: f.ID, Category: f.Category, State: StateSkipped, Reason: SkipLowConfidence,
			})
			result.Skipped++
			continue
		case rewrites[f.Category] == nil:
			result.Transcript = append(result.Transcript, Decision{
				FindingID: f.ID, Category: f.Category, State: StateSkipped, Reason: SkipUnsupported,
			})
			result.Skipped++
			continue
		}
		key := target{category: f.Category, job: firstAffected(f)}
		if planned[key] {
			result.Transcript = append(result.Transcript, Decision{
				FindingID: f.ID, Category: f.Category, State: StateSkipped, Reason: SkipConflict,
			})
			result.Skipped++
			continue
		}
		planned[key] = true
		plan = append(plan, f)
	}
	return plan
}

func firstAffected(f analyzer.Finding) string {
	if len(f.AffectedJobs) == 0 {
		return ""
	}
	return f.AffectedJobs[0]
}
