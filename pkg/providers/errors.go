package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
)

// ParseErrorKind classifies parser failures.
type ParseErrorKind string

const (
	ErrYamlSyntax          ParseErrorKind = "YamlSyntax"
	ErrSchemaMismatch      ParseErrorKind = "SchemaMismatch"
	ErrCycle               ParseErrorKind = "Cycle"
	ErrUnknownDependency   ParseErrorKind = "UnknownDependency"
	ErrUnsupportedProvider ParseErrorKind = "UnsupportedProvider"
)

// ParseError is the failure type shared by all provider parsers. It
// carries the file path, line/column when the underlying YAML error
// exposes them, and the job ids involved for Cycle and UnknownDependency.
type ParseError struct {
	Kind    ParseErrorKind
	Path    string
	Line    int
	Column  int
	Message string
	JobIDs  []string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s", e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
		b.WriteByte(')')
	}
	if len(e.JobIDs) > 0 {
		fmt.Fprintf(&b, " [jobs: %s]", strings.Join(e.JobIDs, ", "))
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// newCycleError converts a dag.CycleError raised while wiring edges into
// the parser's Cycle failure, citing the offending job ids.
func newCycleError(path string, err *dag.CycleError) *ParseError {
	return &ParseError{
		Kind:    ErrCycle,
		Path:    path,
		Message: fmt.Sprintf("dependency cycle through %s", strings.Join(err.Path, " -> ")),
		JobIDs:  err.Path,
		Err:     err,
	}
}

// edgeError maps a dag edge failure to the right ParseError kind.
// Unknown endpoints mean the config referenced a job that does not exist.
func edgeError(path, from, to string, err error) error {
	var cycle *dag.CycleError
	if errors.As(err, &cycle) {
		return newCycleError(path, cycle)
	}
	var unknown *dag.UnknownNodeError
	if errors.As(err, &unknown) {
		return &ParseError{
			Kind:    ErrUnknownDependency,
			Path:    path,
			Message: fmt.Sprintf("job %q depends on unknown job %q", to, unknown.ID),
			JobIDs:  []string{from, to},
			Err:     err,
		}
	}
	return err
}
