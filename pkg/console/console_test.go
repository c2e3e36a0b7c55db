package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDiagnosticIncludesPosition(t *testing.T) {
	out := FormatDiagnostic(Diagnostic{
		Position: ErrorPosition{File: "ci.yml", Line: 12, Column: 3},
		Type:     "error",
		Message:  "YamlSyntax: unexpected mapping key",
	})
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "unexpected mapping key")
	assert.Contains(t, out, "ci.yml:12:3")
}

func TestFormatDiagnosticHint(t *testing.T) {
	out := FormatDiagnostic(Diagnostic{
		Type:    "warning",
		Message: "no cache declared",
		Hint:    "run pipelinex optimize to add one",
	})
	assert.Contains(t, out, "hint: run pipelinex optimize")
}

func TestToRelativePathLeavesRelativeAlone(t *testing.T) {
	assert.Equal(t, "a/b.yml", ToRelativePath("a/b.yml"))
}

func TestFormatMessagesOffTTY(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	for _, s := range []string{
		FormatSuccessMessage("done"),
		FormatErrorMessage("boom"),
		FormatWarningMessage("careful"),
		FormatCommandMessage("pipelinex analyze ci.yml"),
	} {
		assert.False(t, strings.Contains(s, "\x1b["), "unexpected ANSI in %q", s)
	}
}
