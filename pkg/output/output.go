// Package output encodes an analysis report for each supported format.
// Encoders are pure functions of the report; the report's JSON schema is
// the compatibility surface and evolves additively only.
package output

import (
	"fmt"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
)

// Format selects an encoder.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatSARIF    Format = "sarif"
	FormatHTML     Format = "html"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a --format flag value.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatText, FormatJSON, FormatSARIF, FormatHTML, FormatYAML, FormatMarkdown:
		return Format(raw), nil
	}
	return "", fmt.Errorf("unknown format %q (want text|json|sarif|html|yaml|markdown)", raw)
}

// Encode renders the report in the requested format.
func Encode(report *analyzer.Report, format Format) (string, error) {
	switch format {
	case FormatText:
		return EncodeText(report), nil
	case FormatJSON:
		return EncodeJSON(report)
	case FormatSARIF:
		return EncodeSARIF(report)
	case FormatHTML:
		return EncodeHTML(report)
	case FormatYAML:
		return EncodeYAML(report)
	case FormatMarkdown:
		return EncodeMarkdown(report), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}
