package output

import (
	"bytes"
	"encoding/json"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
)

// EncodeJSON renders the stable report schema with indentation.
func EncodeJSON(report *analyzer.Report) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return "", err
	}
	return buf.String(), nil
}
