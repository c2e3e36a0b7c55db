package providers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
)

// stripBOM removes a UTF-8 byte-order mark; all parsers accept BOM-prefixed files.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// decodeYAML unmarshals a single YAML document into a generic tree,
// mapping failures to ErrYamlSyntax with position information.
func decodeYAML(path string, data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(stripBOM(data), &doc); err != nil {
		line, col, msg := extractYAMLError(err)
		if msg == "" {
			msg = err.Error()
		}
		return nil, &ParseError{Kind: ErrYamlSyntax, Path: path, Line: line, Column: col, Message: msg, Err: err}
	}
	return doc, nil
}

// decodeYAMLDocuments iterates a multi-document YAML stream. Documents
// that fail to decode as mappings are skipped; a syntax error in the
// stream itself is fatal.
func decodeYAMLDocuments(path string, data []byte) ([]map[string]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(stripBOM(data)))
	var docs []map[string]any
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, col, msg := extractYAMLError(err)
			if msg == "" {
				msg = err.Error()
			}
			return nil, &ParseError{Kind: ErrYamlSyntax, Path: path, Line: line, Column: col, Message: msg, Err: err}
		}
		// Scalar and sequence documents are not CI documents; skip them.
		if m, ok := doc.(map[string]any); ok {
			docs = append(docs, m)
		}
	}
	return docs, nil
}

// extractYAMLError pulls line/column out of goccy/go-yaml's error
// structure via reflection, so the dependency's internal error types can
// evolve without breaking the build. Falls back to zero positions.
func extractYAMLError(err error) (line, column int, message string) {
	original := err
	for unwrapped := errors.Unwrap(original); unwrapped != nil; unwrapped = errors.Unwrap(original) {
		original = unwrapped
	}

	v := reflect.ValueOf(original)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, 0, ""
	}
	v = v.Elem()

	if f := v.FieldByName("Message"); f.IsValid() && f.Kind() == reflect.String {
		message = f.String()
	}
	token := v.FieldByName("Token")
	if !token.IsValid() || token.Kind() != reflect.Ptr || token.IsNil() {
		return 0, 0, message
	}
	pos := token.Elem().FieldByName("Position")
	if !pos.IsValid() || pos.Kind() != reflect.Ptr || pos.IsNil() {
		return 0, 0, message
	}
	pv := pos.Elem()
	if f := pv.FieldByName("Line"); f.IsValid() && f.Kind() == reflect.Int {
		line = int(f.Int())
	}
	if f := pv.FieldByName("Column"); f.IsValid() && f.Kind() == reflect.Int {
		column = int(f.Int())
	}
	return line, column, message
}

// Generic tree accessors. Unknown keys are tolerated everywhere for
// forward compatibility, so all of these return zero values on absence
// or type mismatch instead of failing.

func getMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func getSlice(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

func getString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case int, int64, uint64, float64, bool:
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func getInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// stringOrList normalizes provider fields that accept either a scalar or
// a sequence (needs, depends_on, ...).
func stringOrList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// stringMap converts a generic env mapping to map[string]string,
// stringifying scalar values.
func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case string:
			out[k] = t
		case int, int64, uint64, float64, bool:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out
}

// axisValues stringifies one matrix axis value list.
func axisValues(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case int, int64, uint64, float64, bool:
			out = append(out, fmt.Sprintf("%v", t))
		case map[string]any:
			// Composite axis values (e.g. objects) count as one cell each.
			out = append(out, fmt.Sprintf("cell-%d", len(out)+1))
		}
	}
	return out
}

// sortedKeys returns map keys sorted lexically, for deterministic iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// hasDocsPathHints reports whether any of paths mentions documentation
// paths (a docs/ directory or a .md file).
func hasDocsPathHints(paths []string) bool {
	for _, p := range paths {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "docs/") || strings.Contains(lower, ".md") {
			return true
		}
	}
	return false
}
