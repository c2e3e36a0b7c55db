// Package plugins loads the plugin manifest and executes external
// analyzer plugins as bounded subprocesses. Plugins are untrusted: they
// get a JSON snapshot of the pipeline on stdin, a capped wall-clock, an
// environment allowlist, and may only contribute findings.
package plugins

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pipelinex/pipelinex/pkg/constants"
)

// Spec describes one plugin in the manifest.
type Spec struct {
	ID        string   `json:"id"`
	Command   string   `json:"command"`
	Args      []string `json:"args"`
	TimeoutMS int      `json:"timeout_ms"`
	Enabled   bool     `json:"enabled"`
}

// Timeout returns the per-plugin wall-clock bound.
func (s *Spec) Timeout() time.Duration {
	if s.TimeoutMS > 0 {
		return time.Duration(s.TimeoutMS) * time.Millisecond
	}
	return constants.DefaultPluginTimeout
}

// Manifest is the parsed .pipelinex/plugins.json.
type Manifest struct {
	Analyzers  []Spec `json:"analyzers"`
	Optimizers []Spec `json:"optimizers"`
}

// manifestSchema validates the manifest shape before anything executes.
const manifestSchema = `{
  "type": "object",
  "properties": {
    "analyzers": {"$ref": "#/$defs/plugins"},
    "optimizers": {"$ref": "#/$defs/plugins"}
  },
  "additionalProperties": true,
  "$defs": {
    "plugins": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "command"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "command": {"type": "string", "minLength": 1},
          "args": {"type": "array", "items": {"type": "string"}},
          "timeout_ms": {"type": "integer", "minimum": 1},
          "enabled": {"type": "boolean"}
        }
      }
    }
  }
}`

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plugin manifest %s: %w", path, err)
	}
	return parseManifest(path, data)
}

// FindManifest resolves the manifest path: the explicit override first,
// then the conventional location under the analyzed repository root.
// A missing manifest is not an error; plugins are optional.
func FindManifest(overridePath, repoRoot string) (*Manifest, error) {
	path := overridePath
	if path == "" {
		path = repoRoot + "/" + constants.DefaultPluginManifestPath
	}
	if _, err := os.Stat(path); err != nil {
		if overridePath == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin manifest %s: %w", path, err)
	}
	return LoadManifest(path)
}

func parseManifest(path string, data []byte) (*Manifest, error) {
	compiler := jsonschema.NewCompiler()
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}
	if err := compiler.AddResource("manifest-schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}
	schema, err := compiler.Compile("manifest-schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing plugin manifest %s: %w", path, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid plugin manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := jsonUnmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding plugin manifest %s: %w", path, err)
	}
	return &manifest, nil
}
