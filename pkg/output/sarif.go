package output

import (
	"bytes"
	"encoding/json"

	"github.com/pipelinex/pipelinex/pkg/analyzer"
)

// SARIF 2.1.0 structures, limited to the fields the report populates.

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
	HelpURI          string       `json:"helpUri,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifLogicalLocation struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

const sarifSchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

// EncodeSARIF renders the findings as one SARIF run. Severity maps
// Critical/High -> error, Medium -> warning, Low/Info -> note; the rule
// id is the finding id.
func EncodeSARIF(report *analyzer.Report) (string, error) {
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           "pipelinex",
			InformationURI: "https://github.com/pipelinex/pipelinex",
		}},
		Results: []sarifResult{},
	}

	seenRules := make(map[string]bool)
	for _, f := range report.Findings {
		if !seenRules[f.ID] {
			seenRules[f.ID] = true
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               f.ID,
				Name:             string(f.Category),
				ShortDescription: sarifMessage{Text: f.Title},
			})
		}

		var logical []sarifLogicalLocation
		for _, job := range f.AffectedJobs {
			logical = append(logical, sarifLogicalLocation{Name: job, Kind: "function"})
		}
		result := sarifResult{
			RuleID:  f.ID,
			Level:   sarifLevel(f.Severity),
			Message: sarifMessage{Text: f.Description},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: report.SourceFile},
				},
				LogicalLocations: logical,
			}},
		}
		if f.EstimatedSavingsSecs > 0 || f.AutoFixable {
			result.Properties = map[string]any{
				"estimatedSavingsSecs": f.EstimatedSavingsSecs,
				"autoFixable":          f.AutoFixable,
				"confidence":           f.Confidence,
			}
		}
		run.Results = append(run.Results, result)
	}

	doc := sarifLog{Schema: sarifSchemaURI, Version: "2.1.0", Runs: []sarifRun{run}}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sarifLevel(s analyzer.Severity) string {
	switch s {
	case analyzer.SeverityCritical, analyzer.SeverityHigh:
		return "error"
	case analyzer.SeverityMedium:
		return "warning"
	}
	return "note"
}
