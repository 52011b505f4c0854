package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
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
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ShortDescription sarifText       `json:"shortDescription"`
	Default          sarifRuleConfig `json:"defaultConfiguration"`
	Properties       sarifProps      `json:"properties"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifProps struct {
	Tags     []string `json:"tags,omitempty"`
	Severity string   `json:"severity"`
	Type     string   `json:"type"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifText       `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	Physical sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	Artifact sarifArtifact `json:"artifactLocation"`
	Region   *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// sarifLevel maps severities onto the three SARIF result levels.
func sarifLevel(sev string) string {
	switch rankOf(sev) {
	case catalog.Blocker, catalog.Critical:
		return "error"
	case catalog.Major:
		return "warning"
	default:
		return "note"
	}
}

// BuildSARIF converts a run into a SARIF 2.1.0 log. Rule descriptors cover
// the rules that produced findings.
func BuildSARIF(run *ir.Run, cat *catalog.Catalog, toolVersion string) any {
	keys := map[string]bool{}
	results := make([]sarifResult, 0, len(run.Findings))
	for _, f := range run.Findings {
		keys[f.RuleKey] = true
		loc := sarifLocation{Physical: sarifPhysical{Artifact: sarifArtifact{URI: filepath.ToSlash(f.File)}}}
		if f.Line > 0 {
			loc.Physical.Region = &sarifRegion{StartLine: f.Line}
		}
		results = append(results, sarifResult{
			RuleID:    f.RuleKey,
			Level:     sarifLevel(f.Severity),
			Message:   sarifText{Text: f.Message},
			Locations: []sarifLocation{loc},
		})
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	descriptors := make([]sarifRule, 0, len(sorted))
	for _, k := range sorted {
		md := cat.MetadataFor(k)
		text := md.Description
		if text == "" {
			text = md.Name
		}
		descriptors = append(descriptors, sarifRule{
			ID:               k,
			Name:             md.Name,
			ShortDescription: sarifText{Text: text},
			Default:          sarifRuleConfig{Level: sarifLevel(md.Severity.String())},
			Properties:       sarifProps{Tags: md.Tags, Severity: md.Severity.String(), Type: string(md.Type)},
		})
	}
	return sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "qansible", Version: toolVersion, Rules: descriptors}},
			Results: results,
		}},
	}
}

// WriteSARIF writes the run to <outDir>/<runID>.sarif.
func WriteSARIF(runID, outDir string, run *ir.Run, cat *catalog.Catalog, toolVersion string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(BuildSARIF(run, cat, toolVersion), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode sarif: %w", err)
	}
	path := filepath.Join(outDir, runID+".sarif")
	return path, os.WriteFile(path, b, 0o644)
}
