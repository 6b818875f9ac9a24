package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timeagnostic/internal/ir"
)

// AnswerSnapshot captures what a scenario's query answered.
// All fields use canonical JSON serialization for deterministic comparison.
type AnswerSnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	RunID        string           `json:"run_id,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	Labels       []string         `json:"labels"`
	Snapshots    map[string][]Row `json:"snapshots"`
	Warnings     []string         `json:"warnings"`
}

// NewAnswerSnapshot builds the golden form of a result.
func NewAnswerSnapshot(name string, result *Result) AnswerSnapshot {
	return AnswerSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		ErrorCode:    result.ErrorCode,
		Labels:       result.Labels,
		Snapshots:    result.Snapshots,
		Warnings:     result.Warnings,
	}
}

// toCanonicalMap converts an AnswerSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s AnswerSnapshot) toCanonicalMap() map[string]any {
	snapshots := make(map[string]any, len(s.Snapshots))
	for label, rows := range s.Snapshots {
		list := make([]any, len(rows))
		for i, row := range rows {
			m := make(map[string]any, len(row))
			for k, v := range row {
				m[k] = v
			}
			list[i] = m
		}
		snapshots[label] = list
	}

	labels := s.Labels
	if labels == nil {
		labels = []string{}
	}
	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"labels":        labels,
		"snapshots":     snapshots,
		"warnings":      warnings,
	}
	if s.RunID != "" {
		result["run_id"] = s.RunID
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// MarshalCanonical renders the snapshot as RFC 8785 canonical JSON.
func (s AnswerSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its answers against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the answers don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewAnswerSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
