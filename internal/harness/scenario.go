package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/rdfsyntax"
)

// Scenario defines a conformance test scenario.
// Scenarios replay the history of a few entities and check what one query
// answers at every point of it.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is the fixed run ID of the query execution.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Epoch is the time of the first snapshot, RFC 3339.
	Epoch string `yaml:"epoch,omitempty"`

	// Step is the distance between consecutive snapshots.
	Step string `yaml:"step,omitempty"`

	// Histories are the entities whose snapshots are recorded.
	Histories []HistorySpec `yaml:"histories,omitempty"`

	// Files are N-Quads, Turtle or JSON-LD documents loaded next to the
	// histories. Paths are relative to the scenario file.
	Files []string `yaml:"files,omitempty"`

	// Query is the SPARQL SELECT query run across time.
	Query string `yaml:"query"`

	// Expect checks the overall outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the answers.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// HistorySpec is the recorded life of one entity.
type HistorySpec struct {
	Entity string `yaml:"entity"`

	// Agent is recorded as responsible for the snapshots.
	Agent string `yaml:"agent,omitempty"`

	Steps []HistoryStep `yaml:"steps"`
}

// HistoryStep is one snapshot. Create starts the entity; later steps
// delete and insert statements, or remove the entity altogether.
type HistoryStep struct {
	Create []string `yaml:"create,omitempty"`
	Delete []string `yaml:"delete,omitempty"`
	Insert []string `yaml:"insert,omitempty"`

	// Remove records the deletion of every statement of the entity.
	Remove bool `yaml:"remove,omitempty"`
}

// ExpectClause specifies the expected overall outcome.
type ExpectClause struct {
	// Error is the expected error code (e.g. "NO_ANCHOR"). Empty means the
	// query must succeed.
	Error string `yaml:"error,omitempty"`

	// Labels are the expected snapshot labels, exactly.
	Labels []string `yaml:"labels,omitempty"`

	// Warnings is the expected number of warnings.
	Warnings *int `yaml:"warnings,omitempty"`
}

// Assertion validates the answers or the reconstructed states.
type Assertion struct {
	// Type specifies the assertion type:
	// - "result_contains": a solution at Label binds Row
	// - "result_count": Label has exactly Count solutions
	// - "label_order": Labels appear in order
	// - "final_state": the composite graph at Label holds Quads, lacks Absent
	// - "state_at": the state of Entity at At holds Quads, lacks Absent
	Type string `yaml:"type"`

	// Label is a snapshot time label or "now".
	Label string `yaml:"label,omitempty"`

	// Row maps variables to N-Triples terms. Subset match.
	Row map[string]string `yaml:"row,omitempty"`

	// Count is the expected number of solutions (used by result_count).
	Count int `yaml:"count,omitempty"`

	// Labels is the expected label order (used by label_order).
	Labels []string `yaml:"labels,omitempty"`

	// Entity and At select a state (used by state_at).
	Entity string `yaml:"entity,omitempty"`
	At     string `yaml:"at,omitempty"`

	// Quads must be present; Absent must not. N-Quads statements.
	Quads  []string `yaml:"quads,omitempty"`
	Absent []string `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertResultContains = "result_contains"
	AssertResultCount    = "result_count"
	AssertLabelOrder     = "label_order"
	AssertFinalState     = "final_state"
	AssertStateAt        = "state_at"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// File paths are resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return parseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. File paths are resolved against
// basePath when it is not empty.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	return parseScenario(data, basePath)
}

func parseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Files {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Files[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if len(s.Histories) == 0 && len(s.Files) == 0 {
		return fmt.Errorf("histories or files are required")
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions are required")
	}
	if _, _, err := s.clock(); err != nil {
		return err
	}

	for _, p := range s.Files {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	for i, h := range s.Histories {
		if h.Entity == "" {
			return fmt.Errorf("histories[%d]: entity is required", i)
		}
		if len(h.Steps) == 0 {
			return fmt.Errorf("histories[%d]: steps list is required and must be non-empty", i)
		}
		for j, st := range h.Steps {
			if err := validateStep(st, j == 0); err != nil {
				return fmt.Errorf("histories[%d].steps[%d]: %w", i, j, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(st HistoryStep, first bool) error {
	switch {
	case first && len(st.Create) == 0:
		return fmt.Errorf("the first step must create the entity")
	case !first && len(st.Create) > 0:
		return fmt.Errorf("create is only allowed in the first step")
	case st.Remove && (len(st.Delete) > 0 || len(st.Insert) > 0):
		return fmt.Errorf("remove cannot be combined with delete or insert")
	case !first && !st.Remove && len(st.Delete) == 0 && len(st.Insert) == 0:
		return fmt.Errorf("step changes nothing")
	}
	for _, group := range [][]string{st.Create, st.Delete, st.Insert} {
		if _, err := parseStatements(group); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertResultContains:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for result_contains", index)
		}
		if len(a.Row) == 0 {
			return fmt.Errorf("assertions[%d]: row is required for result_contains", index)
		}
	case AssertResultCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for result_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for result_count", index)
		}
	case AssertLabelOrder:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for label_order", index)
		}
	case AssertFinalState:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for final_state", index)
		}
		if len(a.Quads) == 0 && len(a.Absent) == 0 {
			return fmt.Errorf("assertions[%d]: quads or absent is required for final_state", index)
		}
	case AssertStateAt:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for state_at", index)
		}
		if _, err := time.Parse(time.RFC3339Nano, a.At); err != nil {
			return fmt.Errorf("assertions[%d]: at must be an RFC 3339 time for state_at", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	for _, group := range [][]string{a.Quads, a.Absent} {
		if _, err := parseStatements(group); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	return nil
}

// clock returns the snapshot epoch and step of the scenario; zero values
// select the clock defaults.
func (s *Scenario) clock() (time.Time, time.Duration, error) {
	var (
		epoch time.Time
		step  time.Duration
		err   error
	)
	if s.Epoch != "" {
		if epoch, err = time.Parse(time.RFC3339Nano, s.Epoch); err != nil {
			return epoch, step, fmt.Errorf("epoch: %w", err)
		}
	}
	if s.Step != "" {
		if step, err = time.ParseDuration(s.Step); err != nil {
			return epoch, step, fmt.Errorf("step: %w", err)
		}
		if step <= 0 {
			return epoch, step, fmt.Errorf("step must be positive")
		}
	}
	return epoch, step, nil
}

// parseStatements parses N-Quads statements, one per element.
func parseStatements(lines []string) ([]ir.Quad, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	quads, err := rdfsyntax.ParseNQuads(strings.Join(lines, "\n"))
	if err != nil {
		return nil, fmt.Errorf("invalid statement: %w", err)
	}
	return quads, nil
}
