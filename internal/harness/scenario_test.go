package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	br1Title   = `<https://w3id.org/oc/meta/br/1> <http://purl.org/dc/terms/title> "Open Citations" <https://w3id.org/oc/meta/br/> .`
	br1Cites2  = `<https://w3id.org/oc/meta/br/1> <http://purl.org/spar/cito/cites> <https://w3id.org/oc/meta/br/2> <https://w3id.org/oc/meta/br/> .`
	br1Cites3  = `<https://w3id.org/oc/meta/br/1> <http://purl.org/spar/cito/cites> <https://w3id.org/oc/meta/br/3> <https://w3id.org/oc/meta/br/> .`
	citesQuery = `SELECT ?cited WHERE { <https://w3id.org/oc/meta/br/1> <http://purl.org/spar/cito/cites> ?cited }`
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ============================================================================
// Loading
// ============================================================================

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: cites
description: "Citations over time"
run_id: run-x
epoch: "2020-01-01T00:00:00Z"
step: 24h
histories:
  - entity: https://w3id.org/oc/meta/br/1
    agent: https://orcid.org/0000-0000-0000-0001
    steps:
      - create:
          - '`+br1Title+`'
      - insert:
          - '`+br1Cites2+`'
      - remove: true
query: "`+citesQuery+`"
expect:
  labels: ["2020-01-01T00:00:00Z", now]
  warnings: 0
assertions:
  - type: result_count
    label: now
    count: 0
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "cites", s.Name)
	assert.Equal(t, "run-x", s.RunID)
	require.Len(t, s.Histories, 1)
	assert.Equal(t, "https://orcid.org/0000-0000-0000-0001", s.Histories[0].Agent)
	require.Len(t, s.Histories[0].Steps, 3)
	assert.Equal(t, []string{br1Cites2}, s.Histories[0].Steps[1].Insert)
	assert.True(t, s.Histories[0].Steps[2].Remove)
	require.NotNil(t, s.Expect)
	require.NotNil(t, s.Expect.Warnings)
	assert.Equal(t, 0, *s.Expect.Warnings)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertResultCount, s.Assertions[0].Type)

	epoch, step, err := s.clock()
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T00:00:00Z", epoch.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "24h0m0s", step.String())
}

func TestLoadScenarioResolvesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.nq"), []byte(br1Title+"\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: files
description: "Data from a file"
files: [extra.nq]
query: "`+citesQuery+`"
expect: {}
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "extra.nq")}, s.Files)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Typo in a key"
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - create: ['`+br1Title+`']
query: "`+citesQuery+`"
assertion:
  - type: result_count
    label: now
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

// ============================================================================
// Validation
// ============================================================================

func TestParseScenarioInvalid(t *testing.T) {
	history := `
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - create: ['` + br1Title + `']
`
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nquery: q\n" + history + "expect: {}\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nquery: q\n" + history + "expect: {}\n",
			want: "description is required",
		},
		{
			name: "missing query",
			yaml: "name: n\ndescription: d\n" + history + "expect: {}\n",
			want: "query is required",
		},
		{
			name: "no data",
			yaml: "name: n\ndescription: d\nquery: q\nexpect: {}\n",
			want: "histories or files are required",
		},
		{
			name: "nothing checked",
			yaml: "name: n\ndescription: d\nquery: q\n" + history,
			want: "expect or assertions are required",
		},
		{
			name: "bad epoch",
			yaml: "name: n\ndescription: d\nquery: q\nepoch: yesterday\n" + history + "expect: {}\n",
			want: "epoch",
		},
		{
			name: "negative step",
			yaml: "name: n\ndescription: d\nquery: q\nstep: -1h\n" + history + "expect: {}\n",
			want: "step must be positive",
		},
		{
			name: "first step without create",
			yaml: `
name: n
description: d
query: q
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - insert: ['` + br1Cites2 + `']
expect: {}
`,
			want: "histories[0].steps[0]: the first step must create the entity",
		},
		{
			name: "create twice",
			yaml: `
name: n
description: d
query: q
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - create: ['` + br1Title + `']
      - create: ['` + br1Cites2 + `']
expect: {}
`,
			want: "create is only allowed in the first step",
		},
		{
			name: "empty step",
			yaml: `
name: n
description: d
query: q
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - create: ['` + br1Title + `']
      - {}
expect: {}
`,
			want: "step changes nothing",
		},
		{
			name: "remove with insert",
			yaml: `
name: n
description: d
query: q
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - create: ['` + br1Title + `']
      - remove: true
        insert: ['` + br1Cites2 + `']
expect: {}
`,
			want: "remove cannot be combined",
		},
		{
			name: "bad statement",
			yaml: `
name: n
description: d
query: q
histories:
  - entity: https://w3id.org/oc/meta/br/1
    steps:
      - create: ['"literal" <p> <o> .']
expect: {}
`,
			want: "invalid statement",
		},
		{
			name: "missing entity",
			yaml: `
name: n
description: d
query: q
histories:
  - steps:
      - create: ['` + br1Title + `']
expect: {}
`,
			want: "histories[0]: entity is required",
		},
		{
			name: "missing file",
			yaml: "name: n\ndescription: d\nquery: q\nfiles: [/nonexistent/data.nq]\nexpect: {}\n",
			want: "file not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"missing type", Assertion{}, "type is required"},
		{"unknown type", Assertion{Type: "trace_contains"}, `unknown assertion type "trace_contains"`},
		{"contains without label", Assertion{Type: AssertResultContains, Row: map[string]string{"x": "<a>"}}, "label is required"},
		{"contains without row", Assertion{Type: AssertResultContains, Label: "now"}, "row is required"},
		{"count without label", Assertion{Type: AssertResultCount}, "label is required"},
		{"negative count", Assertion{Type: AssertResultCount, Label: "now", Count: -1}, "count must be non-negative"},
		{"empty order", Assertion{Type: AssertLabelOrder}, "labels list is required"},
		{"state without quads", Assertion{Type: AssertFinalState, Label: "now"}, "quads or absent is required"},
		{"state_at without entity", Assertion{Type: AssertStateAt, At: "2021-01-01T00:00:00Z"}, "entity is required"},
		{"state_at bad instant", Assertion{Type: AssertStateAt, Entity: "https://w3id.org/oc/meta/br/1", At: "2021-01-01"}, "at must be an RFC 3339 time"},
		{"bad quad", Assertion{Type: AssertFinalState, Label: "now", Quads: []string{"not a quad"}}, "invalid statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.assertion)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	valid := []Assertion{
		{Type: AssertResultContains, Label: "now", Row: map[string]string{"cited": "<https://w3id.org/oc/meta/br/2>"}},
		{Type: AssertResultCount, Label: "now"},
		{Type: AssertLabelOrder, Labels: []string{"now"}},
		{Type: AssertFinalState, Label: "now", Absent: []string{br1Cites2}},
		{Type: AssertStateAt, Entity: "https://w3id.org/oc/meta/br/1", At: "2021-05-07T10:00:00Z"},
	}
	for _, a := range valid {
		assert.NoError(t, validateAssertion(0, &a), a.Type)
	}
}

func TestParseStatements(t *testing.T) {
	quads, err := parseStatements([]string{br1Title, br1Cites2})
	require.NoError(t, err)
	require.Len(t, quads, 2)
	assert.Equal(t, br1Title, quads[0].String())

	quads, err = parseStatements(nil)
	require.NoError(t, err)
	assert.Nil(t, quads)
}
