package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files live in testdata/golden. To regenerate them:
//
//	go test ./internal/harness -run TestScenariosGolden -update
func TestScenariosGolden(t *testing.T) {
	for _, name := range []string{"citation_rewired", "cited_title_changes", "no_anchor"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestGoldenIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "citation_rewired.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := NewAnswerSnapshot(scenario.Name, first).MarshalCanonical()
	require.NoError(t, err)
	b, err := NewAnswerSnapshot(scenario.Name, second).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestAnswerSnapshotCanonical(t *testing.T) {
	r := NewResult()
	r.RunID = "run-1"
	r.Labels = []string{t0, "now"}
	r.Snapshots = map[string][]Row{
		t0:    {},
		"now": {{"title": `"Open Citations"`, "cited": "<https://w3id.org/oc/meta/br/2>"}},
	}

	data, err := NewAnswerSnapshot("sample", r).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"labels":["`+t0+`","now"],"run_id":"run-1","scenario_name":"sample",`+
			`"snapshots":{"`+t0+`":[],"now":[{"cited":"<https://w3id.org/oc/meta/br/2>","title":"\"Open Citations\""}]},`+
			`"warnings":[]}`,
		string(data))
}

func TestAnswerSnapshotErrorCode(t *testing.T) {
	r := NewResult()
	r.ErrorCode = "NO_ANCHOR"

	data, err := NewAnswerSnapshot("rejected", r).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"error_code":"NO_ANCHOR","labels":[],"scenario_name":"rejected","snapshots":{},"warnings":[]}`, string(data))
}

func TestAnswerSnapshotNilSlices(t *testing.T) {
	data, err := AnswerSnapshot{ScenarioName: "empty"}.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"labels":[],"scenario_name":"empty","snapshots":{},"warnings":[]}`, string(data))
}
