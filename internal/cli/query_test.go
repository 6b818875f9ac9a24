package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/ir"
)

type queryResponse struct {
	Status string      `json:"status"`
	Data   QueryResult `json:"data"`
	Error  *CLIError   `json:"error"`
	RunID  string      `json:"run_id"`
}

const citesQuery = `SELECT ?cited WHERE { <` + br1 + `> <` + cites + `> ?cited }`

func TestQueryJSON(t *testing.T) {
	h := citations()
	path := writeDataset(t, h)

	out, _, err := execute(t, "query", "--format", "json", "--dataset", path, citesQuery)
	require.NoError(t, err)

	var resp queryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, []string{"cited"}, resp.Data.Vars)

	times := h.Times()
	assert.Equal(t, []string{
		ir.TimeLabel(times[0]), ir.TimeLabel(times[1]), ir.TimeLabel(times[2]), ir.NowLabel,
	}, resp.Data.Labels)

	cited := func(iri string) map[string]string {
		return map[string]string{"cited": "<" + iri + ">"}
	}
	assert.Empty(t, resp.Data.Snapshots[ir.TimeLabel(times[0])])
	assert.Equal(t, []map[string]string{cited(br2)}, resp.Data.Snapshots[ir.TimeLabel(times[1])])
	assert.Equal(t, []map[string]string{cited(br3)}, resp.Data.Snapshots[ir.TimeLabel(times[2])])
	assert.Equal(t, []map[string]string{cited(br3)}, resp.Data.Snapshots[ir.NowLabel])
	assert.NotNil(t, resp.Data.Warnings)
}

func TestQueryText(t *testing.T) {
	h := citations()
	path := writeDataset(t, h)

	out, _, err := execute(t, "query", "--dataset", path, citesQuery)
	require.NoError(t, err)

	sections := strings.Split(out, "=== ")
	require.Len(t, sections, 5) // leading empty part plus four labels
	assert.Equal(t, ir.TimeLabel(h.Times()[0])+" ===\n(no results)\n\n", sections[1])
	assert.Equal(t, ir.TimeLabel(h.Times()[1])+" ===\n?cited\n<"+br2+">\n\n", sections[2])
	assert.Equal(t, ir.NowLabel+" ===\n?cited\n<"+br3+">\n", sections[4])
}

func TestQueryFromFile(t *testing.T) {
	path := writeDataset(t, citations())
	queryPath := filepath.Join(t.TempDir(), "cites.rq")
	require.NoError(t, os.WriteFile(queryPath, []byte(citesQuery), 0o644))

	out, _, err := execute(t, "query", "--format", "json", "--dataset", path, "--file", queryPath)
	require.NoError(t, err)

	var resp queryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Labels, 4)
}

func TestQueryInputErrors(t *testing.T) {
	path := writeDataset(t, citations())
	queryPath := filepath.Join(t.TempDir(), "cites.rq")
	require.NoError(t, os.WriteFile(queryPath, []byte(citesQuery), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"no query", []string{"query", "--dataset", path}},
		{"both", []string{"query", "--dataset", path, "--file", queryPath, citesQuery}},
		{"missing file", []string{"query", "--dataset", path, "--file", filepath.Join(t.TempDir(), "none.rq")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestQueryRejected(t *testing.T) {
	path := writeDataset(t, citations())

	tests := []struct {
		name  string
		query string
		code  engine.ErrorCode
	}{
		{"no anchor", `SELECT ?s WHERE { ?s ?p ?o }`, engine.ErrCodeNoAnchor},
		{"not a select", `ASK { <` + br1 + `> ?p ?o }`, engine.ErrCodeUnsupportedQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "query", "--format", "json", "--dataset", path, tt.query)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp queryResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestQueryWithConfigFile(t *testing.T) {
	h := citations()
	path := writeDataset(t, h)
	dir := filepath.Dir(path)
	cfg := `{
  "dataset": {"file_paths": ["` + filepath.Base(path) + `"]},
  "engine": {"workers": 2, "max_rounds": 4},
  "cache": {"path": "cache"}
}`
	cfgPath := filepath.Join(dir, "tab.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	for i := 0; i < 2; i++ {
		out, _, err := execute(t, "query", "--format", "json", "--config", cfgPath, citesQuery)
		require.NoError(t, err)

		var resp queryResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Len(t, resp.Data.Labels, 4)
	}
	// The history cache was created next to the config file.
	_, err := os.Stat(filepath.Join(dir, "cache"))
	assert.NoError(t, err)
}

func TestQueryVerboseLogsToStderr(t *testing.T) {
	path := writeDataset(t, citations())

	out, errOut, err := execute(t, "query", "--verbose", "--format", "json", "--dataset", path, citesQuery)
	require.NoError(t, err)

	var resp queryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "stdout must stay valid JSON")
	assert.Contains(t, errOut, "run_id=run-1")
	assert.Contains(t, errOut, "timeagnostic_query_executions_total")
}
