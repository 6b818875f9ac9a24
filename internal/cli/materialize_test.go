package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/source"
	"github.com/roach88/timeagnostic/internal/store"
)

type materializeResponse struct {
	Status string            `json:"status"`
	Data   MaterializeResult `json:"data"`
	RunID  string            `json:"run_id"`
}

func TestMaterializeSQLite(t *testing.T) {
	h := citations()
	path := writeDataset(t, h)
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")

	out, _, err := execute(t, "materialize", "--format", "json", "--dataset", path,
		"--driver", "sqlite3", "--dsn", dbPath, citesQuery)
	require.NoError(t, err)

	var resp materializeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, 4, resp.Data.Snapshots)
	assert.Equal(t, "sqlite3", resp.Data.Driver)

	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, citesQuery, runs[0].Query)

	g, err := st.Graph(ctx, "run-1", ir.TimeLabel(h.Times()[1]))
	require.NoError(t, err)
	assert.True(t, g.Equal(h.State(1)))
}

func TestMaterializeJSONLDFile(t *testing.T) {
	h := citations()
	path := writeDataset(t, h)
	outPath := filepath.Join(t.TempDir(), "snapshots.jsonld")

	out, _, err := execute(t, "materialize", "--dataset", path, "--driver", "jsonld", "--dsn", outPath, citesQuery)
	require.NoError(t, err)
	assert.Contains(t, out, "Materialized run run-1: 4 snapshots")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	quads, err := source.LoadJSONLD(f)
	require.NoError(t, err)

	graph := store.GraphIRI(store.DefaultGraphBase, "run-1", ir.TimeLabel(h.Times()[1]))
	var got []ir.Quad
	for _, q := range quads {
		if q.Graph.Value == graph && q.Subject.Value != graph {
			got = append(got, ir.Triple(q.Subject, q.Predicate, q.Object))
		}
	}
	var want []ir.Quad
	for _, q := range h.State(1).Quads() {
		want = append(want, ir.Triple(q.Subject, q.Predicate, q.Object))
	}
	assert.ElementsMatch(t, want, got)
	assert.Contains(t, quads, ir.NewQuad(ir.IRI(graph), ir.IRI("http://purl.org/dc/terms/date"),
		ir.TypedLiteral(ir.TimeLabel(h.Times()[1]), "http://www.w3.org/2001/XMLSchema#dateTime"), ir.IRI(graph)))
}

func TestMaterializeJSONLDStdout(t *testing.T) {
	path := writeDataset(t, citations())

	out, _, err := execute(t, "materialize", "--dataset", path, "--driver", "jsonld", "--dsn", "-", citesQuery)
	require.NoError(t, err)

	quads, err := source.LoadJSONLD(bytes.NewBufferString(out))
	require.NoError(t, err)
	assert.NotEmpty(t, quads)
}

func TestMaterializeRequiresTarget(t *testing.T) {
	path := writeDataset(t, citations())

	_, errOut, err := execute(t, "materialize", "--dataset", path, citesQuery)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "no target")
}

func TestMaterializeUnknownDriver(t *testing.T) {
	path := writeDataset(t, citations())

	_, errOut, err := execute(t, "materialize", "--dataset", path, "--driver", "mysql", "--dsn", "x", citesQuery)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, `unsupported driver "mysql"`)
}

func TestMaterializePostgres(t *testing.T) {
	dsn := os.Getenv("TAB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TAB_TEST_POSTGRES_DSN not set")
	}
	path := writeDataset(t, citations())

	_, _, err := execute(t, "materialize", "--dataset", path, "--driver", "pgx", "--dsn", dsn, citesQuery)
	require.NoError(t, err)
}

// =============================================================================
// runs
// =============================================================================

func TestRunsListsMaterializedRuns(t *testing.T) {
	h := citations()
	path := writeDataset(t, h)
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")

	_, _, err := execute(t, "materialize", "--dataset", path, "--driver", "sqlite3", "--dsn", dbPath, citesQuery)
	require.NoError(t, err)

	out, _, err := execute(t, "runs", "--dsn", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1\t")

	out, _, err = execute(t, "runs", "--format", "json", "--dsn", dbPath, "run-1")
	require.NoError(t, err)
	var snaps struct {
		Data SnapshotsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	require.Len(t, snaps.Data.Snapshots, 4)
	assert.Equal(t, ir.NowLabel, snaps.Data.Snapshots[3].Label)

	out, _, err = execute(t, "runs", "--dsn", dbPath, "run-1", "--label", ir.NowLabel)
	require.NoError(t, err)
	assert.Contains(t, out, link(br1, cites, br3).String())
}

func TestRunsEmptyStore(t *testing.T) {
	out, _, err := execute(t, "runs", "--dsn", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "(no runs)")
}

func TestRunsUnknownSnapshot(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	_, errOut, err := execute(t, "runs", "--dsn", dbPath, "run-9", "--label", ir.NowLabel)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "Error ["+ErrCodeNotFound+"]")
}

func TestRunsRejectsJSONLD(t *testing.T) {
	_, _, err := execute(t, "runs", "--driver", "jsonld", "--dsn", "out.jsonld")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPartialWriteKeepsWrittenSnapshots(t *testing.T) {
	failed := errors.Join(errors.New("write snapshot now: disk full"), errors.New("write snapshot 2021-05-07T10:59:15Z: disk full"))

	warnings, err := partialWrite(2, failed)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"snapshot not materialized: write snapshot now: disk full",
		"snapshot not materialized: write snapshot 2021-05-07T10:59:15Z: disk full",
	}, warnings)

	warnings, err = partialWrite(1, errors.New("write snapshot now: locked"))
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot not materialized: write snapshot now: locked"}, warnings)
}

func TestPartialWriteFailsWhenNothingWritten(t *testing.T) {
	failed := errors.New("write run: no such table")

	warnings, err := partialWrite(0, failed)
	assert.Same(t, failed, err)
	assert.Nil(t, warnings)

	_, err = partialWrite(3, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)

	warnings, err = partialWrite(3, nil)
	assert.NoError(t, err)
	assert.Nil(t, warnings)
}
