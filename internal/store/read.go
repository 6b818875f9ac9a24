package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/timeagnostic/internal/ir"
)

// ErrSnapshotNotFound is returned when a run has no snapshot with the
// requested label.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Runs returns every materialized run, oldest first.
//
// Returns an empty slice (not nil) if the store holds no run.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, query, created_at
		FROM runs
		ORDER BY created_at ASC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.Query, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse run time %q: %w", created, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Snapshots returns the snapshots of a run in label order: times
// ascending, then "now".
func (s *Store) Snapshots(ctx context.Context, runID string) ([]SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT run_id, label, graph_iri, fingerprint, quad_count
		FROM snapshots
		WHERE run_id = ?
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotRecord{}
	for rows.Next() {
		var r SnapshotRecord
		if err := rows.Scan(&r.RunID, &r.Label, &r.GraphIRI, &r.Fingerprint, &r.Quads); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	slices.SortFunc(out, func(a, b SnapshotRecord) int {
		return compareLabels(a.Label, b.Label)
	})
	return out, nil
}

// Graph reads back one snapshot graph. Quads keep the graph they had in
// the dataset.
func (s *Store) Graph(ctx context.Context, runID, label string) (*ir.Graph, error) {
	var graphIRI string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT graph_iri FROM snapshots WHERE run_id = ? AND label = ?
	`), runID, label).Scan(&graphIRI)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s label %s: %w", runID, label, ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	quads, err := s.readQuads(ctx, graphIRI)
	if err != nil {
		return nil, err
	}
	return ir.NewGraph(quads...), nil
}

func (s *Store) readQuads(ctx context.Context, graphIRI string) ([]ir.Quad, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT subject, predicate, object, source_graph
		FROM quads
		WHERE graph_iri = ?
	`), graphIRI)
	if err != nil {
		return nil, fmt.Errorf("query quads: %w", err)
	}
	defer rows.Close()

	var out []ir.Quad
	for rows.Next() {
		var cols [4]string
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3]); err != nil {
			return nil, fmt.Errorf("scan quad: %w", err)
		}
		var terms [4]ir.Term
		for i, c := range cols {
			if terms[i], err = decodeTerm(c); err != nil {
				return nil, err
			}
		}
		out = append(out, ir.NewQuad(terms[0], terms[1], terms[2], terms[3]))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quads: %w", err)
	}
	return out, nil
}

// Dataset returns the quads of a run laid out as SnapshotQuads does.
func (s *Store) Dataset(ctx context.Context, runID string) ([]ir.Quad, error) {
	snaps, err := s.Snapshots(ctx, runID)
	if err != nil {
		return nil, err
	}
	var out []ir.Quad
	for _, snap := range snaps {
		quads, err := s.readQuads(ctx, snap.GraphIRI)
		if err != nil {
			return nil, err
		}
		out = append(out, snapshotQuads(snap.GraphIRI, snap.Label, ir.NewGraph(quads...))...)
	}
	return ir.DedupQuads(out), nil
}

// compareLabels orders time labels chronologically, before "now". Lexical
// order is not enough: RFC 3339 fractions have no fixed width.
func compareLabels(a, b string) int {
	if a == ir.NowLabel || b == ir.NowLabel {
		switch {
		case a == b:
			return 0
		case a == ir.NowLabel:
			return 1
		default:
			return -1
		}
	}
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ta.Compare(tb)
}
