package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/timeagnostic/internal/ir"
)

const (
	dctermsDate = "http://purl.org/dc/terms/date"
	xsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

// Run identifies one materialized query execution.
type Run struct {
	ID        string    `json:"run_id"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRecord describes one materialized snapshot.
type SnapshotRecord struct {
	RunID       string `json:"run_id"`
	Label       string `json:"label"`
	GraphIRI    string `json:"graph"`
	Fingerprint string `json:"fingerprint"`
	Quads       int    `json:"quads"`
}

// GraphIRI returns the named graph holding the snapshot label of a run.
func GraphIRI(base, runID, label string) string {
	return base + runID + "/" + label
}

// SnapshotQuads lays out a composite as the quads a materialized run holds:
// every snapshot in its own named graph, and for every timed snapshot a
// dcterms:date statement about that graph.
func SnapshotQuads(base, runID string, c *ir.Composite) []ir.Quad {
	var out []ir.Quad
	for _, label := range c.Labels() {
		g, _ := c.Graph(label)
		out = append(out, snapshotQuads(GraphIRI(base, runID, label), label, g)...)
	}
	return ir.DedupQuads(out)
}

func snapshotQuads(graphIRI, label string, g *ir.Graph) []ir.Quad {
	name := ir.IRI(graphIRI)
	var out []ir.Quad
	if g != nil {
		for _, q := range g.Quads() {
			out = append(out, ir.NewQuad(q.Subject, q.Predicate, q.Object, name))
		}
	}
	if label != ir.NowLabel {
		out = append(out, ir.NewQuad(name, ir.IRI(dctermsDate), ir.TypedLiteral(label, xsdDateTime), name))
	}
	return out
}

// WriteRun records a run. Writing the same run twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (run_id, query, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`),
		run.ID,
		run.Query,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteSnapshot stores one snapshot graph of a run in a single
// transaction. Rewriting a snapshot replaces its quads.
func (s *Store) WriteSnapshot(ctx context.Context, runID, label string, g *ir.Graph) (err error) {
	if g == nil {
		g = ir.EmptyGraph()
	}
	fp, err := ir.GraphFingerprint(g)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", label, err)
	}
	graphIRI := GraphIRI(s.graphBase, runID, label)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshot %s: begin: %w", label, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM quads WHERE graph_iri = ?`), graphIRI); err != nil {
		return fmt.Errorf("write snapshot %s: clear: %w", label, err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM snapshots WHERE run_id = ? AND label = ?`), runID, label); err != nil {
		return fmt.Errorf("write snapshot %s: clear: %w", label, err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO snapshots (run_id, label, graph_iri, fingerprint, quad_count)
		VALUES (?, ?, ?, ?, ?)
	`), runID, label, graphIRI, fp, g.Len()); err != nil {
		return fmt.Errorf("write snapshot %s: %w", label, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO quads (graph_iri, subject, predicate, object, source_graph)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`))
	if err != nil {
		return fmt.Errorf("write snapshot %s: prepare: %w", label, err)
	}
	defer stmt.Close()

	for _, q := range g.Quads() {
		if _, err = stmt.ExecContext(ctx,
			graphIRI,
			encodeTerm(q.Subject),
			encodeTerm(q.Predicate),
			encodeTerm(q.Object),
			encodeTerm(q.Graph),
		); err != nil {
			return fmt.Errorf("write snapshot %s: quad %s: %w", label, q, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write snapshot %s: commit: %w", label, err)
	}
	return nil
}

// Materialize writes a run and every snapshot of its composite. Snapshots
// are written independently: a failing snapshot does not stop the others,
// and the failures are joined into the returned error. It returns the
// number of snapshots written.
func (s *Store) Materialize(ctx context.Context, run Run, c *ir.Composite) (int, error) {
	if err := s.WriteRun(ctx, run); err != nil {
		return 0, err
	}

	written := 0
	var errs []error
	for _, label := range c.Labels() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		g, _ := c.Graph(label)
		if err := s.WriteSnapshot(ctx, run.ID, label, g); err != nil {
			s.logger.Warn("snapshot not materialized", "run_id", run.ID, "label", label, "error", err)
			errs = append(errs, err)
			continue
		}
		written++
	}

	s.logger.Info("materialized run",
		"run_id", run.ID,
		"driver", s.driver,
		"snapshots", written,
	)
	return written, errors.Join(errs...)
}
