package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/prov"
	"github.com/roach88/timeagnostic/internal/queryir"
)

// Anchors are the concrete terms a query is rooted at.
type Anchors struct {
	// Terms holds the IRIs and literals found in subject or object
	// position, sorted and distinct.
	Terms []ir.Term

	// Complex is set when no anchor appears as a subject. The entities
	// linking to the anchors must then be reconstructed too.
	Complex bool
}

// ExtractAnchors collects the anchors of a flattened pattern list.
func ExtractAnchors(patterns []queryir.TriplePattern) Anchors {
	var a Anchors
	subject := false
	add := func(t ir.Term) {
		if (t.IsIRI() || t.IsLiteral()) && !slices.Contains(a.Terms, t) {
			a.Terms = append(a.Terms, t)
		}
	}
	for _, tp := range patterns {
		if !tp.Subject.IsVar() && tp.Subject.Term.IsIRI() {
			add(tp.Subject.Term)
			subject = true
		}
		if !tp.Object.IsVar() {
			add(tp.Object.Term)
		}
	}
	slices.SortFunc(a.Terms, ir.CompareTerms)
	a.Complex = len(a.Terms) > 0 && !subject
	return a
}

// anchorEntities maps anchors to entity IRIs. An IRI is an entity itself;
// a literal stands for the entities holding it as a value, now or in any
// recorded update query.
func (r *Reconstructor) anchorEntities(ctx context.Context, anchors []ir.Term) ([]string, []error) {
	var out []string
	var errs []error
	var updates []ir.Quad
	updatesRead := false
	for _, t := range anchors {
		if t.IsIRI() {
			out = append(out, t.Value)
			continue
		}
		quads, err := r.dataset.Match(ctx, ir.Quad{Object: t})
		if err != nil {
			errs = append(errs, fmt.Errorf("find entities holding %s: %w", t, err))
			continue
		}
		for _, q := range quads {
			if prov.IsDataQuad(q) && q.Subject.IsIRI() {
				out = append(out, q.Subject.Value)
			}
		}

		if !updatesRead {
			updatesRead = true
			updates, err = r.provenance.Match(ctx, ir.Quad{Predicate: prov.HasUpdateQuery})
			if err != nil {
				errs = append(errs, fmt.Errorf("read update queries: %w", err))
			}
		}
		out = append(out, r.pastHolders(t, updates)...)
	}
	slices.Sort(out)
	return slices.Compact(out), errs
}

// pastHolders lists the subjects that an update query inserted or deleted
// value for. Unparseable updates are skipped here; reconstructing their
// entity reports them.
func (r *Reconstructor) pastHolders(value ir.Term, updates []ir.Quad) []string {
	plain := !strings.ContainsAny(value.Value, "\"\\\n\r\t")
	var out []string
	for _, u := range updates {
		if !u.Subject.IsIRI() || (plain && !strings.Contains(u.Object.Value, value.Value)) {
			continue
		}
		d, err := r.deltas.ParseSnapshot(u.Subject.Value, u.Object.Value)
		if err != nil {
			r.logger.Debug("skipping update query", "snapshot", u.Subject.Value, "error", err)
			continue
		}
		for _, q := range slices.Concat(d.Deleted, d.Inserted) {
			if q.Object == value && prov.IsDataQuad(q) && q.Subject.IsIRI() {
				out = append(out, q.Subject.Value)
			}
		}
	}
	return out
}
